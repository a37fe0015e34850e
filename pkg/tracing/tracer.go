// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing wraps OpenTelemetry so the agent loop can open a span
// per iteration and a child span per tool call without ever having to
// check whether a real exporter is attached. The zero-value Config
// yields a no-op tracer, as spec §9 requires.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// sensitiveArgKeys are redacted from span attributes before attachment.
var sensitiveArgKeys = map[string]bool{
	"password": true,
	"token":    true,
	"api_key":  true,
	"secret":   true,
}

// Config controls whether and how tracing is exported.
type Config struct {
	Enabled      bool
	Exporter     string // "stdout"; any other value, including "", selects OTLP. Unused when Enabled is false.
	EndpointURL  string
	SamplingRate float64
	ServiceName  string
}

// Init builds a trace.TracerProvider per cfg. When cfg.Enabled is
// false, it returns otel's no-op provider, so every span creation
// downstream is free.
func Init(ctx context.Context, cfg Config) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.EndpointURL), otlptracegrpc.WithInsecure())
	}
	if err != nil {
		return nil, nil, err
	}

	ratio := cfg.SamplingRate
	if ratio <= 0 {
		ratio = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

// Tracer is the narrow surface the agent loop needs: start a span, end
// it, and attach attributes. Kept separate from trace.Tracer so call
// sites don't depend on the otel API directly.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer wraps a trace.TracerProvider under name.
func NewTracer(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name)}
}

// Span is a single started span plus bookkeeping for its start time, so
// callers can report duration without importing otel themselves.
type Span struct {
	span  trace.Span
	start time.Time
}

// StartIteration opens a span for one agent-loop iteration.
func (t *Tracer) StartIteration(ctx context.Context, sessionID string, iteration int) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, "agentloop.iteration",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Int("iteration", iteration),
		),
	)
	return ctx, &Span{span: span, start: time.Now()}
}

// StartToolCall opens a child span for one tool invocation. Sensitive
// argument keys (password, token, api_key, secret) are redacted before
// being attached as attributes.
func (t *Tracer) StartToolCall(ctx context.Context, toolName string, args map[string]any) (context.Context, *Span) {
	attrs := []attribute.KeyValue{attribute.String("tool.name", toolName)}
	for k, v := range args {
		if sensitiveArgKeys[k] {
			attrs = append(attrs, attribute.String("tool.arg."+k, "[REDACTED]"))
			continue
		}
		attrs = append(attrs, attribute.String("tool.arg."+k, toString(v)))
	}
	ctx, span := t.tracer.Start(ctx, "agentloop.tool_call", trace.WithAttributes(attrs...))
	return ctx, &Span{span: span, start: time.Now()}
}

// End closes the span, attaching status and result-size attributes.
func (s *Span) End(status string, resultSize int) {
	s.span.SetAttributes(
		attribute.String("status", status),
		attribute.Int64("duration_ms", time.Since(s.start).Milliseconds()),
		attribute.Int("result_size", resultSize),
	)
	s.span.End()
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
