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

// Package metrics exposes Prometheus instrumentation for the agent
// loop, tool executor, LLM calls, sessions, and truncation/compaction
// events. Every Recorder method is nil-safe so a nil *Metrics behaves
// exactly like Noop, letting callers skip a conditional at every call
// site. Handler is not nil-safe.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the instrumentation surface the agent core depends on.
// Noop implements it with empty methods for callers that don't want a
// Prometheus backend.
type Recorder interface {
	RecordLoopIteration(status string)
	RecordLoopDuration(status string, seconds float64)
	RecordToolCall(toolName, status string)
	RecordToolDuration(toolName string, seconds float64)
	RecordLLMCall(status string)
	RecordLLMDuration(seconds float64)
	RecordLLMTokens(kind string, count int)
	RecordTruncation()
	RecordCompaction(status string)
	RecordRepetitionCapHit(toolName string)
	SetActiveSessions(n int)
}

var _ Recorder = (*Metrics)(nil)

// Metrics is the Prometheus-backed Recorder.
type Metrics struct {
	loopIterations   *prometheus.CounterVec
	loopDuration     *prometheus.HistogramVec
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	llmCalls         *prometheus.CounterVec
	llmDuration      prometheus.Histogram
	llmTokens        *prometheus.CounterVec
	truncations      prometheus.Counter
	compactions      *prometheus.CounterVec
	repetitionCapHit *prometheus.CounterVec
	activeSessions   prometheus.Gauge

	registry *prometheus.Registry
}

// New constructs a Metrics registered against a fresh, private
// Prometheus registry (callers serve it via Handler rather than the
// global default, so multiple instances in tests don't collide).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		loopIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_loop_iterations_total",
			Help: "Agent loop iterations by terminal status.",
		}, []string{"status"}),
		loopDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_loop_duration_seconds",
			Help:    "Wall-clock duration of a full agent loop run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_tool_calls_total",
			Help: "Tool invocations by tool name and result status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_tool_duration_seconds",
			Help:    "Tool invocation wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_llm_calls_total",
			Help: "LLM completion calls by result status.",
		}, []string{"status"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_llm_duration_seconds",
			Help:    "LLM completion call wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_llm_tokens_total",
			Help: "LLM tokens consumed by kind (prompt, completion).",
		}, []string{"kind"}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_truncations_total",
			Help: "Tool-result truncation events.",
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_compactions_total",
			Help: "History compaction attempts by outcome.",
		}, []string{"status"}),
		repetitionCapHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_repetition_cap_hits_total",
			Help: "Tool calls short-circuited by the repetition cap.",
		}, []string{"tool"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentcore_active_sessions",
			Help: "Currently live (non-evicted) sessions.",
		}),
	}

	reg.MustRegister(
		m.loopIterations, m.loopDuration,
		m.toolCalls, m.toolDuration,
		m.llmCalls, m.llmDuration, m.llmTokens,
		m.truncations, m.compactions, m.repetitionCapHit,
		m.activeSessions,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordLoopIteration(status string) {
	if m == nil {
		return
	}
	m.loopIterations.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordLoopDuration(status string, seconds float64) {
	if m == nil {
		return
	}
	m.loopDuration.WithLabelValues(status).Observe(seconds)
}

func (m *Metrics) RecordToolCall(toolName, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName, status).Inc()
}

func (m *Metrics) RecordToolDuration(toolName string, seconds float64) {
	if m == nil {
		return
	}
	m.toolDuration.WithLabelValues(toolName).Observe(seconds)
}

func (m *Metrics) RecordLLMCall(status string) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordLLMDuration(seconds float64) {
	if m == nil {
		return
	}
	m.llmDuration.Observe(seconds)
}

func (m *Metrics) RecordLLMTokens(kind string, count int) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(kind).Add(float64(count))
}

func (m *Metrics) RecordTruncation() {
	if m == nil {
		return
	}
	m.truncations.Inc()
}

func (m *Metrics) RecordCompaction(status string) {
	if m == nil {
		return
	}
	m.compactions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRepetitionCapHit(toolName string) {
	if m == nil {
		return
	}
	m.repetitionCapHit.WithLabelValues(toolName).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
