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

// Command agentcore is an interactive CLI over the agent core.
//
// Usage:
//
//	agentcore chat --config config.yaml
//	agentcore investigate "pod crashlooping in namespace prod"
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/holmesgpt/agentcore/pkg/config"
	"github.com/holmesgpt/agentcore/pkg/demotools"
	"github.com/holmesgpt/agentcore/pkg/llmprovider"
	"github.com/holmesgpt/agentcore/pkg/logging"
	"github.com/holmesgpt/agentcore/pkg/metrics"
	"github.com/holmesgpt/agentcore/pkg/runtime"
	"github.com/holmesgpt/agentcore/pkg/tool"
	"github.com/holmesgpt/agentcore/pkg/tracing"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat        ChatCmd        `cmd:"" help:"Start an interactive chat session."`
	Investigate InvestigateCmd `cmd:"" help:"Run a one-shot issue investigation."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	EnvFile   string `help:"Path to a .env file to load before reading config." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`

	Provider string `help:"LLM provider base URL (OpenAI-compatible)." default:"https://api.openai.com/v1"`
	APIKey   string `name:"api-key" help:"API key (defaults to OPENAI_API_KEY)."`
	Model    string `help:"Model name." default:"gpt-4o"`

	TracingEnabled bool   `name:"tracing" help:"Enable tracing (spans are printed to stdout)."`
	MetricsPort    int    `name:"metrics-port" help:"Port to serve /metrics on, 0 to disable." default:"0"`
	ToolsetCache   string `name:"toolset-cache" help:"Path to the toolset status cache file." type:"path"`
}

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Println("agentcore (dev build)")
	return nil
}

// ChatCmd starts an interactive, session-persisted chat loop on stdin/stdout.
type ChatCmd struct{}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := buildRuntime(cli)
	if err != nil {
		return err
	}

	opts := loadRunOptions(cli)

	fmt.Printf("agentcore ready — %d tools loaded. Type 'exit' to quit.\n", rt.ToolCount())

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		result, sid, err := rt.RunAgent(ctx, sessionID, line, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = sid
		fmt.Println(result.Result)
	}
}

// InvestigateCmd runs a single alert investigation and prints the report.
type InvestigateCmd struct {
	Issue        string `arg:"" help:"Description of the issue to investigate."`
	Instructions string `help:"Resource-specific investigation instructions."`
	Sections     string `help:"Comma-separated list of report sections to produce." default:"Summary,Root Cause,Recommended Actions"`
}

func (c *InvestigateCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := buildRuntime(cli)
	if err != nil {
		return err
	}

	var sections []string
	for _, s := range strings.Split(c.Sections, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}

	opts := loadRunOptions(cli)
	result, _, err := rt.InvestigateIssue(ctx, c.Issue, c.Instructions, sections, opts)
	if err != nil {
		return fmt.Errorf("investigation failed: %w", err)
	}

	fmt.Println(result.Result)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()
	return ctx, cancel
}

func buildRuntime(cli *CLI) (*runtime.AgentRuntime, error) {
	apiKey := cli.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	llm := llmprovider.NewOpenAIAdapter(cli.Model, cli.Provider, apiKey)

	tp, _, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:     cli.TracingEnabled,
		Exporter:    "stdout",
		ServiceName: "agentcore-cli",
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	var rec metrics.Recorder = metrics.Noop{}
	if cli.MetricsPort > 0 {
		m := metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		addr := fmt.Sprintf(":%d", cli.MetricsPort)
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		rec = m
	}

	return runtime.New(runtime.Config{
		LLM:              llm,
		Toolsets:         []tool.Toolset{demotools.Toolset{}},
		ToolsetCachePath: cli.ToolsetCache,
		Tracer:           tracing.NewTracer(tp, "agentcore-cli"),
		Metrics:          rec,
	})
}

func loadRunOptions(cli *CLI) config.RunOptions {
	opts := config.DefaultRunOptions()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config, cli.EnvFile)
		if err != nil {
			slog.Warn("failed to load config file, using defaults", "path", cli.Config, "error", err)
		} else {
			opts = loaded
		}
	}
	if opts.Model == "" {
		opts.Model = cli.Model
	}
	return opts
}

func main() {
	level, err := logging.ParseLevel(os.Getenv("AGENTCORE_LOG_LEVEL"))
	if err != nil {
		level = 0
	}
	logging.Init(level, os.Stderr, "simple")

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("HolmesGPT-style agent core — CLI demo entry point."),
		kong.UsageOnError(),
	)
	if cli.LogLevel != "" {
		level, _ = logging.ParseLevel(cli.LogLevel)
	}
	if cli.LogFormat != "" {
		logging.Init(level, os.Stderr, cli.LogFormat)
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
