// Command agentcore-server is a minimal REST demo exposing RunAgent and
// InvestigateIssue as HTTP endpoints. It is a thin external caller, not
// a production server — auth, rate limiting, and TLS termination are
// the operator's responsibility.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/holmesgpt/agentcore/pkg/config"
	"github.com/holmesgpt/agentcore/pkg/demotools"
	"github.com/holmesgpt/agentcore/pkg/llmprovider"
	"github.com/holmesgpt/agentcore/pkg/logging"
	"github.com/holmesgpt/agentcore/pkg/metrics"
	"github.com/holmesgpt/agentcore/pkg/runtime"
	"github.com/holmesgpt/agentcore/pkg/tool"
	"github.com/holmesgpt/agentcore/pkg/tracing"
)

type runRequest struct {
	SessionID string `json:"session_id"`
	Ask       string `json:"ask"`
}

type investigateRequest struct {
	Issue                string   `json:"issue"`
	ResourceInstructions string   `json:"resource_instructions"`
	Sections             []string `json:"sections"`
}

type runResponse struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
}

func main() {
	logging.Init(0, os.Stderr, "simple")

	addr := envOr("AGENTCORE_ADDR", ":8090")
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := envOr("AGENTCORE_MODEL", "gpt-4o")
	baseURL := envOr("AGENTCORE_PROVIDER_BASE_URL", "https://api.openai.com/v1")

	llm := llmprovider.NewOpenAIAdapter(model, baseURL, apiKey)

	tp, _, err := tracing.Init(context.Background(), tracing.Config{})
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	rec := metrics.New()

	rt, err := runtime.New(runtime.Config{
		LLM:              llm,
		Toolsets:         []tool.Toolset{demotools.Toolset{}},
		ToolsetCachePath: os.Getenv("AGENTCORE_TOOLSET_CACHE"),
		Tracer:           tracing.NewTracer(tp, "agentcore-server"),
		Metrics:          rec,
	})
	if err != nil {
		slog.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(11 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", rec.Handler())

	r.Post("/v1/run", handleRun(rt))
	r.Post("/v1/investigate", handleInvestigate(rt))

	srv := &http.Server{Addr: addr, Handler: r}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	slog.Info("agentcore-server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
}

func handleRun(rt *runtime.AgentRuntime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		result, sid, err := rt.RunAgent(r.Context(), req.SessionID, req.Ask, config.DefaultRunOptions())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, runResponse{SessionID: sid, Result: result.Result})
	}
}

func handleInvestigate(rt *runtime.AgentRuntime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req investigateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		result, sid, err := rt.InvestigateIssue(r.Context(), req.Issue, req.ResourceInstructions, req.Sections, config.DefaultRunOptions())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, runResponse{SessionID: sid, Result: result.Result})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
