// Package server exposes orchestrator state and operations over HTTP, plus a
// websocket stream of bus events.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aristath/autodev/internal/agents"
	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/orchestrator"
)

// Pipeline is the part of the orchestrator the API drives.
type Pipeline interface {
	StartPipeline(ctx context.Context, input orchestrator.StoryInput) (*orchestrator.RunHandle, error)
	Cancel() bool
	Status() orchestrator.Status
	Result() *orchestrator.ResultSnapshot
}

// HealthSource provides agent liveness snapshots.
type HealthSource interface {
	Snapshot() map[string]agents.Status
	LastChecked() time.Time
}

// Config wires a Server.
type Config struct {
	Pipeline Pipeline
	Health   HealthSource
	Registry *agents.Registry
	Log      *eventlog.Log
	Bus      *events.EventBus // nil disables /api/events

	// RunContext bounds runs started through the API. Runs must outlive the
	// request that started them, so this is never a request context.
	RunContext context.Context

	PingInterval time.Duration // Websocket keepalive (default 30s)
}

// Server serves the HTTP API.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	if cfg.RunContext == nil {
		cfg.RunContext = context.Background()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/result", s.handleResult)
	s.mux.HandleFunc("POST /api/runs", s.handleStartRun)
	s.mux.HandleFunc("POST /api/runs/cancel", s.handleCancelRun)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: API shutdown: %v", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
