package metrics

import (
	"context"
	"errors"
	"net/http"
	"tracklift/internal/logger"
)

// Server exposes a Registry's Prometheus series over HTTP (§6's per-worker
// metrics endpoint). Structurally mirrors the orchestrator's
// Start/Stop(ctx) shape: StartAsync returns immediately, Stop drains the
// in-flight scrape (if any) before the listener closes.
type Server struct {
	server *http.Server
	log    logger.Logger
}

// NewServer binds the registry's /metrics handler to addr (":9090" etc).
func NewServer(addr string, registry *Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log: logger.New("metrics.server"),
	}
}

// StartAsync starts the listener in a background goroutine. Bind errors
// other than a clean shutdown are logged, not returned, matching the
// fire-and-forget shape every other background worker in this module uses.
func (s *Server) StartAsync() {
	log := s.log.Function("StartAsync")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped unexpectedly", "error", err)
		}
	}()
	log.Info("metrics server listening", "addr", s.server.Addr)
}

// Stop gracefully shuts the listener down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	log := s.log.Function("Stop")
	if err := s.server.Shutdown(ctx); err != nil {
		return log.Err("metrics server shutdown failed", err)
	}
	return nil
}
