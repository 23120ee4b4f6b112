// Package adminhttp exposes the ops surface operators hit from curl or a
// monitoring probe: health, metrics, and a reload trigger. It is not a
// human UI — no templates, no static assets — just small handlers
// mounted on a chi router: JSON for health and reload, plain text for
// metrics.
package adminhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Stats is the set of gauges Server reports at /metrics. Callers build one
// fresh per request from live collaborators, so values are never stale.
type Stats struct {
	QueueLength       int
	MediaGroupCount   int
	ConfigParceErrors int64
	TriggerCount      int
	ChatCount         int
}

// StatsFunc produces a fresh Stats snapshot on demand.
type StatsFunc func() Stats

// ReloadFunc re-reads triggers, chats, and state from disk and swaps them
// into the running bot. It returns an error describing what failed to
// reload; a partial reload is not attempted.
type ReloadFunc func(ctx context.Context) error

// Server is the admin HTTP surface, separate from the webhook listener so
// it can be bound to a loopback or private address.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server bound to addr, backed by stats and reload.
func New(addr string, stats StatsFunc, reload ReloadFunc, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(slogMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", handleHealthz)
	r.Get("/metrics", handleMetrics(stats))
	r.Post("/debug/reload", handleReload(reload, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("admin listener starting", slog.String("listen", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func slogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("admin request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleMetrics(stats StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := stats()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "telebot_queue_length %d\n", s.QueueLength)
		fmt.Fprintf(w, "telebot_media_group_count %d\n", s.MediaGroupCount)
		fmt.Fprintf(w, "telebot_config_parse_errors_total %d\n", s.ConfigParceErrors)
		fmt.Fprintf(w, "telebot_trigger_count %d\n", s.TriggerCount)
		fmt.Fprintf(w, "telebot_chat_count %d\n", s.ChatCount)
	}
}

func handleReload(reload ReloadFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reload(r.Context()); err != nil {
			logger.Error("reload failed", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"})
	}
}
