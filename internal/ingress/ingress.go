// Package ingress runs the TLS webhook listener the chat platform posts
// updates to. A received body is unicode-unescaped and handed raw to the
// worker pool's queue — the only work done on the request goroutine, so a
// slow worker pool backs up as queued bodies rather than slow HTTP
// responses. JSON decoding happens on the worker side, not here.
package ingress

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hkarel/telebot/internal/tgapi"
)

// Queue is the sink ingress hands raw update bodies to. Satisfied by
// *worker.Pool.
type Queue interface {
	Enqueue(body []byte)
}

// Server is the TLS-terminated HTTP listener for the webhook path.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server listening on addr, serving only path, delegating
// every received body to queue.
func New(addr, path, certFile, keyFile string, queue Queue, logger *slog.Logger) (*Server, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS certificate: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, handleWebhook(queue, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			TLSConfig: &tls.Config{
				MinVersion:   tls.VersionTLS13,
				Certificates: []tls.Certificate{cert},
			},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}, nil
}

// Start serves TLS traffic until the listener fails or Shutdown is
// called, in which case http.ErrServerClosed is swallowed.
func (s *Server) Start() error {
	s.logger.Info("webhook listener starting", slog.String("listen", s.httpServer.Addr))
	err := s.httpServer.ListenAndServeTLS("", "")
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook listener: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("webhook listener shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook only reads, unescapes, and enqueues the body. It never
// decodes JSON and never fails the request for a malformed body — the
// response is always 200 on a complete read, per the platform's webhook
// contract; an unparseable update is the worker's problem to drop, not
// this handler's problem to report.
func handleWebhook(queue Queue, logger *slog.Logger) http.HandlerFunc {
	const maxBodyBytes = 1 << 20 // 1MB: well above any realistic single update.

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			logger.Warn("reading webhook body failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body = tgapi.UnescapeUnicode(body)

		queue.Enqueue(body)
		w.WriteHeader(http.StatusOK)
	}
}
