// Package api provides the HTTP REST API for the mentor pipeline.
//
// Endpoints:
//
//	GET  /health                  - liveness probe
//	GET  /ready                   - readiness probe (pings the database)
//	POST /api/threads             - open a mentor thread
//	GET  /api/threads             - list the caller's threads
//	GET  /api/threads/{id}        - thread with visible messages
//	POST /api/chat                - single-shot chat turn
//	POST /api/chat/stream         - streaming chat turn (SSE)
//	POST /api/threads/{id}/judge  - judge a thread, completing it
//	POST /api/documents           - register a document
//	PUT  /api/documents/{id}/chunks - replace a document's embedded chunks
//	POST /api/lessons/{id}/documents   - link a document to a lesson
//	DELETE /api/lessons/{id}/documents/{docID} - unlink (may GC the document)
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, logging, caller identification
//   - response.go: JSON helpers and error-to-status mapping
//   - health.go: probes
//   - thread.go, chat.go, judge.go, document.go: endpoint handlers
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Selleo/mentingo-sub006/internal/document"
	"github.com/Selleo/mentingo-sub006/internal/mentor"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris-style connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout = 30 * time.Second
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the mentor API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	health   *HealthHandler
	thread   *ThreadHandler
	chat     *ChatHandler
	judge    *JudgeHandler
	document *DocumentHandler
}

// NewServer wires all handlers. pool backs the readiness probe.
func NewServer(svc *mentor.Service, documents *document.Store, pool *pgxpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:      mux,
		logger:   logger,
		health:   NewHealthHandler(pool, logger),
		thread:   NewThreadHandler(svc, logger),
		chat:     NewChatHandler(svc, logger),
		judge:    NewJudgeHandler(svc, logger),
		document: NewDocumentHandler(documents, logger),
	}

	s.health.RegisterRoutes(mux)
	s.thread.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.judge.RegisterRoutes(mux)
	s.document.RegisterRoutes(mux)

	return s
}

// Handler returns the mux with middleware applied.
// Order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully. Streaming responses have no WriteTimeout; the turn timeout
// inside the pipeline bounds them instead.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}
