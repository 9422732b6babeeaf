// Package app wires configuration, storage, the model backend, and the
// pipeline services into one runnable application.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Selleo/mentingo-sub006/internal/config"
	"github.com/Selleo/mentingo-sub006/internal/document"
	"github.com/Selleo/mentingo-sub006/internal/mentor"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Threads   *thread.Store
	Documents *document.Store
	Mentor    *mentor.Service

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse initialization order. In-flight
// streamed turns are drained before the pool closes so every started turn
// is persisted.
func (a *App) Close() error {
	if a.Mentor != nil {
		a.Mentor.Close()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
