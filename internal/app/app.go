// Package app initializes the application: database pool, Genkit, stores,
// connectors and the HTTP server, wired together in dependency order.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapse-ai/synapse/api"
	"github.com/synapse-ai/synapse/internal/config"
)

// App is the application container. Setup fills it; Close releases its
// resources.
type App struct {
	Config   *config.Config
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool
	Server   *api.Server

	logger *slog.Logger
	cancel context.CancelFunc
}

// Close stops background work and releases the database pool.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.logger.Info("database pool closed")
	}
	return nil
}
