// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the chatbot's components: Genkit,
// the database pool, the conversation and knowledge stores, and the
// chat service.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kayphi/kayphi/internal/chat"
	"github.com/kayphi/kayphi/internal/config"
	"github.com/kayphi/kayphi/internal/conversation"
	"github.com/kayphi/kayphi/internal/knowledge"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit        *genkit.Genkit
	Embedder      ai.Embedder
	DBPool        *pgxpool.Pool
	Conversations *conversation.Store
	Knowledge     *knowledge.Store
	Chat          *chat.Service

	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		slog.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
