package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	coreapi "github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/anthropic"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapse-ai/synapse/api"
	"github.com/synapse-ai/synapse/db"
	"github.com/synapse-ai/synapse/internal/chat"
	"github.com/synapse-ai/synapse/internal/config"
	"github.com/synapse-ai/synapse/internal/conversation"
	"github.com/synapse-ai/synapse/internal/database"
	"github.com/synapse-ai/synapse/internal/ingest"
	"github.com/synapse-ai/synapse/internal/knowledge"
	"github.com/synapse-ai/synapse/internal/notion"
	"github.com/synapse-ai/synapse/internal/rag"
	"github.com/synapse-ai/synapse/internal/ratelimit"
	"github.com/synapse-ai/synapse/internal/slack"
	"github.com/synapse-ai/synapse/internal/source"
)

// Setup creates and initializes the application. On error everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := genkit.LookupEmbedder(g, coreapi.NewName("openai", cfg.EmbedderModel))
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	// Background goroutines (rate limit sweeping) stop when this context
	// is canceled by Close.
	appCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Server = buildServer(appCtx, a, logger)
	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := database.NewPool(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the OpenAI plugin, which serves
// both chat and embeddings. The Anthropic plugin is added when its API key
// is present so Claude models can be selected per request.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	var g *genkit.Genkit
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}, &anthropic.Anthropic{}))
	} else {
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
	}
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	return g, nil
}

// buildServer wires the stores, connectors and services into the HTTP
// server.
func buildServer(ctx context.Context, a *App, logger *slog.Logger) *api.Server {
	cfg := a.Config

	knowledgeStore := knowledge.New(a.Pool, a.Embedder, logger.With("component", "knowledge"))
	retriever := rag.NewRetriever(knowledgeStore, logger.With("component", "retriever"))
	sources := source.NewStore(a.Pool, logger.With("component", "sources"))
	conversations := conversation.NewStore(a.Pool, logger.With("component", "conversations"))

	slackConnector := slack.NewConnector(logger.With("connector", "slack"))
	registry := ingest.NewRegistry()
	registry.Register(source.TypeNotion, notion.NewConnector(logger.With("connector", "notion")))
	registry.Register(source.TypeSlack, slackConnector)
	pipeline := ingest.NewPipeline(registry, knowledgeStore, sources, logger.With("component", "ingest"))

	limiter := ratelimit.NewFixedWindow(logger.With("component", "ratelimit"))
	limiter.Start(ctx)

	chatService := chat.NewService(a.Genkit, conversations, retriever, cfg, logger.With("component", "chat"))

	return api.NewServer(api.Deps{
		Logger:        logger.With("component", "api"),
		Auth:          api.HeaderAuth{},
		Limiter:       limiter,
		Chat:          chatService,
		Conversations: conversations,
		Sources:       sources,
		Pipeline:      pipeline,
		SlackNamer:    slackConnector,
		DB:            a.Pool,
	})
}
