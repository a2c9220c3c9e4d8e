package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-seoul-quest-api/app/db"
	"github.com/FACorreiaa/go-seoul-quest-api/config"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/activity"
	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	questRAG "github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest_rag"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/recommend"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/route"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	QuestRAG         questRAG.Service
	RouteHandler     *route.Handler
	RecommendHandler *recommend.Handler
}

// NewContainer opens the database pool and the Gemini client and builds
// every repository, service and handler on top of them.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	aiClient, err := generativeAI.NewAIClient(ctx, cfg.Gemini)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}

	// repositories
	questRepo := quest.NewRepository(pool, logger)
	activityRepo := activity.NewRepository(pool, logger)

	// ai services
	embeddings := generativeAI.NewEmbeddingService(aiClient, cfg.Cache.EmbeddingTTL, cfg.Cache.CleanupInterval, logger)
	vision := generativeAI.NewVisionService(aiClient, logger)
	reranker := generativeAI.NewRouteReranker(aiClient, logger)

	// domain services
	ragService := questRAG.NewServiceImpl(questRepo, embeddings, logger)
	activityService := activity.NewServiceImpl(activityRepo, logger)
	routeService := route.NewServiceImpl(questRepo, ragService, vision, reranker, activityService, cfg.Recommendation, logger)
	recommendService := recommend.NewServiceImpl(questRepo, ragService, vision, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		QuestRAG:         ragService,
		RouteHandler:     route.NewHandler(routeService, logger),
		RecommendHandler: recommend.NewHandler(recommendService, logger),
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
