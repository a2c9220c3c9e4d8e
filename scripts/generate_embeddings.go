package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	database "github.com/FACorreiaa/go-seoul-quest-api/app/db"
	appLogger "github.com/FACorreiaa/go-seoul-quest-api/app/logger"
	"github.com/FACorreiaa/go-seoul-quest-api/config"
	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	questRAG "github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest_rag"
)

var batchSize = flag.Int("batch", 20, "quests embedded per batch")

// Builds RAG text for every active quest that has no text embedding yet
// and stores the embedding. Safe to re-run.
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := appLogger.NewLogger(cfg.Mode, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready")
		os.Exit(1)
	}

	aiClient, err := generativeAI.NewAIClient(ctx, cfg.Gemini)
	if err != nil {
		logger.Error("Failed to create AI client", slog.Any("error", err))
		os.Exit(1)
	}
	embeddings := generativeAI.NewEmbeddingService(aiClient, cfg.Cache.EmbeddingTTL, cfg.Cache.CleanupInterval, logger)
	rag := questRAG.NewServiceImpl(quest.NewRepository(pool, logger), embeddings, logger)

	logger.Info("Starting quest embedding generation", slog.Int("batch_size", *batchSize))
	total := 0
	for {
		indexed, err := rag.IndexMissing(ctx, *batchSize)
		total += indexed
		if err != nil {
			logger.Error("Embedding generation stopped", slog.Int("indexed", total), slog.Any("error", err))
			os.Exit(1)
		}
		// a batch with no successes means the rest keep failing
		if indexed == 0 {
			break
		}
	}
	logger.Info("Quest embedding generation completed", slog.Int("indexed", total))
}
