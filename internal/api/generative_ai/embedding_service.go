package generativeAI

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var _ Embedder = (*EmbeddingService)(nil)

// EmbeddingService caches text embeddings and collapses concurrent
// requests for the same text into one upstream call.
type EmbeddingService struct {
	embedder Embedder
	cache    *cache.Cache
	group    singleflight.Group
	logger   *slog.Logger
}

func NewEmbeddingService(embedder Embedder, ttl, cleanup time.Duration, logger *slog.Logger) *EmbeddingService {
	return &EmbeddingService{
		embedder: embedder,
		cache:    cache.New(ttl, cleanup),
		logger:   logger,
	}
}

func embeddingCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("EmbeddingService").Start(ctx, "EmbedText", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		err := fmt.Errorf("cannot embed empty text")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty input")
		return nil, err
	}

	key := embeddingCacheKey(text)
	if cached, found := s.cache.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]float32), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := s.group.Do(key, func() (any, error) {
		embedding, err := s.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, embedding, cache.DefaultExpiration)
		return embedding, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Embedding request failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	span.SetAttributes(attribute.Bool("singleflight.shared", shared))
	return v.([]float32), nil
}
