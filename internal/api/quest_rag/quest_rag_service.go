package questRAG

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-seoul-quest-api/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const (
	maxRAGTextLength          = 2000
	maxPlaceDescriptionLength = 300
	maxPlaceDetailsLength     = 500
	defaultTopK               = 10
)

var _ Service = (*ServiceImpl)(nil)

// Service is the text retrieval layer over quest embeddings.
type Service interface {
	SearchQuestsByText(ctx context.Context, text string, opts types.RAGSearchOptions) ([]types.QuestMatch, error)
	IndexQuest(ctx context.Context, q types.Quest) error
	IndexMissing(ctx context.Context, batchSize int) (int, error)
}

// EmbeddingStore is the part of the quest repository the RAG layer needs.
type EmbeddingStore interface {
	SearchQuestsByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]types.QuestMatch, error)
	UpsertQuestEmbedding(ctx context.Context, questID int64, ragText string, embedding []float32) error
	ListQuestsWithoutEmbeddings(ctx context.Context, limit int) ([]types.Quest, error)
}

var _ EmbeddingStore = (quest.Repository)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	store    EmbeddingStore
	embedder generativeAI.Embedder
}

func NewServiceImpl(store EmbeddingStore, embedder generativeAI.Embedder, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		store:    store,
		embedder: embedder,
	}
}

// BuildQuestRAGText renders the text that gets embedded for a quest.
func BuildQuestRAGText(q types.Quest) string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, "[Quest] "+q.Name)
	}
	if q.Description != "" {
		parts = append(parts, "Description: "+q.Description)
	}
	if q.Category != "" {
		parts = append(parts, "Category: "+q.Category)
	}
	parts = append(parts, "")

	if p := q.Place; p != nil {
		if p.Name != "" {
			parts = append(parts, "[Place] "+p.Name)
		}
		if p.Address != "" {
			parts = append(parts, "Address: "+p.Address)
		}
		if p.Category != "" {
			parts = append(parts, "Place Category: "+p.Category)
		}
		if p.Description != "" {
			parts = append(parts, "Place Description: "+firstRunes(p.Description, maxPlaceDescriptionLength)+"...")
		}
		if details, ok := p.Metadata["rag_text"].(string); ok && details != "" {
			parts = append(parts, "", "[Place Details]", firstRunes(details, maxPlaceDetailsLength))
		}
		parts = append(parts, "")
	}

	text := strings.Join(parts, "\n")
	if len([]rune(text)) > maxRAGTextLength {
		text = firstRunes(text, maxRAGTextLength) + "..."
	}
	return text
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SearchQuestsByText embeds text and returns the most similar active
// quests. With a location and radius set, quests with known coordinates
// outside the radius are dropped and the rest get DistanceKm.
func (s *ServiceImpl) SearchQuestsByText(ctx context.Context, text string, opts types.RAGSearchOptions) ([]types.QuestMatch, error) {
	ctx, span := otel.Tracer("QuestRAGService").Start(ctx, "SearchQuestsByText", trace.WithAttributes(
		attribute.Int("query.length", len(text)),
		attribute.Float64("threshold", opts.Threshold),
		attribute.Int("top_k", opts.TopK),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SearchQuestsByText"))

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		metrics.ExternalCallFailed(ctx, "embedding")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return nil, fmt.Errorf("failed to embed search text: %w", err)
	}

	matches, err := s.store.SearchQuestsByEmbedding(ctx, embedding, opts.Threshold, topK*2)
	if err != nil {
		metrics.ExternalCallFailed(ctx, "vector_search")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Vector search failed")
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	filterByRadius := opts.Latitude != nil && opts.Longitude != nil && opts.RadiusKm > 0
	results := make([]types.QuestMatch, 0, len(matches))
	for _, m := range matches {
		if filterByRadius && m.Quest.HasCoordinates() {
			d := quest.CalculateDistance(*opts.Latitude, *opts.Longitude, *m.Quest.Latitude, *m.Quest.Longitude)
			if d > opts.RadiusKm {
				continue
			}
			rounded := math.Round(d*100) / 100
			m.Quest.DistanceKm = &rounded
		}
		results = append(results, m)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}

	l.DebugContext(ctx, "RAG search finished",
		slog.Int("candidates", len(matches)),
		slog.Int("results", len(results)))
	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "RAG search finished")
	return results, nil
}

// IndexQuest builds, embeds and stores the RAG text of one quest.
func (s *ServiceImpl) IndexQuest(ctx context.Context, q types.Quest) error {
	ctx, span := otel.Tracer("QuestRAGService").Start(ctx, "IndexQuest", trace.WithAttributes(
		attribute.Int64("quest.id", q.ID),
	))
	defer span.End()

	text := BuildQuestRAGText(q)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("quest %d has no indexable text", q.ID)
	}

	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return fmt.Errorf("failed to embed quest %d: %w", q.ID, err)
	}

	if err := s.store.UpsertQuestEmbedding(ctx, q.ID, text, embedding); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upsert failed")
		return err
	}
	return nil
}

// IndexMissing indexes up to batchSize quests that have no embedding yet.
// Failures on individual quests are logged and skipped.
func (s *ServiceImpl) IndexMissing(ctx context.Context, batchSize int) (int, error) {
	l := s.logger.With(slog.String("method", "IndexMissing"))

	quests, err := s.store.ListQuestsWithoutEmbeddings(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, q := range quests {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := s.IndexQuest(ctx, q); err != nil {
			l.WarnContext(ctx, "Failed to index quest", slog.Int64("quest_id", q.ID), slog.Any("error", err))
			continue
		}
		indexed++
	}
	l.InfoContext(ctx, "Indexed quests", slog.Int("indexed", indexed), slog.Int("candidates", len(quests)))
	return indexed, nil
}
