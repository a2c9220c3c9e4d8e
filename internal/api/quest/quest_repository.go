package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-seoul-quest-api/app/db"
	"github.com/FACorreiaa/go-seoul-quest-api/app/observability/metrics"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

// ErrNotFound is returned when a quest or place does not exist.
var ErrNotFound = errors.New("not found")

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	GetQuestByID(ctx context.Context, questID int64) (*types.Quest, error)
	ListActiveQuests(ctx context.Context, limit int) ([]types.Quest, error)
	ListQuestsNear(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]types.Quest, error)
	// GetUserCompletedQuests maps each completed quest id to its category.
	GetUserCompletedQuests(ctx context.Context, userID string) (map[int64]string, error)
	GetPlaceByID(ctx context.Context, placeID string) (*types.Place, error)
	GetFirstQuestForPlace(ctx context.Context, placeID string) (*types.Quest, error)

	// Vector search over quest_text_embeddings (pgvector, cosine).
	SearchQuestsByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]types.QuestMatch, error)
	UpsertQuestEmbedding(ctx context.Context, questID int64, ragText string, embedding []float32) error
	ListQuestsWithoutEmbeddings(ctx context.Context, limit int) ([]types.Quest, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewRepository(pgpool database.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

// questColumns is shared by every query that returns quests joined to
// their place; scanQuest reads them in this order.
const questColumns = `
            q.id,
            COALESCE(q.place_id, ''),
            q.name,
            COALESCE(q.description, ''),
            COALESCE(NULLIF(q.category, ''), p.category, ''),
            q.latitude,
            q.longitude,
            q.reward_point,
            q.completion_count,
            q.is_active,
            COALESCE(q.metadata, '{}'::jsonb),
            COALESCE(p.id, ''),
            COALESCE(p.name, ''),
            COALESCE(p.category, ''),
            COALESCE(p.district, ''),
            COALESCE(p.address, ''),
            COALESCE(p.description, ''),
            COALESCE(p.image_url, ''),
            COALESCE(p.metadata, '{}'::jsonb)`

// haversineSQL is the great-circle distance in km from ($1, $2) to the quest.
const haversineSQL = `(2 * 6371 * ASIN(SQRT(
                POWER(SIN(RADIANS(q.latitude - $1) / 2), 2) +
                COS(RADIANS($1)) * COS(RADIANS(q.latitude)) *
                POWER(SIN(RADIANS(q.longitude - $2) / 2), 2))))`

func scanQuest(row pgx.Row, extra ...any) (types.Quest, error) {
	var q types.Quest
	var questMeta, placeMeta []byte
	var place types.Place

	dest := []any{
		&q.ID, &q.PlaceID, &q.Name, &q.Description, &q.Category,
		&q.Latitude, &q.Longitude, &q.RewardPoint, &q.CompletionCount, &q.IsActive,
		&questMeta,
		&place.ID, &place.Name, &place.Category, &place.District, &place.Address,
		&place.Description, &place.ImageURL, &placeMeta,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return types.Quest{}, err
	}

	q.Metadata = decodeMetadata(questMeta)
	if place.ID != "" {
		place.Metadata = decodeMetadata(placeMeta)
		q.Place = &place
		q.District = place.District
		q.PlaceImageURL = place.ImageURL
	}
	return q, nil
}

func decodeMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func (r *RepositoryImpl) queryQuests(ctx context.Context, operation, query string, args ...any) ([]types.Quest, error) {
	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveQuery(ctx, operation, start, err)
		return nil, err
	}
	defer rows.Close()

	var quests []types.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			metrics.ObserveQuery(ctx, operation, start, err)
			return nil, fmt.Errorf("failed to scan quest row: %w", err)
		}
		quests = append(quests, q)
	}
	err = rows.Err()
	metrics.ObserveQuery(ctx, operation, start, err)
	if err != nil {
		return nil, err
	}
	return quests, nil
}

func (r *RepositoryImpl) GetQuestByID(ctx context.Context, questID int64) (*types.Quest, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "GetQuestByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.Int64("quest.id", questID),
	))
	defer span.End()

	query := `SELECT ` + questColumns + `
        FROM quests q
        LEFT JOIN places p ON p.id = q.place_id
        WHERE q.id = $1`

	start := time.Now()
	q, err := scanQuest(r.pgpool.QueryRow(ctx, query, questID))
	metrics.ObserveQuery(ctx, "GetQuestByID", start, ignoreNoRows(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quest %d: %w", questID, ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch quest")
		return nil, fmt.Errorf("failed to fetch quest %d: %w", questID, err)
	}
	return &q, nil
}

func (r *RepositoryImpl) ListActiveQuests(ctx context.Context, limit int) ([]types.Quest, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "ListActiveQuests", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := `SELECT ` + questColumns + `
        FROM quests q
        LEFT JOIN places p ON p.id = q.place_id
        WHERE q.is_active = TRUE
        ORDER BY q.id
        LIMIT $1`

	quests, err := r.queryQuests(ctx, "ListActiveQuests", query, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list active quests", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list active quests")
		return nil, fmt.Errorf("failed to list active quests: %w", err)
	}
	span.SetAttributes(attribute.Int("quests.count", len(quests)))
	return quests, nil
}

// ListQuestsNear returns active quests within radiusKm of (lat, lon),
// nearest first, with DistanceKm populated.
func (r *RepositoryImpl) ListQuestsNear(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]types.Quest, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "ListQuestsNear", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.Float64("latitude", lat),
		attribute.Float64("longitude", lon),
		attribute.Float64("radius_km", radiusKm),
	))
	defer span.End()

	query := `SELECT ` + questColumns + `,
            ` + haversineSQL + ` AS distance_km
        FROM quests q
        LEFT JOIN places p ON p.id = q.place_id
        WHERE q.is_active = TRUE
          AND q.latitude IS NOT NULL
          AND q.longitude IS NOT NULL
          AND ` + haversineSQL + ` <= $3
        ORDER BY distance_km
        LIMIT $4`

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, lat, lon, radiusKm, limit)
	if err != nil {
		metrics.ObserveQuery(ctx, "ListQuestsNear", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query nearby quests")
		return nil, fmt.Errorf("failed to query nearby quests: %w", err)
	}
	defer rows.Close()

	var quests []types.Quest
	for rows.Next() {
		var distance float64
		q, err := scanQuest(rows, &distance)
		if err != nil {
			metrics.ObserveQuery(ctx, "ListQuestsNear", start, err)
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan nearby quest row: %w", err)
		}
		d := distance
		q.DistanceKm = &d
		quests = append(quests, q)
	}
	err = rows.Err()
	metrics.ObserveQuery(ctx, "ListQuestsNear", start, err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed iterating nearby quests: %w", err)
	}
	span.SetAttributes(attribute.Int("quests.count", len(quests)))
	return quests, nil
}

func (r *RepositoryImpl) GetUserCompletedQuests(ctx context.Context, userID string) (map[int64]string, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "GetUserCompletedQuests", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "user_quests"),
	))
	defer span.End()

	query := `
        SELECT uq.quest_id, COALESCE(q.category, '')
        FROM user_quests uq
        LEFT JOIN quests q ON q.id = uq.quest_id
        WHERE uq.user_id = $1 AND uq.status = 'completed'`

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		metrics.ObserveQuery(ctx, "GetUserCompletedQuests", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query completed quests")
		return nil, fmt.Errorf("failed to query completed quests: %w", err)
	}
	defer rows.Close()

	completed := make(map[int64]string)
	for rows.Next() {
		var questID int64
		var category string
		if err := rows.Scan(&questID, &category); err != nil {
			metrics.ObserveQuery(ctx, "GetUserCompletedQuests", start, err)
			return nil, fmt.Errorf("failed to scan completed quest row: %w", err)
		}
		completed[questID] = category
	}
	err = rows.Err()
	metrics.ObserveQuery(ctx, "GetUserCompletedQuests", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed iterating completed quests: %w", err)
	}
	return completed, nil
}

func (r *RepositoryImpl) GetPlaceByID(ctx context.Context, placeID string) (*types.Place, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "GetPlaceByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("place.id", placeID),
	))
	defer span.End()

	query := `
        SELECT id, name, COALESCE(category, ''), COALESCE(district, ''), COALESCE(address, ''),
               COALESCE(description, ''), COALESCE(image_url, ''), latitude, longitude,
               COALESCE(metadata, '{}'::jsonb)
        FROM places
        WHERE id = $1`

	var p types.Place
	var meta []byte
	start := time.Now()
	err := r.pgpool.QueryRow(ctx, query, placeID).Scan(
		&p.ID, &p.Name, &p.Category, &p.District, &p.Address,
		&p.Description, &p.ImageURL, &p.Latitude, &p.Longitude, &meta,
	)
	metrics.ObserveQuery(ctx, "GetPlaceByID", start, ignoreNoRows(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("place %s: %w", placeID, ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch place")
		return nil, fmt.Errorf("failed to fetch place %s: %w", placeID, err)
	}
	p.Metadata = decodeMetadata(meta)
	return &p, nil
}

// GetFirstQuestForPlace returns the lowest-id quest attached to a place.
func (r *RepositoryImpl) GetFirstQuestForPlace(ctx context.Context, placeID string) (*types.Quest, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "GetFirstQuestForPlace", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("place.id", placeID),
	))
	defer span.End()

	query := `SELECT ` + questColumns + `
        FROM quests q
        LEFT JOIN places p ON p.id = q.place_id
        WHERE q.place_id = $1
        ORDER BY q.id
        LIMIT 1`

	start := time.Now()
	q, err := scanQuest(r.pgpool.QueryRow(ctx, query, placeID))
	metrics.ObserveQuery(ctx, "GetFirstQuestForPlace", start, ignoreNoRows(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quest for place %s: %w", placeID, ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch quest for place")
		return nil, fmt.Errorf("failed to fetch quest for place %s: %w", placeID, err)
	}
	return &q, nil
}

// SearchQuestsByEmbedding returns active quests whose text embedding has a
// cosine similarity of at least threshold, most similar first.
func (r *RepositoryImpl) SearchQuestsByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]types.QuestMatch, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "SearchQuestsByEmbedding", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.Int("embedding.dimension", len(embedding)),
		attribute.Float64("threshold", threshold),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SearchQuestsByEmbedding"))

	query := `
        SELECT ` + questColumns + `,
            e.rag_text,
            1 - (e.embedding <=> $1::vector) AS similarity
        FROM quest_text_embeddings e
        JOIN quests q ON q.id = e.quest_id
        LEFT JOIN places p ON p.id = q.place_id
        WHERE q.is_active = TRUE
          AND 1 - (e.embedding <=> $1::vector) >= $2
        ORDER BY e.embedding <=> $1::vector
        LIMIT $3`

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, FormatVector(embedding), threshold, limit)
	if err != nil {
		metrics.ObserveQuery(ctx, "SearchQuestsByEmbedding", start, err)
		l.ErrorContext(ctx, "Failed to query similar quests", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to search similar quests: %w", err)
	}
	defer rows.Close()

	var matches []types.QuestMatch
	for rows.Next() {
		var ragText string
		var similarity float64
		q, err := scanQuest(rows, &ragText, &similarity)
		if err != nil {
			metrics.ObserveQuery(ctx, "SearchQuestsByEmbedding", start, err)
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan similar quest row: %w", err)
		}
		matches = append(matches, types.QuestMatch{Quest: q, Similarity: similarity, RAGText: ragText})
	}
	err = rows.Err()
	metrics.ObserveQuery(ctx, "SearchQuestsByEmbedding", start, err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed iterating similar quests: %w", err)
	}

	l.DebugContext(ctx, "Similarity search finished", slog.Int("matches", len(matches)))
	span.SetAttributes(attribute.Int("matches.count", len(matches)))
	span.SetStatus(codes.Ok, "Similar quests found")
	return matches, nil
}

func (r *RepositoryImpl) UpsertQuestEmbedding(ctx context.Context, questID int64, ragText string, embedding []float32) error {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "UpsertQuestEmbedding", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "quest_text_embeddings"),
		attribute.Int64("quest.id", questID),
	))
	defer span.End()

	query := `
        INSERT INTO quest_text_embeddings (quest_id, rag_text, embedding, updated_at)
        VALUES ($1, $2, $3::vector, NOW())
        ON CONFLICT (quest_id) DO UPDATE
        SET rag_text = EXCLUDED.rag_text,
            embedding = EXCLUDED.embedding,
            updated_at = NOW()`

	start := time.Now()
	_, err := r.pgpool.Exec(ctx, query, questID, ragText, FormatVector(embedding))
	metrics.ObserveQuery(ctx, "UpsertQuestEmbedding", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upsert embedding")
		return fmt.Errorf("failed to upsert embedding for quest %d: %w", questID, err)
	}
	return nil
}

func (r *RepositoryImpl) ListQuestsWithoutEmbeddings(ctx context.Context, limit int) ([]types.Quest, error) {
	ctx, span := otel.Tracer("QuestRepository").Start(ctx, "ListQuestsWithoutEmbeddings", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := `SELECT ` + questColumns + `
        FROM quests q
        LEFT JOIN places p ON p.id = q.place_id
        LEFT JOIN quest_text_embeddings e ON e.quest_id = q.id
        WHERE q.is_active = TRUE AND e.quest_id IS NULL
        ORDER BY q.id
        LIMIT $1`

	quests, err := r.queryQuests(ctx, "ListQuestsWithoutEmbeddings", query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list quests without embeddings")
		return nil, fmt.Errorf("failed to list quests without embeddings: %w", err)
	}
	return quests, nil
}

// FormatVector renders an embedding in pgvector's text input format.
func FormatVector(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
