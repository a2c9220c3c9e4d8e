package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-seoul-quest-api/app/db"
	"github.com/FACorreiaa/go-seoul-quest-api/app/observability/metrics"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	InsertChatLog(ctx context.Context, entry types.ChatLog) error
	InsertLocationLogs(ctx context.Context, entries []types.LocationLog) error
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

func (r *RepositoryImpl) InsertChatLog(ctx context.Context, entry types.ChatLog) error {
	ctx, span := otel.Tracer("ActivityRepository").Start(ctx, "InsertChatLog", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "chat_logs"),
		attribute.String("chat.session_id", entry.ChatSessionID.String()),
	))
	defer span.End()

	options, err := json.Marshal(entry.Options)
	if err != nil {
		return fmt.Errorf("failed to encode chat log options: %w", err)
	}

	query := `
        INSERT INTO chat_logs (
            id, user_id, user_message, ai_response, mode, function_type,
            chat_session_id, title, is_read_only, quest_step, prompt_step_text,
            options, selected_theme, selected_districts, include_cart
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	start := time.Now()
	_, err = r.pgpool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.UserMessage, entry.AIResponse, entry.Mode, entry.FunctionType,
		entry.ChatSessionID, entry.Title, entry.IsReadOnly, entry.QuestStep, entry.PromptStepText,
		options, entry.SelectedTheme, entry.SelectedDistricts, entry.IncludeCart,
	)
	metrics.ObserveQuery(ctx, "InsertChatLog", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert chat log")
		return fmt.Errorf("failed to insert chat log: %w", err)
	}
	return nil
}

// InsertLocationLogs writes all rows in one transaction.
func (r *RepositoryImpl) InsertLocationLogs(ctx context.Context, entries []types.LocationLog) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, span := otel.Tracer("ActivityRepository").Start(ctx, "InsertLocationLogs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "anonymous_location_logs"),
		attribute.Int("rows", len(entries)),
	))
	defer span.End()

	start := time.Now()
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		metrics.ObserveQuery(ctx, "InsertLocationLogs", start, err)
		span.RecordError(err)
		return fmt.Errorf("failed to begin location log transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        INSERT INTO anonymous_location_logs (
            anonymous_user_id, quest_id, place_id, user_latitude, user_longitude,
            start_latitude, start_longitude, distance_from_quest_km, district,
            interest_type, treasure_hunt_count
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, e := range entries {
		if _, err := tx.Exec(ctx, query,
			e.AnonymousUserID, e.QuestID, nullIfEmpty(e.PlaceID), e.UserLatitude, e.UserLongitude,
			e.StartLatitude, e.StartLongitude, e.DistanceFromQuestKm, nullIfEmpty(e.District),
			e.InterestType, e.TreasureHuntCount,
		); err != nil {
			metrics.ObserveQuery(ctx, "InsertLocationLogs", start, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to insert location log")
			return fmt.Errorf("failed to insert location log for quest %d: %w", e.QuestID, err)
		}
	}

	err = tx.Commit(ctx)
	metrics.ObserveQuery(ctx, "InsertLocationLogs", start, err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit location logs: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
