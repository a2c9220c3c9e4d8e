package activity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const (
	routeRecommendMode        = "explore"
	routeRecommendFunction    = "route_recommend"
	routeRecommendQuestStep   = 99
	routeRecommendPromptStep  = "AI-recommended travel course results!"
	routeRecommendInterestTag = "route_recommend"
)

var _ Service = (*ServiceImpl)(nil)

// Service records observational logs. Its methods never fail the caller.
type Service interface {
	LogRouteRecommendation(ctx context.Context, entry types.RouteRecommendationLog)
}

type ServiceImpl struct {
	logger     *slog.Logger
	repository Repository
}

func NewServiceImpl(repository Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		repository: repository,
	}
}

// AnonymizeUserID returns the hex SHA-256 of a user id.
func AnonymizeUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

func describePreferences(p types.RoutePreferences) string {
	var parts []string
	if len(p.Category) > 0 {
		parts = append(parts, "category="+strings.Join(p.Category, ","))
	}
	if len(p.Theme) > 0 {
		parts = append(parts, "theme="+strings.Join(p.Theme, ","))
	}
	if len(p.Districts) > 0 {
		parts = append(parts, "districts="+strings.Join(p.Districts, ","))
	}
	if p.TextQuery != "" {
		parts = append(parts, "text_query="+p.TextQuery)
	}
	if p.IncludeCart {
		parts = append(parts, "include_cart=true")
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// BuildChatLog renders the read-only summary row for a recommendation.
func BuildChatLog(entry types.RouteRecommendationLog) types.ChatLog {
	questIDs := make([]int64, 0, len(entry.Quests))
	for _, q := range entry.Quests {
		questIDs = append(questIDs, q.ID)
	}
	title := entry.Preferences.SessionTitle()

	return types.ChatLog{
		ID:                uuid.New(),
		UserID:            entry.UserID,
		UserMessage:       "Route recommendation request: " + describePreferences(entry.Preferences),
		AIResponse:        fmt.Sprintf("Recommended %d quests.", len(entry.Quests)),
		Mode:              routeRecommendMode,
		FunctionType:      routeRecommendFunction,
		ChatSessionID:     entry.SessionID,
		Title:             title,
		IsReadOnly:        true,
		QuestStep:         routeRecommendQuestStep,
		PromptStepText:    routeRecommendPromptStep,
		Options:           map[string]any{"quest_ids": questIDs},
		SelectedTheme:     title,
		SelectedDistricts: entry.Preferences.Districts,
		IncludeCart:       entry.Preferences.IncludeCart,
	}
}

// BuildLocationLogs renders one anonymized interest row per quest.
// Distance is only set when both the user and the quest have coordinates.
func BuildLocationLogs(entry types.RouteRecommendationLog) []types.LocationLog {
	anonymousID := AnonymizeUserID(entry.UserID)
	logs := make([]types.LocationLog, 0, len(entry.Quests))
	for _, q := range entry.Quests {
		l := types.LocationLog{
			AnonymousUserID: anonymousID,
			QuestID:         q.ID,
			PlaceID:         q.PlaceID,
			UserLatitude:    entry.UserLatitude,
			UserLongitude:   entry.UserLongitude,
			StartLatitude:   entry.StartLatitude,
			StartLongitude:  entry.StartLongitude,
			District:        q.District,
			InterestType:    routeRecommendInterestTag,
		}
		if d, ok := quest.DistanceTo(entry.UserLatitude, entry.UserLongitude, q.Latitude, q.Longitude); ok {
			rounded := math.Round(d*1000) / 1000
			l.DistanceFromQuestKm = &rounded
		}
		logs = append(logs, l)
	}
	return logs
}

func (s *ServiceImpl) LogRouteRecommendation(ctx context.Context, entry types.RouteRecommendationLog) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "LogRouteRecommendation", trace.WithAttributes(
		attribute.String("session.id", entry.SessionID.String()),
		attribute.Int("quests.count", len(entry.Quests)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "LogRouteRecommendation"), slog.String("session_id", entry.SessionID.String()))

	if err := s.repository.InsertChatLog(ctx, BuildChatLog(entry)); err != nil {
		l.WarnContext(ctx, "Failed to save chat log", slog.Any("error", err))
		span.RecordError(err)
	}

	if len(entry.Quests) == 0 {
		return
	}
	if err := s.repository.InsertLocationLogs(ctx, BuildLocationLogs(entry)); err != nil {
		l.WarnContext(ctx, "Failed to save location logs", slog.Any("error", err))
		span.RecordError(err)
		return
	}
	l.DebugContext(ctx, "Route recommendation logged", slog.Int("quests", len(entry.Quests)))
}
