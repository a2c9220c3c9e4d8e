package generativeAI

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

// RouteStops is how many quests one itinerary holds.
const RouteStops = 4

// ErrNotEnoughSelections is returned when the LLM picks fewer than
// RouteStops distinct quests.
var ErrNotEnoughSelections = errors.New("llm selected too few quests")

// Reranker picks an itinerary out of pre-scored candidates.
type Reranker interface {
	RecommendRoute(ctx context.Context, candidates []types.ScoredQuest, prefs types.RoutePreferences, completedCount int) (*types.RouteRerankResult, error)
}

var _ Reranker = (*RouteReranker)(nil)

type RouteReranker struct {
	generator TextGenerator
	breaker   *gobreaker.CircuitBreaker[string]
	logger    *slog.Logger
}

func NewRouteReranker(generator TextGenerator, logger *slog.Logger) *RouteReranker {
	return &RouteReranker{
		generator: generator,
		breaker:   newBreaker[string]("gemini-route-rerank", time.Minute, logger),
		logger:    logger,
	}
}

func buildRouteRerankPrompt(candidates []types.ScoredQuest, prefs types.RoutePreferences, completedCount int) string {
	var sb strings.Builder
	sb.WriteString("You are a Seoul travel planner. Choose exactly 4 quests that form an enjoyable one-day route.\n")
	sb.WriteString("Prefer a mix of categories, keep walking distances reasonable and place at most one night-view spot, last.\n\n")

	themes := prefs.PreferredCategories()
	if len(themes) == 0 {
		themes = []string{"any"}
	}
	fmt.Fprintf(&sb, "Preferred themes: %s\n", strings.Join(themes, ", "))
	if len(prefs.Districts) > 0 {
		fmt.Fprintf(&sb, "Preferred districts: %s\n", strings.Join(prefs.Districts, ", "))
	}
	fmt.Fprintf(&sb, "Quests already completed by the user: %d\n\n", completedCount)

	sb.WriteString("Candidates:\n")
	for _, c := range candidates {
		district := c.District
		if district == "" {
			district = "unknown"
		}
		fmt.Fprintf(&sb, "- id=%d | %s | category=%s | district=%s | lat=%s lon=%s | reward=%d | completions=%d | %s\n",
			c.ID, c.Name, c.Category, district,
			formatFloatPtr(c.Latitude), formatFloatPtr(c.Longitude),
			c.RewardPoint, c.CompletionCount, truncateRunes(c.Description, 100))
	}

	sb.WriteString(`
Respond with JSON only, in this shape:
{"selected_quest_ids": [1, 2, 3, 4], "reasoning": "one or two sentences"}`)
	return sb.String()
}

// parseRerankResponse decodes the LLM reply, dropping duplicate ids.
func parseRerankResponse(text string) (*types.RouteRerankResult, error) {
	var result types.RouteRerankResult
	if err := json.Unmarshal([]byte(cleanJSONResponse(text)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	seen := make(map[int64]struct{}, len(result.SelectedQuestIDs))
	ids := result.SelectedQuestIDs[:0]
	for _, id := range result.SelectedQuestIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	result.SelectedQuestIDs = ids

	if len(ids) < RouteStops {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughSelections, len(ids))
	}
	return &result, nil
}

func (r *RouteReranker) RecommendRoute(ctx context.Context, candidates []types.ScoredQuest, prefs types.RoutePreferences, completedCount int) (*types.RouteRerankResult, error) {
	ctx, span := otel.Tracer("RouteReranker").Start(ctx, "RecommendRoute", trace.WithAttributes(
		attribute.Int("candidates.count", len(candidates)),
		attribute.Int("completed.count", completedCount),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "RecommendRoute"))

	if len(candidates) < RouteStops {
		return nil, fmt.Errorf("%w: only %d candidates", ErrNotEnoughSelections, len(candidates))
	}

	prompt := buildRouteRerankPrompt(candidates, prefs, completedCount)
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.3),
		ResponseMIMEType: "application/json",
	}

	text, err := r.breaker.Execute(func() (string, error) {
		return r.generator.GenerateContent(ctx, prompt, cfg)
	})
	if err != nil {
		l.WarnContext(ctx, "LLM rerank call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "LLM call failed")
		return nil, fmt.Errorf("rerank call failed: %w", err)
	}

	result, err := parseRerankResponse(text)
	if err != nil {
		l.WarnContext(ctx, "LLM rerank response unusable", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unusable LLM response")
		return nil, err
	}

	l.DebugContext(ctx, "LLM rerank selected quests",
		slog.Any("quest_ids", result.SelectedQuestIDs),
		slog.String("reasoning", result.Reasoning))
	span.SetStatus(codes.Ok, "Route reranked")
	return result, nil
}
