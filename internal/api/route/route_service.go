package route

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-seoul-quest-api/app/observability/metrics"
	"github.com/FACorreiaa/go-seoul-quest-api/config"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/activity"
	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	questRAG "github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest_rag"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const (
	defaultRadiusKm         = 15.0
	defaultCandidateLimit   = 50
	defaultRerankCandidates = 20
	defaultMatchThreshold   = 0.6
	defaultMatchTopK        = 20

	pathLLM      = "llm"
	pathFallback = "fallback"
)

// ErrInvalidImage is returned when the request image is not valid base64.
var ErrInvalidImage = errors.New("invalid image encoding")

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	RecommendRoute(ctx context.Context, userID string, req types.RouteRecommendRequest) (*types.RouteRecommendResponse, error)
}

// ImageAnalyzer describes a photo of a place in free text.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, nearby []generativeAI.NearbyPlaceHint) (string, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	quests   quest.Repository
	rag      questRAG.Service
	vision   ImageAnalyzer
	reranker generativeAI.Reranker
	activity activity.Service
	cfg      config.RecommendationConfig
}

func NewServiceImpl(
	quests quest.Repository,
	rag questRAG.Service,
	vision ImageAnalyzer,
	reranker generativeAI.Reranker,
	activity activity.Service,
	cfg config.RecommendationConfig,
	logger *slog.Logger,
) *ServiceImpl {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = defaultRadiusKm
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	if cfg.RerankCandidates <= 0 {
		cfg.RerankCandidates = defaultRerankCandidates
	}
	if cfg.ImageMatchThreshold <= 0 {
		cfg.ImageMatchThreshold = defaultMatchThreshold
	}
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = defaultMatchTopK
	}
	return &ServiceImpl{
		logger:   logger,
		quests:   quests,
		rag:      rag,
		vision:   vision,
		reranker: reranker,
		activity: activity,
		cfg:      cfg,
	}
}

// DecodeImage accepts raw base64 or a data URL.
func DecodeImage(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return data, nil
}

func (s *ServiceImpl) RecommendRoute(ctx context.Context, userID string, req types.RouteRecommendRequest) (*types.RouteRecommendResponse, error) {
	ctx, span := otel.Tracer("RouteService").Start(ctx, "RecommendRoute", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("location.provided", req.Latitude != nil && req.Longitude != nil),
		attribute.Bool("image.provided", req.Image != ""),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "RecommendRoute"), slog.String("user_id", userID))
	started := time.Now()

	var image []byte
	if req.Image != "" {
		var err error
		if image, err = DecodeImage(req.Image); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Invalid image")
			return nil, err
		}
	}

	radiusKm := s.cfg.DefaultRadiusKm
	if req.RadiusKm != nil && *req.RadiusKm > 0 {
		radiusKm = *req.RadiusKm
	}

	completed, err := s.quests.GetUserCompletedQuests(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load completed quests")
		return nil, fmt.Errorf("failed to load completed quests: %w", err)
	}
	completedCategories := make(map[string]struct{}, len(completed))
	for _, category := range completed {
		if c := NormalizeCategory(category); c != "" {
			completedCategories[c] = struct{}{}
		}
	}

	mustVisit := s.resolveMustVisit(ctx, req.MustVisitPlaceID, completed)

	candidates, err := s.fetchCandidates(ctx, req.Latitude, req.Longitude, radiusKm)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load candidates")
		return nil, err
	}

	// the start point, when given, anchors both retrieval and ordering
	anchorLat, anchorLon := req.StartLatitude, req.StartLongitude
	if anchorLat == nil || anchorLon == nil {
		anchorLat, anchorLon = req.Latitude, req.Longitude
	}

	scoring := ScoringContext{
		PreferredCategories: req.Preferences.PreferredCategories(),
		CompletedCategories: completedCategories,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		RadiusKm:            radiusKm,
	}
	scoring.ImageMatches, scoring.RAGMatches = s.retrievalBoosts(ctx, image, req.Preferences.TextQuery, anchorLat, anchorLon, radiusKm)

	scored := make([]types.ScoredQuest, 0, len(candidates))
	for _, q := range candidates {
		if _, done := completed[q.ID]; done {
			continue
		}
		if mustVisit != nil && q.ID == mustVisit.ID {
			continue
		}
		scored = append(scored, scoring.Score(q))
	}

	var mustVisitScored *types.ScoredQuest
	if mustVisit != nil {
		mustVisitScored = &types.ScoredQuest{Quest: *mustVisit}
	}
	pool := newCandidatePool(scored, mustVisitScored, anchorLat, anchorLon, radiusKm)

	selected, path := s.selectItinerary(ctx, pool, scored, scoring, req.Preferences, completed)
	if selected == nil {
		selected = []types.ScoredQuest{}
	}
	for i := range selected {
		selected[i].IsNightView = IsNightView(selected[i].Quest)
	}

	sessionID := uuid.New()
	s.activity.LogRouteRecommendation(ctx, types.RouteRecommendationLog{
		UserID:         userID,
		SessionID:      sessionID,
		Preferences:    req.Preferences,
		Quests:         selected,
		UserLatitude:   req.Latitude,
		UserLongitude:  req.Longitude,
		StartLatitude:  req.StartLatitude,
		StartLongitude: req.StartLongitude,
	})

	m := metrics.Get()
	pathAttr := metric.WithAttributes(attribute.String("path", path))
	m.RouteRecommendRequestsTotal.Add(ctx, 1, pathAttr)
	m.RouteRecommendDurationSeconds.Record(ctx, time.Since(started).Seconds(), pathAttr)

	l.InfoContext(ctx, "Route recommended",
		slog.String("path", path),
		slog.Int("candidates", len(scored)),
		slog.Int("quests", len(selected)),
		slog.String("session_id", sessionID.String()))
	span.SetAttributes(attribute.String("selection.path", path), attribute.Int("quests.count", len(selected)))
	span.SetStatus(codes.Ok, "Route recommended")

	return &types.RouteRecommendResponse{
		Success:   true,
		Quests:    selected,
		Count:     len(selected),
		SessionID: sessionID.String(),
	}, nil
}

// resolveMustVisit finds the first quest of the requested place. Missing
// places, places without quests and completed quests yield nil.
func (s *ServiceImpl) resolveMustVisit(ctx context.Context, placeID *string, completed map[int64]string) *types.Quest {
	if placeID == nil || strings.TrimSpace(*placeID) == "" {
		return nil
	}
	l := s.logger.With(slog.String("method", "resolveMustVisit"), slog.String("place_id", *placeID))

	place, err := s.quests.GetPlaceByID(ctx, *placeID)
	if err != nil {
		if !errors.Is(err, quest.ErrNotFound) {
			l.WarnContext(ctx, "Failed to load must-visit place", slog.Any("error", err))
		}
		return nil
	}
	q, err := s.quests.GetFirstQuestForPlace(ctx, place.ID)
	if err != nil {
		if !errors.Is(err, quest.ErrNotFound) {
			l.WarnContext(ctx, "Failed to load must-visit quest", slog.Any("error", err))
		}
		return nil
	}
	if _, done := completed[q.ID]; done {
		l.DebugContext(ctx, "Must-visit quest already completed", slog.Int64("quest_id", q.ID))
		return nil
	}
	q.District = place.District
	q.PlaceImageURL = place.ImageURL
	if q.Place == nil {
		q.Place = place
	}
	return q
}

func (s *ServiceImpl) fetchCandidates(ctx context.Context, lat, lon *float64, radiusKm float64) ([]types.Quest, error) {
	if lat != nil && lon != nil {
		qs, err := s.quests.ListQuestsNear(ctx, *lat, *lon, radiusKm, s.cfg.CandidateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load nearby quests: %w", err)
		}
		return qs, nil
	}
	qs, err := s.quests.ListActiveQuests(ctx, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load active quests: %w", err)
	}
	return qs, nil
}

// retrievalBoosts runs the image and free-text searches. Either one
// failing only disables its boost.
func (s *ServiceImpl) retrievalBoosts(ctx context.Context, image []byte, textQuery string, anchorLat, anchorLon *float64, radiusKm float64) (imageMatches, ragMatches map[int64]float64) {
	opts := types.RAGSearchOptions{
		Threshold: s.cfg.ImageMatchThreshold,
		TopK:      s.cfg.RAGTopK,
		Latitude:  anchorLat,
		Longitude: anchorLon,
		RadiusKm:  radiusKm,
	}

	var g errgroup.Group
	if len(image) > 0 {
		g.Go(func() error {
			imageMatches = s.imageMatches(ctx, image, opts)
			return nil
		})
	}
	if text := strings.TrimSpace(textQuery); text != "" {
		g.Go(func() error {
			ragMatches = s.textMatches(ctx, text, opts)
			return nil
		})
	}
	_ = g.Wait()
	return imageMatches, ragMatches
}

func (s *ServiceImpl) imageMatches(ctx context.Context, image []byte, opts types.RAGSearchOptions) map[int64]float64 {
	l := s.logger.With(slog.String("method", "imageMatches"))

	analysis, err := s.vision.AnalyzeImage(ctx, image, nil)
	if err != nil {
		l.WarnContext(ctx, "Image analysis failed, skipping image boost", slog.Any("error", err))
		return nil
	}
	query := generativeAI.PlaceQuery(generativeAI.ExtractPlaceInfo(analysis))
	if query == "" {
		query = analysis
	}
	return s.textMatches(ctx, query, opts)
}

func (s *ServiceImpl) textMatches(ctx context.Context, text string, opts types.RAGSearchOptions) map[int64]float64 {
	matches, err := s.rag.SearchQuestsByText(ctx, text, opts)
	if err != nil {
		s.logger.WarnContext(ctx, "Quest RAG search failed, skipping boost", slog.Any("error", err))
		return nil
	}
	out := make(map[int64]float64, len(matches))
	for _, m := range matches {
		out[m.Quest.ID] = m.Similarity
	}
	return out
}

// selectItinerary tries the LLM path and falls back to the heuristic
// selector. It reports which path produced the result.
func (s *ServiceImpl) selectItinerary(ctx context.Context, pool *candidatePool, scored []types.ScoredQuest, scoring ScoringContext, prefs types.RoutePreferences, completed map[int64]string) ([]types.ScoredQuest, string) {
	if !s.cfg.UseAI || s.reranker == nil || len(scored) < routeStops {
		return pool.selectFallback(), pathFallback
	}

	picks, err := s.rerank(ctx, pool, scored, scoring, prefs, completed)
	if err != nil {
		s.logger.WarnContext(ctx, "LLM route selection unavailable, using fallback", slog.Any("error", err))
		reason := "error"
		if errors.Is(err, generativeAI.ErrNotEnoughSelections) {
			reason = "too_few_selections"
		}
		metrics.Get().RerankFallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		return pool.selectFallback(), pathFallback
	}
	return pool.mergeRerank(picks), pathLLM
}

// rerank sends the best-scored candidates to the LLM and resolves the
// ids it picked back to scored quests.
func (s *ServiceImpl) rerank(ctx context.Context, pool *candidatePool, scored []types.ScoredQuest, scoring ScoringContext, prefs types.RoutePreferences, completed map[int64]string) ([]types.ScoredQuest, error) {
	top := make([]types.ScoredQuest, len(scored))
	copy(top, scored)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].RecommendationScore > top[j].RecommendationScore
	})
	if len(top) > s.cfg.RerankCandidates {
		top = top[:s.cfg.RerankCandidates]
	}

	result, err := s.reranker.RecommendRoute(ctx, top, prefs, len(completed))
	if err != nil {
		return nil, err
	}
	if len(result.SelectedQuestIDs) < routeStops {
		return nil, fmt.Errorf("%w: got %d", generativeAI.ErrNotEnoughSelections, len(result.SelectedQuestIDs))
	}

	known := make(map[int64]types.ScoredQuest, len(pool.regular)+len(pool.night))
	for _, q := range pool.regular {
		known[q.ID] = q
	}
	for _, q := range pool.night {
		known[q.ID] = q
	}

	picks := make([]types.ScoredQuest, 0, routeStops)
	for _, id := range result.SelectedQuestIDs[:routeStops] {
		if q, ok := known[id]; ok {
			picks = append(picks, q)
			continue
		}
		if _, done := completed[id]; done {
			continue
		}
		q, err := s.quests.GetQuestByID(ctx, id)
		if err != nil || !q.IsActive {
			s.logger.WarnContext(ctx, "Dropping unknown LLM pick", slog.Int64("quest_id", id), slog.Any("error", err))
			continue
		}
		picks = append(picks, pool.withAnchorDistance(scoring.Score(*q)))
	}
	return picks, nil
}
