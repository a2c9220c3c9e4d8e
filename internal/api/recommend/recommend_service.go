package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	questRAG "github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest_rag"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/route"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const (
	DefaultNearbyRadiusKm  = 5.0
	DefaultNearbyLimit     = 10
	DefaultSimilarRadiusKm = 5.0
	DefaultSimilarLimit    = 5

	similarPlacesThreshold = 0.65
	visionHintLimit        = 5
	nearbyCacheTTL         = 30 * time.Second
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	NearbyQuests(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]types.Quest, error)
	SimilarPlaces(ctx context.Context, req types.SimilarPlacesRequest) (*types.SimilarPlacesResponse, error)
	QuestDetail(ctx context.Context, questID int64) (*types.Quest, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	quests quest.Repository
	rag    questRAG.Service
	vision route.ImageAnalyzer
	nearby *cache.Cache
}

func NewServiceImpl(quests quest.Repository, rag questRAG.Service, vision route.ImageAnalyzer, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		quests: quests,
		rag:    rag,
		vision: vision,
		nearby: cache.New(nearbyCacheTTL, 2*nearbyCacheTTL),
	}
}

func nearbyCacheKey(lat, lon, radiusKm float64, limit int) string {
	return fmt.Sprintf("%.4f:%.4f:%.2f:%d", lat, lon, radiusKm, limit)
}

// NearbyQuests lists active quests around a point, nearest first. Results
// are cached briefly per rounded coordinate.
func (s *ServiceImpl) NearbyQuests(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]types.Quest, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "NearbyQuests", trace.WithAttributes(
		attribute.Float64("latitude", lat),
		attribute.Float64("longitude", lon),
		attribute.Float64("radius_km", radiusKm),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}

	key := nearbyCacheKey(lat, lon, radiusKm, limit)
	if cached, ok := s.nearby.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]types.Quest), nil
	}

	quests, err := s.quests.ListQuestsNear(ctx, lat, lon, radiusKm, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list nearby quests")
		return nil, err
	}
	if quests == nil {
		quests = []types.Quest{}
	}
	for i := range quests {
		if d := quests[i].DistanceKm; d != nil {
			rounded := math.Round(*d*100) / 100
			quests[i].DistanceKm = &rounded
		}
	}
	s.nearby.SetDefault(key, quests)
	return quests, nil
}

// SimilarPlaces identifies the place in a photo and returns the quests
// whose text embeddings are closest to the model's description.
func (s *ServiceImpl) SimilarPlaces(ctx context.Context, req types.SimilarPlacesRequest) (*types.SimilarPlacesResponse, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "SimilarPlaces", trace.WithAttributes(
		attribute.Bool("gps.enabled", req.Latitude != nil && req.Longitude != nil),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SimilarPlaces"))

	image, err := route.DecodeImage(req.Image)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	radiusKm := req.RadiusKm
	if radiusKm <= 0 {
		radiusKm = DefaultSimilarRadiusKm
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	gps := req.Latitude != nil && req.Longitude != nil

	var hints []generativeAI.NearbyPlaceHint
	if gps {
		nearby, err := s.quests.ListQuestsNear(ctx, *req.Latitude, *req.Longitude, radiusKm, visionHintLimit)
		if err != nil {
			l.WarnContext(ctx, "Failed to load nearby hints", slog.Any("error", err))
		}
		for _, q := range nearby {
			h := generativeAI.NearbyPlaceHint{Name: q.Name, Category: q.Category}
			if q.DistanceKm != nil {
				h.DistanceKm = *q.DistanceKm
			}
			hints = append(hints, h)
		}
	}

	analysis, err := s.vision.AnalyzeImage(ctx, image, hints)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Image analysis failed")
		return nil, fmt.Errorf("failed to analyse image: %w", err)
	}
	info := generativeAI.ExtractPlaceInfo(analysis)
	query := generativeAI.PlaceQuery(info)
	if query == "" {
		query = analysis
	}

	opts := types.RAGSearchOptions{
		Threshold: similarPlacesThreshold,
		TopK:      limit,
		RadiusKm:  radiusKm,
	}
	if gps {
		opts.Latitude, opts.Longitude = req.Latitude, req.Longitude
	}
	matches, err := s.rag.SearchQuestsByText(ctx, query, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Similarity search failed")
		return nil, fmt.Errorf("failed to search similar places: %w", err)
	}

	recommendations := make([]types.SimilarPlace, 0, len(matches))
	for _, m := range matches {
		similarity := m.Similarity
		recommendations = append(recommendations, types.SimilarPlace{
			QuestMatch: m,
			Confidence: generativeAI.ConfidenceScore(info, &similarity, m.Quest.DistanceKm),
		})
	}

	l.InfoContext(ctx, "Similar places found",
		slog.String("place_name", info.PlaceName),
		slog.Int("count", len(recommendations)))
	span.SetAttributes(attribute.Int("results.count", len(recommendations)))
	span.SetStatus(codes.Ok, "Similar places found")

	return &types.SimilarPlacesResponse{
		Success:         true,
		Count:           len(recommendations),
		Recommendations: recommendations,
		PlaceInfo:       info,
		Filter: types.SimilarPlacesFilter{
			GPSEnabled: gps,
			RadiusKm:   radiusKm,
		},
	}, nil
}

func (s *ServiceImpl) QuestDetail(ctx context.Context, questID int64) (*types.Quest, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "QuestDetail", trace.WithAttributes(
		attribute.Int64("quest.id", questID),
	))
	defer span.End()

	q, err := s.quests.GetQuestByID(ctx, questID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return q, nil
}
