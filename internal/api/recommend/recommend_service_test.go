package recommend

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/route"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

type MockQuestRepository struct {
	quest.Repository
	mock.Mock
}

func (m *MockQuestRepository) GetQuestByID(ctx context.Context, questID int64) (*types.Quest, error) {
	args := m.Called(ctx, questID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Quest), args.Error(1)
}

func (m *MockQuestRepository) ListQuestsNear(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]types.Quest, error) {
	args := m.Called(ctx, lat, lon, radiusKm, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Quest), args.Error(1)
}

type MockRAGService struct {
	mock.Mock
}

func (m *MockRAGService) SearchQuestsByText(ctx context.Context, text string, opts types.RAGSearchOptions) ([]types.QuestMatch, error) {
	args := m.Called(ctx, text, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.QuestMatch), args.Error(1)
}

func (m *MockRAGService) IndexQuest(ctx context.Context, q types.Quest) error {
	return m.Called(ctx, q).Error(0)
}

func (m *MockRAGService) IndexMissing(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}

type MockImageAnalyzer struct {
	mock.Mock
}

func (m *MockImageAnalyzer) AnalyzeImage(ctx context.Context, image []byte, nearby []generativeAI.NearbyPlaceHint) (string, error) {
	args := m.Called(ctx, image, nearby)
	return args.String(0), args.Error(1)
}

func f64(v float64) *float64 { return &v }

func setupService() (*ServiceImpl, *MockQuestRepository, *MockRAGService, *MockImageAnalyzer) {
	quests := new(MockQuestRepository)
	rag := new(MockRAGService)
	vision := new(MockImageAnalyzer)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServiceImpl(quests, rag, vision, logger), quests, rag, vision
}

func TestServiceImpl_NearbyQuests(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults, rounds distance and caches", func(t *testing.T) {
		svc, quests, _, _ := setupService()
		quests.On("ListQuestsNear", mock.Anything, 37.5796, 126.977, DefaultNearbyRadiusKm, DefaultNearbyLimit).
			Return([]types.Quest{{ID: 1, Name: "Gyeongbokgung", DistanceKm: f64(0.12345)}}, nil).Once()

		got, err := svc.NearbyQuests(ctx, 37.5796, 126.977, 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 0.12, *got[0].DistanceKm)

		again, err := svc.NearbyQuests(ctx, 37.5796, 126.977, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, got, again)
		quests.AssertNumberOfCalls(t, "ListQuestsNear", 1)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		svc, quests, _, _ := setupService()
		quests.On("ListQuestsNear", mock.Anything, 1.0, 2.0, 3.0, 4).Return(nil, nil).Once()

		got, err := svc.NearbyQuests(ctx, 1, 2, 3, 4)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("repository error", func(t *testing.T) {
		svc, quests, _, _ := setupService()
		quests.On("ListQuestsNear", mock.Anything, 1.0, 2.0, 3.0, 4).Return(nil, errors.New("boom")).Once()

		_, err := svc.NearbyQuests(ctx, 1, 2, 3, 4)
		assert.EqualError(t, err, "boom")
	})
}

const palaceAnalysis = `Place Name: Gyeongbokgung
Category: palace
Description: Royal palace
Features: throne hall
Confidence: high`

func TestServiceImpl_SimilarPlaces(t *testing.T) {
	ctx := context.Background()
	image := []byte("fake-jpeg")
	encoded := base64.StdEncoding.EncodeToString(image)

	t.Run("with gps", func(t *testing.T) {
		svc, quests, rag, vision := setupService()
		lat, lon := f64(37.5796), f64(126.977)

		quests.On("ListQuestsNear", mock.Anything, 37.5796, 126.977, DefaultSimilarRadiusKm, visionHintLimit).
			Return([]types.Quest{{ID: 1, Name: "Gyeongbokgung", Category: "history", DistanceKm: f64(0.3)}}, nil).Once()
		vision.On("AnalyzeImage", mock.Anything, image, []generativeAI.NearbyPlaceHint{
			{Name: "Gyeongbokgung", Category: "history", DistanceKm: 0.3},
		}).Return(palaceAnalysis, nil).Once()
		rag.On("SearchQuestsByText", mock.Anything, "Gyeongbokgung palace Royal palace throne hall", types.RAGSearchOptions{
			Threshold: similarPlacesThreshold,
			TopK:      DefaultSimilarLimit,
			RadiusKm:  DefaultSimilarRadiusKm,
			Latitude:  lat,
			Longitude: lon,
		}).Return([]types.QuestMatch{
			{Quest: types.Quest{ID: 1, DistanceKm: f64(0.5)}, Similarity: 0.8},
		}, nil).Once()

		resp, err := svc.SimilarPlaces(ctx, types.SimilarPlacesRequest{Image: encoded, Latitude: lat, Longitude: lon})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "Gyeongbokgung", resp.PlaceInfo.PlaceName)
		assert.Equal(t, "high", resp.PlaceInfo.Confidence)
		// 0.4 + 0.8*0.4 + (1-0.5)*0.2
		assert.InDelta(t, 0.82, resp.Recommendations[0].Confidence, 1e-9)
		assert.Equal(t, types.SimilarPlacesFilter{GPSEnabled: true, RadiusKm: DefaultSimilarRadiusKm}, resp.Filter)
		mock.AssertExpectationsForObjects(t, quests, rag, vision)
	})

	t.Run("without gps uses raw analysis when nothing parses", func(t *testing.T) {
		svc, quests, rag, vision := setupService()
		vision.On("AnalyzeImage", mock.Anything, image, []generativeAI.NearbyPlaceHint(nil)).
			Return("a stone pagoda at dusk", nil).Once()
		rag.On("SearchQuestsByText", mock.Anything, "a stone pagoda at dusk", types.RAGSearchOptions{
			Threshold: similarPlacesThreshold,
			TopK:      3,
			RadiusKm:  2,
		}).Return([]types.QuestMatch{}, nil).Once()

		resp, err := svc.SimilarPlaces(ctx, types.SimilarPlacesRequest{Image: "data:image/jpeg;base64," + encoded, RadiusKm: 2, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Count)
		assert.NotNil(t, resp.Recommendations)
		assert.False(t, resp.Filter.GPSEnabled)
		quests.AssertNotCalled(t, "ListQuestsNear", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid image", func(t *testing.T) {
		svc, _, _, vision := setupService()
		_, err := svc.SimilarPlaces(ctx, types.SimilarPlacesRequest{Image: "%%%"})
		assert.ErrorIs(t, err, route.ErrInvalidImage)
		vision.AssertNotCalled(t, "AnalyzeImage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("vision failure", func(t *testing.T) {
		svc, _, rag, vision := setupService()
		vision.On("AnalyzeImage", mock.Anything, image, mock.Anything).Return("", errors.New("quota")).Once()

		_, err := svc.SimilarPlaces(ctx, types.SimilarPlacesRequest{Image: encoded})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota")
		rag.AssertNotCalled(t, "SearchQuestsByText", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("hint failure is tolerated", func(t *testing.T) {
		svc, quests, rag, vision := setupService()
		quests.On("ListQuestsNear", mock.Anything, 1.0, 2.0, DefaultSimilarRadiusKm, visionHintLimit).
			Return(nil, errors.New("db down")).Once()
		vision.On("AnalyzeImage", mock.Anything, image, []generativeAI.NearbyPlaceHint(nil)).Return(palaceAnalysis, nil).Once()
		rag.On("SearchQuestsByText", mock.Anything, mock.Anything, mock.Anything).Return([]types.QuestMatch{}, nil).Once()

		resp, err := svc.SimilarPlaces(ctx, types.SimilarPlacesRequest{Image: encoded, Latitude: f64(1), Longitude: f64(2)})
		require.NoError(t, err)
		assert.True(t, resp.Filter.GPSEnabled)
	})
}

func TestServiceImpl_QuestDetail(t *testing.T) {
	svc, quests, _, _ := setupService()
	quests.On("GetQuestByID", mock.Anything, int64(7)).
		Return(&types.Quest{ID: 7, District: "Jongno-gu"}, nil).Once()
	quests.On("GetQuestByID", mock.Anything, int64(8)).
		Return(nil, quest.ErrNotFound).Once()

	q, err := svc.QuestDetail(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Jongno-gu", q.District)

	_, err = svc.QuestDetail(context.Background(), 8)
	assert.ErrorIs(t, err, quest.ErrNotFound)
}
