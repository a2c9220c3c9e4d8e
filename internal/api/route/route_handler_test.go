package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/auth"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) RecommendRoute(ctx context.Context, userID string, req types.RouteRecommendRequest) (*types.RouteRecommendResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RouteRecommendResponse), args.Error(1)
}

func newRouteRequest(t *testing.T, body string, authenticated bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ai_station/route-recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req = req.WithContext(auth.WithUserID(req.Context(), testUserID))
	}
	return req
}

func TestHandler_RecommendRoute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, logger)
		svc.On("RecommendRoute", mock.Anything, testUserID, mock.MatchedBy(func(r types.RouteRecommendRequest) bool {
			return len(r.Preferences.Theme) == 2 && r.Preferences.Theme[1] == "Culture" && *r.Latitude == 37.5796
		})).Return(&types.RouteRecommendResponse{
			Success:   true,
			Quests:    []types.ScoredQuest{{Quest: types.Quest{ID: 1, Name: "Gyeongbokgung"}, RecommendationScore: 0.8}},
			Count:     1,
			SessionID: "session-1",
		}, nil).Once()

		rr := httptest.NewRecorder()
		h.RecommendRoute(rr, newRouteRequest(t, `{
			"preferences": {"theme": ["History", {"name": "Culture"}], "mood": "calm"},
			"latitude": 37.5796,
			"longitude": 126.9770
		}`, true))

		require.Equal(t, http.StatusOK, rr.Code)
		var body types.RouteRecommendResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "session-1", body.SessionID)
		assert.False(t, body.Quests[0].IsNightView)
		svc.AssertExpectations(t)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockService)
		rr := httptest.NewRecorder()
		NewHandler(svc, logger).RecommendRoute(rr, newRouteRequest(t, `{}`, false))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"malformed json", `{"preferences":`},
		{"latitude out of range", `{"latitude": 123.0, "longitude": 126.9}`},
		{"negative radius", `{"radius_km": -1}`},
		{"unknown top-level key", `{"mood": "calm"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			rr := httptest.NewRecorder()
			NewHandler(svc, logger).RecommendRoute(rr, newRouteRequest(t, tt.body, true))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			svc.AssertNotCalled(t, "RecommendRoute", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("invalid image", func(t *testing.T) {
		svc := new(MockService)
		svc.On("RecommendRoute", mock.Anything, testUserID, mock.Anything).
			Return(nil, fmt.Errorf("%w: illegal base64 data", ErrInvalidImage)).Once()

		rr := httptest.NewRecorder()
		NewHandler(svc, logger).RecommendRoute(rr, newRouteRequest(t, `{"image": "@@"}`, true))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unexpected failure", func(t *testing.T) {
		svc := new(MockService)
		svc.On("RecommendRoute", mock.Anything, testUserID, mock.Anything).
			Return(nil, errors.New("failed to load nearby quests: connection reset")).Once()

		rr := httptest.NewRecorder()
		NewHandler(svc, logger).RecommendRoute(rr, newRouteRequest(t, `{}`, true))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Contains(t, body["error"], "connection reset")
	})
}
