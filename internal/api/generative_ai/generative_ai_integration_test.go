//go:build integration

package generativeAI

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-seoul-quest-api/config"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

func integrationConfig() config.GeminiConfig {
	return config.GeminiConfig{
		APIKey:            os.Getenv("GOOGLE_GEMINI_API_KEY"),
		TextModel:         "gemini-2.0-flash",
		VisionModel:       "gemini-2.0-flash",
		EmbeddingModel:    "text-embedding-004",
		RequestsPerSecond: 2,
		Burst:             1,
		Timeout:           30 * time.Second,
	}
}

func TestMain(m *testing.M) {
	if os.Getenv("GOOGLE_GEMINI_API_KEY") == "" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestAIClient_GenerateContent_Integration(t *testing.T) {
	ctx := context.Background()
	client, err := NewAIClient(ctx, integrationConfig())
	require.NoError(t, err)

	response, err := client.GenerateContent(ctx, "What is the capital of South Korea? Answer in one word.", &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(response), "seoul")
}

func TestAIClient_EmbedText_Integration(t *testing.T) {
	ctx := context.Background()
	client, err := NewAIClient(ctx, integrationConfig())
	require.NoError(t, err)

	svc := NewEmbeddingService(client, time.Minute, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	first, err := svc.EmbedText(ctx, "Gyeongbokgung Palace, Joseon dynasty royal palace")
	require.NoError(t, err)
	assert.Len(t, first, 768)

	second, err := svc.EmbedText(ctx, "Gyeongbokgung Palace, Joseon dynasty royal palace")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRouteReranker_Integration(t *testing.T) {
	ctx := context.Background()
	client, err := NewAIClient(ctx, integrationConfig())
	require.NoError(t, err)

	lat, lon := 37.5796, 126.9770
	names := []string{"Gyeongbokgung", "Bukchon Hanok Village", "Jogyesa", "Insadong", "Cheonggyecheon", "N Seoul Tower"}
	var candidates []types.ScoredQuest
	for i, name := range names {
		candidates = append(candidates, types.ScoredQuest{Quest: types.Quest{
			ID: int64(i + 1), Name: name, Category: "history", Latitude: &lat, Longitude: &lon, RewardPoint: 100,
		}})
	}

	reranker := NewRouteReranker(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	result, err := reranker.RecommendRoute(ctx, candidates, types.RoutePreferences{Theme: types.Labels{"history"}}, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(result.SelectedQuestIDs), RouteStops)
}
