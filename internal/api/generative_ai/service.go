package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-seoul-quest-api/app/observability/metrics"
	"github.com/FACorreiaa/go-seoul-quest-api/config"
)

// ErrMissingAPIKey is returned when no Gemini API key is configured.
var ErrMissingAPIKey = errors.New("GOOGLE_GEMINI_API_KEY is not set")

// TextGenerator produces a completion for a text prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error)
}

// ImageAnalyzer produces a completion for a prompt plus one inline image.
type ImageAnalyzer interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

var (
	_ TextGenerator = (*AIClient)(nil)
	_ ImageAnalyzer = (*AIClient)(nil)
	_ Embedder      = (*AIClient)(nil)
)

type AIClient struct {
	client         *genai.Client
	textModel      string
	visionModel    string
	embeddingModel string
	limiter        *rate.Limiter
	timeout        time.Duration
}

func NewAIClient(ctx context.Context, cfg config.GeminiConfig) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	if cfg.APIKey == "" {
		span.RecordError(ErrMissingAPIKey)
		span.SetStatus(codes.Error, "API key not set")
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client:         client,
		textModel:      cfg.TextModel,
		visionModel:    cfg.VisionModel,
		embeddingModel: cfg.EmbeddingModel,
		limiter:        rate.NewLimiter(limit, burst),
		timeout:        cfg.Timeout,
	}, nil
}

// acquire waits for the shared Gemini rate limiter and applies the
// configured per-call timeout.
func (ai *AIClient) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ai.limiter.Wait(ctx); err != nil {
		return ctx, func() {}, fmt.Errorf("gemini rate limiter: %w", err)
	}
	if ai.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, ai.timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

func (ai *AIClient) GenerateContent(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateContent", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.textModel),
	))
	defer span.End()

	callCtx, cancel, err := ai.acquire(ctx)
	defer cancel()
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	result, err := ai.client.Models.GenerateContent(callCtx, ai.textModel, genai.Text(prompt), cfg)
	if err != nil {
		metrics.ExternalCallFailed(ctx, "llm")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	responseText := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return responseText, nil
}

func (ai *AIClient) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateWithImage", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.Int("image.bytes", len(image)),
		attribute.String("model", ai.visionModel),
	))
	defer span.End()

	callCtx, cancel, err := ai.acquire(ctx)
	defer cancel()
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	result, err := ai.client.Models.GenerateContent(callCtx, ai.visionModel, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		metrics.ExternalCallFailed(ctx, "vlm")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to analyze image")
		return "", fmt.Errorf("failed to analyze image: %w", err)
	}

	span.SetStatus(codes.Ok, "Image analyzed")
	return result.Text(), nil
}

func (ai *AIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "EmbedText", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
		attribute.String("model", ai.embeddingModel),
	))
	defer span.End()

	callCtx, cancel, err := ai.acquire(ctx)
	defer cancel()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	resp, err := ai.client.Models.EmbedContent(callCtx, ai.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		metrics.ExternalCallFailed(ctx, "embedding")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to embed text")
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		err := errors.New("embedding response was empty")
		span.RecordError(err)
		return nil, err
	}

	values := resp.Embeddings[0].Values
	span.SetAttributes(attribute.Int("embedding.dimension", len(values)))
	return values, nil
}
