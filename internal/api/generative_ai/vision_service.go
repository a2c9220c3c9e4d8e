package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const placeAnalysisPrompt = `You are a Seoul tourism expert. Analyze this image and provide:

Analysis Requirements:
1. Identify the exact place/location
2. Describe architectural style, colors, distinctive features
3. Historical/cultural context (if known)
4. Key characteristics of this place

Respond using exactly these lines:
Place Name: [specific name]
Category: [tourist spot/restaurant/cafe/park/historic site, etc.]
Description: [2-3 sentences describing the place]
Features: [visual characteristics and special points]
Confidence: [high/medium/low]
`

// NearbyPlaceHint is a GPS candidate offered to the vision model.
type NearbyPlaceHint struct {
	Name       string
	Category   string
	DistanceKm float64
}

type VisionService struct {
	analyzer ImageAnalyzer
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *slog.Logger
}

func NewVisionService(analyzer ImageAnalyzer, logger *slog.Logger) *VisionService {
	return &VisionService{
		analyzer: analyzer,
		breaker:  newBreaker[string]("gemini-vision", 30*time.Second, logger),
		logger:   logger,
	}
}

func buildPlaceAnalysisPrompt(nearby []NearbyPlaceHint) string {
	if len(nearby) == 0 {
		return placeAnalysisPrompt
	}
	var sb strings.Builder
	sb.WriteString(placeAnalysisPrompt)
	sb.WriteString("\nReference: Nearby places within 1km (GPS-based):\n")
	for i, p := range nearby {
		if i == 5 {
			break
		}
		category := p.Category
		if category == "" {
			category = "N/A"
		}
		fmt.Fprintf(&sb, "- %s (%s) - %.2fkm\n", p.Name, category, p.DistanceKm)
	}
	sb.WriteString("\nIf the image matches any of these candidates, prioritize them.")
	return sb.String()
}

// AnalyzeImage asks the vision model to describe the place in the photo.
func (s *VisionService) AnalyzeImage(ctx context.Context, image []byte, nearby []NearbyPlaceHint) (string, error) {
	ctx, span := otel.Tracer("VisionService").Start(ctx, "AnalyzeImage", trace.WithAttributes(
		attribute.Int("image.bytes", len(image)),
		attribute.Int("nearby.count", len(nearby)),
	))
	defer span.End()

	if len(image) == 0 {
		return "", errors.New("image is empty")
	}

	mimeType := http.DetectContentType(image)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	text, err := s.breaker.Execute(func() (string, error) {
		return s.analyzer.GenerateWithImage(ctx, buildPlaceAnalysisPrompt(nearby), image, mimeType)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Image analysis failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Image analysis failed")
		return "", fmt.Errorf("image analysis failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("image analysis returned no text")
	}
	span.SetStatus(codes.Ok, "Image analyzed")
	return text, nil
}

var placeInfoLabels = []struct {
	prefixes []string
	set      func(*types.PlaceInfo, string)
}{
	{[]string{"장소명:", "Place Name:"}, func(p *types.PlaceInfo, v string) { p.PlaceName = v }},
	{[]string{"카테고리:", "Category:"}, func(p *types.PlaceInfo, v string) { p.Category = v }},
	{[]string{"설명:", "Description:"}, func(p *types.PlaceInfo, v string) { p.Description = v }},
	{[]string{"특징:", "Features:"}, func(p *types.PlaceInfo, v string) { p.Features = v }},
	{[]string{"신뢰도:", "Confidence:"}, func(p *types.PlaceInfo, v string) { p.Confidence = parseConfidence(v) }},
}

// ExtractPlaceInfo parses the labelled lines of a vision model reply.
// Confidence defaults to "low".
func ExtractPlaceInfo(text string) types.PlaceInfo {
	info := types.PlaceInfo{Confidence: "low"}
	for _, line := range strings.Split(text, "\n") {
		// tolerate markdown bullets and bold labels
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
	labels:
		for _, label := range placeInfoLabels {
			for _, prefix := range label.prefixes {
				if strings.HasPrefix(line, prefix) {
					value := strings.TrimLeft(strings.TrimPrefix(line, prefix), "* ")
					label.set(&info, strings.TrimSpace(value))
					break labels
				}
			}
		}
	}
	return info
}

func parseConfidence(v string) string {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "high"), strings.Contains(v, "높"):
		return "high"
	case strings.Contains(v, "medium"), strings.Contains(v, "중"):
		return "medium"
	default:
		return "low"
	}
}

// PlaceQuery turns extracted place info into a search query for the quest
// RAG index.
func PlaceQuery(info types.PlaceInfo) string {
	var parts []string
	for _, s := range []string{info.PlaceName, info.Category, info.Description, info.Features} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ConfidenceScore blends the vision model's own confidence with vector
// similarity and GPS proximity into a value in [0, 1], rounded to 2 places.
func ConfidenceScore(info types.PlaceInfo, similarity *float64, gpsDistanceKm *float64) float64 {
	var score float64
	switch info.Confidence {
	case "high":
		score += 0.4
	case "medium":
		score += 0.25
	default:
		score += 0.1
	}
	if similarity != nil {
		score += *similarity * 0.4
	}
	if gpsDistanceKm != nil {
		score += math.Max(0, 1-*gpsDistanceKm/1.0) * 0.2
	}
	return math.Round(math.Min(score, 1.0)*100) / 100
}
