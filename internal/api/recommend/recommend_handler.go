package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/api"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/route"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func parseCoordinate(r *http.Request, name string, limit float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < -limit || v > limit {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// NearbyQuests godoc
// @Summary      List quests near a point
// @Tags         recommend
// @Produce      json
// @Param        latitude  query number true  "Latitude"
// @Param        longitude query number true  "Longitude"
// @Param        radius_km query number false "Search radius in km" default(5)
// @Param        limit     query int    false "Maximum results" default(10)
// @Success      200 {object} types.NearbyQuestsResponse
// @Failure      400 {object} map[string]interface{}
// @Failure      500 {object} map[string]interface{}
// @Router       /recommend/nearby-quests [get]
func (h *Handler) NearbyQuests(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "NearbyQuests", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/recommend/nearby-quests"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "NearbyQuests"))

	lat, err := parseCoordinate(r, "latitude", 90)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lon, err := parseCoordinate(r, "longitude", 180)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	radiusKm := DefaultNearbyRadiusKm
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil || radiusKm <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("invalid radius_km %q", raw))
			return
		}
	}
	limit := DefaultNearbyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 100 {
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
	}
	span.SetAttributes(attribute.Float64("radius_km", radiusKm), attribute.Int("limit", limit))

	quests, err := h.service.NearbyQuests(ctx, lat, lon, radiusKm, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Nearby lookup failed")
		l.ErrorContext(ctx, "Failed to list nearby quests", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list nearby quests")
		return
	}

	span.SetStatus(codes.Ok, "Nearby quests listed")
	api.WriteJSONResponse(w, r, http.StatusOK, types.NearbyQuestsResponse{
		Success: true,
		Count:   len(quests),
		Quests:  quests,
	})
}

// SimilarPlaces godoc
// @Summary      Find quests similar to a photo
// @Description  Identifies the place in a base64 photo and returns quests with similar descriptions, optionally restricted to a radius around the caller.
// @Tags         recommend
// @Accept       json
// @Produce      json
// @Param        request body types.SimilarPlacesRequest true "Photo and optional location"
// @Success      200 {object} types.SimilarPlacesResponse
// @Failure      400 {object} map[string]interface{}
// @Failure      500 {object} map[string]interface{}
// @Router       /recommend/similar-places [post]
func (h *Handler) SimilarPlaces(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "SimilarPlaces", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/recommend/similar-places"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SimilarPlaces"))

	var req types.SimilarPlacesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateStruct(req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SimilarPlaces(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Similar places failed")
		if errors.Is(err, route.ErrInvalidImage) {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Similar places search failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, fmt.Sprintf("Similar places search failed: %s", err.Error()))
		return
	}

	span.SetStatus(codes.Ok, "Similar places found")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// QuestDetail godoc
// @Summary      Get a quest with its place
// @Tags         recommend
// @Produce      json
// @Param        quest_id path int true "Quest ID"
// @Success      200 {object} types.QuestDetailResponse
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Failure      500 {object} map[string]interface{}
// @Router       /recommend/quests/{quest_id} [get]
func (h *Handler) QuestDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "QuestDetail", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/recommend/quests/{quest_id}"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "QuestDetail"))

	raw := chi.URLParam(r, "quest_id")
	questID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || questID <= 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("invalid quest id %q", raw))
		return
	}

	q, err := h.service.QuestDetail(ctx, questID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, quest.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Quest not found")
			return
		}
		span.SetStatus(codes.Error, "Quest lookup failed")
		l.ErrorContext(ctx, "Failed to load quest", slog.Int64("quest_id", questID), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load quest")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.QuestDetailResponse{Success: true, Quest: *q})
}
