package route

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/api"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/auth"
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

// RecommendRoute godoc
// @Summary      Recommend a 4-stop quest route
// @Description  Scores nearby quests against the caller's preferences, history and optional photo, then picks an itinerary with the LLM or the heuristic fallback.
// @Tags         ai_station
// @Accept       json
// @Produce      json
// @Param        request body types.RouteRecommendRequest true "Route preferences and location"
// @Success      200 {object} types.RouteRecommendResponse
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      500 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /ai_station/route-recommend [post]
func (h *Handler) RecommendRoute(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RouteHandler").Start(r.Context(), "RecommendRoute", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/ai_station/route-recommend"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "RecommendRoute"))
	l.DebugContext(ctx, "Route recommend handler invoked")

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		l.WarnContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(semconv.EnduserIDKey.String(userID))

	var req types.RouteRecommendRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateStruct(req); err != nil {
		l.WarnContext(ctx, "Invalid route request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.RecommendRoute(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Route recommendation failed")
		if errors.Is(err, ErrInvalidImage) {
			l.WarnContext(ctx, "Invalid image payload", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Route recommendation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, fmt.Sprintf("Route recommendation failed: %s", err.Error()))
		return
	}

	span.SetStatus(codes.Ok, "Route recommended")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
