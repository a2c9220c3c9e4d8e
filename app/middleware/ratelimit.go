package appMiddleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/FACorreiaa/go-seoul-quest-api/config"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api"
)

const (
	defaultRequestsPerWindow = 60
	defaultWindow            = time.Minute
)

// RateLimit throttles callers per IP, answering 429 with the JSON error body.
func RateLimit(cfg config.RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.Disabled {
		return func(next http.Handler) http.Handler { return next }
	}
	requests := cfg.Requests
	if requests <= 0 {
		requests = defaultRequestsPerWindow
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}

	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
			api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many requests, slow down")
		}),
	)
}
