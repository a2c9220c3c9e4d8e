package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/FACorreiaa/go-seoul-quest-api/docs"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/recommend"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/route"
)

// Config contains dependencies needed for the router setup
type Config struct {
	RouteHandler           *route.Handler
	RecommendHandler       *recommend.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
	RateLimitMiddleware    func(http.Handler) http.Handler
}

// SetupRouter builds the API routes. Server-wide middleware (request id,
// logging, recovery) is applied by the caller before mounting it.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		if cfg.RateLimitMiddleware != nil {
			r.Use(cfg.RateLimitMiddleware)
		}

		r.Route("/recommend", func(r chi.Router) {
			r.Get("/nearby-quests", cfg.RecommendHandler.NearbyQuests)
			r.Post("/similar-places", cfg.RecommendHandler.SimilarPlaces)
			r.Get("/quests/{quest_id}", cfg.RecommendHandler.QuestDetail)
		})

		r.Route("/ai_station", func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Post("/route-recommend", cfg.RouteHandler.RecommendRoute)
		})
	})

	return r
}
