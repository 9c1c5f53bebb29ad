package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/evora/mediagen-back/internal/http/handlers"
	"github.com/evora/mediagen-back/internal/http/middleware"
	"github.com/evora/mediagen-back/internal/session"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         zerolog.Logger
	Sessions       session.Provider
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.AccessLog(deps.Logger))
	router.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: deps.CORSOrigins}))
	router.Use(middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst))
	router.Use(middleware.Session(deps.Sessions))

	router.Get("/healthz", deps.API.Health)

	router.Route("/v1", func(r chi.Router) {
		r.Get("/models", deps.API.ListModels)

		r.Route("/generations", func(r chi.Router) {
			r.Post("/", deps.API.CreateGeneration)
			r.Get("/{jobID}", deps.API.GenerationStatus)
			r.Delete("/{jobID}", deps.API.CancelGeneration)
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/", deps.API.ListMedia)
			r.Get("/{mediaID}/asset", deps.API.DownloadMediaAsset)
		})
	})

	return router
}
