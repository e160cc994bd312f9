// Package api provides the HTTP API server and handlers for the Quoteline application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quotelineapp/quoteline-server/internal/store"
	"github.com/quotelineapp/quoteline-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     *store.Store
	services  *Services
	validator *validation.Validator
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// Options configures the HTTP server.
type Options struct {
	Version        string
	AllowedOrigins []string
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, services *Services, verifier TokenVerifier, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware(verifier))

	humaConfig := huma.DefaultConfig("Quoteline API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "API key",
		},
	}

	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:     st,
		services:  services,
		validator: validation.New(),
		router:    router,
		api:       humaAPI,
		logger:    logger,
	}

	s.registerHealthRoutes()
	s.registerTeamRoutes()
	s.registerComponentRoutes()
	s.registerSettingsRoutes()
	s.registerExchangeRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
