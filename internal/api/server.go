package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anidao/anidao/internal/api/handlers"
	"github.com/anidao/anidao/internal/api/middleware"
	"github.com/anidao/anidao/internal/config"
	"github.com/anidao/anidao/internal/controllers"
	"github.com/anidao/anidao/internal/session"
	"github.com/anidao/anidao/internal/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps are the components the HTTP layer serves
type Deps struct {
	Store    store.Store
	Sessions *session.Manager
	Auth     *controllers.AuthController
	Catalog  *controllers.CatalogController
	Activity *controllers.ActivityController
	// Webhook receives Telegram updates; nil when the bot polls
	Webhook http.Handler
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router chi.Router
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}
	s.router = s.setupRoutes(cfg, deps)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Store, s.logger))
	r.Handle("/metrics", promhttp.Handler())

	if deps.Webhook != nil {
		r.Method(http.MethodPost, "/api/telegram/webhook", deps.Webhook)
	}

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Sessions, s.logger)
	animeHandler := handlers.NewAnimeHandler(deps.Store, deps.Catalog, s.logger)
	episodeHandler := handlers.NewEpisodeHandler(deps.Store, deps.Catalog, s.logger)
	activityHandler := handlers.NewActivityHandler(deps.Store, deps.Activity, s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.LoadSession(deps.Sessions, s.logger))

		r.Route("/auth", func(r chi.Router) {
			r.With(httprate.LimitByIP(loginLimit(cfg), time.Minute)).Post("/telegram", authHandler.Login)
			r.Get("/status", authHandler.Status)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/animes", func(r chi.Router) {
			r.Get("/", animeHandler.List)
			r.Get("/trending", animeHandler.Trending)
			r.Get("/new", animeHandler.NewReleases)
			r.Get("/search", animeHandler.Search)
			r.Get("/{id}", animeHandler.Get)
			r.With(middleware.RequireAuth).Get("/{id}/rating", animeHandler.MyRating)
		})

		r.Get("/episodes/{id}", episodeHandler.Get)
		r.Get("/episodes/{id}/comments", episodeHandler.Comments)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/watch-history", activityHandler.ListWatchHistory)
			r.Post("/watch-history", activityHandler.RecordWatchHistory)

			r.Get("/favorites", activityHandler.ListFavorites)
			r.Post("/favorites", activityHandler.AddFavorite)
			r.Delete("/favorites/{animeId}", activityHandler.RemoveFavorite)

			r.Post("/comments", activityHandler.AddComment)
			r.Post("/comments/{id}/like", activityHandler.LikeComment)
			r.Post("/comments/{id}/dislike", activityHandler.DislikeComment)

			r.Post("/ratings", activityHandler.Rate)
		})

		r.With(middleware.RequireAdmin).Method(http.MethodGet, "/admin/dashboard",
			handlers.NewDashboardHandler(deps.Catalog, s.logger))
	})

	return r
}

func loginLimit(cfg *config.Config) int {
	if cfg.LoginRateLimit <= 0 {
		return 10
	}
	return cfg.LoginRateLimit
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
