// Package server is the composition root: it opens the database, builds the
// services and handlers, mounts the routes, and runs the HTTP server with
// graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New():
//	  sqlite.DB (implements the User, Joke and Ledger repositories)
//	  → Ledger → JokeService, AuthService
//	  → JokeHandler, AuthHandler
//	  → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/master-of-jokes/internal/auth"
	"github.com/sakif/master-of-jokes/internal/config"
	"github.com/sakif/master-of-jokes/internal/handler"
	"github.com/sakif/master-of-jokes/internal/metrics"
	"github.com/sakif/master-of-jokes/internal/middleware"
	sqliteRepo "github.com/sakif/master-of-jokes/internal/repository/sqlite"
	"github.com/sakif/master-of-jokes/internal/service"
)

// Server owns the router and the database connection.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
}

// New opens the database (applying migrations) and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /auth/register          → create account
//	POST   /auth/login             → set JWT cookie
//	POST   /auth/logout            → clear JWT cookie
//	GET    /auth/github/login      → GitHub redirect        (if configured)
//	GET    /auth/github/callback   → GitHub sign-in         (if configured)
//	GET    /api/me                 → current user           [auth]
//	GET    /api/jokes              → others' jokes          [auth]
//	GET    /api/jokes/mine         → own + viewed jokes     [auth]
//	POST   /api/jokes              → create                 [auth]
//	GET    /api/jokes/{id}         → view (may charge)      [auth]
//	PUT    /api/jokes/{id}         → edit                   [auth, author]
//	DELETE /api/jokes/{id}         → delete                 [auth, author]
//	POST   /api/jokes/{id}/rating  → rate 1..5              [auth]
//	GET    /healthz                → liveness + DB ping
//	GET    /metrics                → prometheus
//
// MIDDLEWARE ORDER: RequestID → RealIP → Logger → Recoverer. Logger sits
// outside Recoverer so a recovered panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(s.config.BcryptCost)

	ledger := service.NewLedger(s.db, s.db, s.metrics, s.logger)
	jokeService := service.NewJokeService(s.db, ledger, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)

	// A nil *GitHubProvider must not become a non-nil interface.
	var github handler.OAuthProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	jokeHandler := handler.NewJokeHandler(jokeService, authService, s.logger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/jokes", func(r chi.Router) {
			r.Get("/", jokeHandler.HandleListOthers)
			r.Post("/", jokeHandler.HandleCreate)
			r.Get("/mine", jokeHandler.HandleListMine)
			r.Get("/{id}", jokeHandler.HandleView)
			r.Put("/{id}", jokeHandler.HandleUpdate)
			r.Delete("/{id}", jokeHandler.HandleDelete)
			r.Post("/{id}/rating", jokeHandler.HandleRate)
		})
	})

	if github == nil {
		s.logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET not set)")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
