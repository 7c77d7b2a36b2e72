package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coursehub/apiserver/config"
	"github.com/coursehub/apiserver/internal/db"
	"github.com/coursehub/apiserver/internal/handlers"
	"github.com/coursehub/apiserver/internal/notify"
	"github.com/coursehub/apiserver/internal/services"
	"github.com/coursehub/apiserver/internal/store"
	"github.com/coursehub/apiserver/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mailer     *notify.Mailer
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(cfg.Auth)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	backend, err := notifyBackend(ctx, cfg.Notify)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	mailer := notify.NewMailer(backend, cfg.Notify.Channel)

	userRepo := store.NewUserRepository(dbConn)
	authService := services.NewAuthService(userRepo, issuer, mailer, cfg.Auth, slog.Default())
	userService := services.NewUserService(userRepo)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, userService)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mailer:     mailer,
	}, nil
}

func notifyBackend(ctx context.Context, cfg config.NotifyConfig) (notify.Backend, error) {
	switch cfg.Backend {
	case "rabbitmq":
		return notify.NewRabbitMQBackend(cfg.RabbitMQ)
	case "pubsub":
		return notify.NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return notify.NewLogBackend(slog.Default()), nil
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.mailer != nil {
		_ = s.mailer.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
