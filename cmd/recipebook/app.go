package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sonht113/recipebook/internal/db"
	"github.com/sonht113/recipebook/internal/handlers"
	"github.com/sonht113/recipebook/internal/handlers/middleware"
	"github.com/sonht113/recipebook/internal/logger"
	"github.com/sonht113/recipebook/internal/repository/postgres"
	"github.com/sonht113/recipebook/internal/service/auth"
	"github.com/sonht113/recipebook/internal/service/auth/tokenmanager"
	"github.com/sonht113/recipebook/internal/service/recipe"
	"github.com/sonht113/recipebook/internal/service/tokensweeper"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Sweeper    *tokensweeper.Sweeper
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	recipeService, err := recipe.NewService(storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating recipe service. Err: %w", err)
	}

	sweeper := tokensweeper.New(c.SweepInterval, storage.Refresh(), log)

	// Initialize handlers
	mux := handlers.NewRouter(
		handlers.NewAuth(authService, log),
		handlers.NewRecipe(recipeService, log),
		middleware.AuthMiddleware(authService, log),
		middleware.OptionalAuthMiddleware(authService),
		middleware.LoggerMiddleware(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Sweeper:    sweeper,
		Logger:     log,
	}, nil
}

// Run starts http server and the token sweeper, closes gracefully on
// context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.Sweeper.Run(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close connections gracefully
	s.Logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}
