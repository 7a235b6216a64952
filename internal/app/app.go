package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-auth-service/internal/config"
	"go-auth-service/internal/database"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/router"
	"go-auth-service/internal/service"
	"go-auth-service/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	store := repository.NewPostgresStore(db.Pool)
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessTTL)
	refresh := token.NewRefreshManager(cfg.RefreshTokenTTL)
	authService := service.NewAuthService(store, issuer, refresh)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService, cfg.SecureCookies)
	slog.Info("auth service ready")

	health := func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}

	appRouter := router.New(cfg, authMiddleware, authHandler, health)

	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	go startPruneTicker(pruneCtx, authService, cfg.TokenPruneInterval, cfg.TokenRetention)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				db.Close()
			},
			func() {
				pruneCancel()
			},
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	err := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	return err
}

// startPruneTicker periodically removes refresh tokens that have been
// revoked and expired for longer than the retention window. Active and
// recently revoked tokens stay untouched.
func startPruneTicker(ctx context.Context, authService *service.AuthService, interval time.Duration, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			pruned, err := authService.PruneTokens(pruneCtx, retention)
			cancel()
			if err != nil {
				slog.Warn("refresh token prune failed", "error", err)
				continue
			}
			if pruned > 0 {
				slog.Info("pruned refresh tokens", "count", pruned)
			}
		}
	}
}
