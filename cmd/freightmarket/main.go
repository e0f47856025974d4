// Package main запускает HTTP-сервер маркетплейса грузоперевозок.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/freight-market/internal/config"
	"github.com/mmeshcher/freight-market/internal/handler"
	"github.com/mmeshcher/freight-market/internal/middleware"
	"github.com/mmeshcher/freight-market/internal/repository"
	"github.com/mmeshcher/freight-market/internal/service"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		sugar.Warnw("failed to load .env file", "error", envErr.Error())
	}

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := newRepository(cfg)
	if err != nil {
		sugar.Fatalw("storage initialization error", "storage", cfg.Storage, "error", err.Error())
	}

	svc := service.NewService(repo)
	defer svc.Close()

	admin, err := svc.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail)
	if err != nil {
		sugar.Fatalw("admin bootstrap error", "error", err.Error())
	}
	if admin != nil {
		sugar.Infow("admin account ready", "username", admin.Username, "user_id", admin.ID)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret, cfg.TokenTTL)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, sessions will not survive a restart")
	}
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Периодическая очистка неактивных клиентов ограничителя частоты запросов
	g.Go(func() error {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				h.AuthLimiter().Cleanup()
			}
		}
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting freight market server", "addr", cfg.RunAddress, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func newRepository(cfg *config.Config) (service.Repository, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return repository.NewPostgresRepository(cfg.DatabaseURI)
	default:
		return repository.NewMemoryRepository(), nil
	}
}
