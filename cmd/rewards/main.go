// Package main запускает HTTP-сервер сервиса наград.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/reward-system/internal/config"
	"github.com/mmeshcher/reward-system/internal/handler"
	"github.com/mmeshcher/reward-system/internal/ledger"
	"github.com/mmeshcher/reward-system/internal/model"
	"github.com/mmeshcher/reward-system/internal/service"
	"github.com/mmeshcher/reward-system/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var (
		users   store.Repository[model.User]
		rewards store.Repository[model.Reward]
	)

	if cfg.DatabaseURI != "" {
		st, err := store.NewStore(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer st.Close()

		users = store.NewPostgresRepository[model.User](st, "users")
		rewards = store.NewPostgresRepository[model.Reward](st, "rewards")
	} else {
		sugar.Warn("no database URI configured, records will not survive restart")
		users = store.NewMemoryRepository[model.User]()
		rewards = store.NewMemoryRepository[model.Reward]()
	}

	if cfg.LedgerAddress == "" {
		sugar.Fatal("ledger gateway address is required")
	}
	ledgerClient := ledger.NewClient(cfg.LedgerAddress)

	svc := service.NewService(users, rewards, ledgerClient, cfg.RewardBaseURL)

	h := handler.NewHandler(svc, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting reward server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
