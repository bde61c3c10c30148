package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ChatWidget/internal/adapter/continuation"
	"ChatWidget/internal/ai"
	"ChatWidget/internal/app/scheduler"
	"ChatWidget/internal/config"
	"ChatWidget/internal/logging"
	"ChatWidget/internal/service/completion"
	"ChatWidget/internal/service/web"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.NewConfig(os.Args[1:])

	logger, err := logging.New(cfg.DebugMode)
	if err != nil {
		panic(err)
	}

	logger.Infow(
		"Starting chat server",
		"DebugMode", cfg.DebugMode,
		"Provider", cfg.AI.Provider,
		"Model", cfg.AI.Model,
		"Store", cfg.Store.Backend,
	)

	if err := run(cfg, logger); err != nil {
		logger.Errorw("Chat server failed", "error", err)
		logging.Sync(logger)
		os.Exit(1)
	}
	logger.Infow("Shutdown complete")
	logging.Sync(logger)
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	// Graceful shutdown on Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := continuation.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnw("Failed to close continuation store", "error", err)
		}
	}()

	svc := completion.New(store, newGenerator(cfg.AI, logger), completion.ParamsFromConfig(cfg.AI), logger)
	handler := web.NewHandler(svc, logger)
	// The write deadline has to outlive the slowest upstream call.
	srv := web.NewServer(cfg.BindAddr, handler.Routes(), cfg.AI.Timeout+5*time.Second, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("start server on %s: %w", cfg.BindAddr, err)
		}
		return <-srv.Done()
	})
	// Фоновая очистка просроченных диалогов для дисковых хранилищ
	if p, ok := store.(continuation.Pruner); ok && cfg.Store.TTL > 0 && cfg.Store.SweepInterval > 0 {
		sweeper := scheduler.New(p, cfg.Store.SweepInterval, logger)
		g.Go(func() error {
			if err := sweeper.Run(gctx); err != nil {
				// A broken sweep leaves records readable as absent; keep serving.
				logger.Warnw("Sweeper stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("Shutting down")
		return nil
	})
	return g.Wait()
}

func newGenerator(cfg config.AIConfig, logger *zap.SugaredLogger) ai.Generator {
	if cfg.Provider == config.ProviderStub {
		logger.Warnw("Using stub generator, replies are not generated by a model")
		return ai.NewStubClient()
	}
	return ai.NewResponsesClient(ai.NewOpenAI(cfg), logger)
}
