// Package main runs the background worker: retries of degraded publishing
// steps and the periodic sweep of live videos.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kt-lectures/broadcaster/config"
	"github.com/kt-lectures/broadcaster/internal/app"
	"github.com/kt-lectures/broadcaster/internal/worker"
	"github.com/kt-lectures/broadcaster/pkg/database"
	"github.com/kt-lectures/broadcaster/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	comp, err := app.Build(ctx, cfg, pool, rdb.Client, logger)
	if err != nil {
		logger.Fatal("wire engine", zap.Error(err))
	}

	processor := worker.NewStepProcessor(comp.Engine, comp.Queue, cfg.Worker.RetryBackoff, logger.Named("retry"))
	sweeper := worker.NewSweeper(comp.Engine, cfg.Worker.ReconcileCron, logger.Named("sweep"))
	if err := sweeper.Start(); err != nil {
		logger.Fatal("sweeper", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Run(workerCtx)
	}()
	logger.Info("worker started", zap.String("reconcile_cron", cfg.Worker.ReconcileCron))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	sweeper.Stop()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
