package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"minniegallery/internal/cache"
	"minniegallery/internal/config"
	"minniegallery/internal/database"
	"minniegallery/internal/jobs"
	"minniegallery/internal/log"
	"minniegallery/internal/queue"
	"minniegallery/internal/repository"
	"minniegallery/internal/storage"
	"minniegallery/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "minniegallery-worker", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	processor := tasks.NewProcessor(objectStore, repository.NewImageRepository(dbPool), cfg.Worker.SweepGrace, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	scheduler := jobs.NewScheduler(
		queue.NewPublisher(client, cfg.Worker.Stream),
		repository.NewSessionRepository(dbPool),
		cfg.Worker.SweepSchedule,
		logger,
	)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer scheduler.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	<-done
}
