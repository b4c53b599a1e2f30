package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"minniegallery/internal/cache"
	"minniegallery/internal/config"
	"minniegallery/internal/database"
	"minniegallery/internal/gallery"
	"minniegallery/internal/gateway"
	"minniegallery/internal/handlers"
	"minniegallery/internal/log"
	"minniegallery/internal/metrics"
	"minniegallery/internal/notify"
	"minniegallery/internal/queue"
	"minniegallery/internal/repository"
	"minniegallery/internal/server"
	"minniegallery/internal/service"
	"minniegallery/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "minniegallery-api", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	users := repository.NewUserRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)

	mailer := notify.NewMailer(cfg.Mail, cfg.Security.VerifyTTL, logger)
	verify := cache.NewVerificationTokens(redisClient, cfg.Security.VerifyTTL)
	authService := service.NewAuthService(users, sessions, verify, mailer, cfg.Security, logger)

	gw := gateway.Gateway{
		Auth:         authService,
		Images:       repository.NewImageRepository(dbPool),
		Interactions: repository.NewInteractionRepository(dbPool),
		Users:        cache.NewUserDirectory(redisClient, users, cfg.Gallery.UploaderCacheTTL, logger),
		Settings:     repository.NewSettingRepository(dbPool),
		Storage:      objectStore,
	}
	publisher := queue.NewPublisher(redisClient, cfg.Worker.Stream)
	galleryService := service.NewGalleryService(gw, publisher, cfg.Gallery.LookupConcurrency, logger)

	registry := gallery.NewRegistry(cfg.Gallery.SessionIdleTTL)
	registry.OnSize(metrics.SetActiveStores)
	go registry.Run(ctx, time.Minute, func(removed int) {
		logger.Debug().Int("removed", removed).Msg("idle gallery stores dropped")
	})

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Gallery:  galleryService,
		Auth:     authService,
		Registry: registry,
		Checks: map[string]handlers.Checker{
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	shutdown(logger, httpServer, dbPool, redisClient)
}

func shutdown(logger zerolog.Logger, srv *server.HTTPServer, db *pgxpool.Pool, redisClient *redis.Client) {
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
