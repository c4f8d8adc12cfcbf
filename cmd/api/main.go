package main

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

	"lostfound-rest-api/internal/cache"
	"lostfound-rest-api/internal/config"
	"lostfound-rest-api/internal/handler"
	"lostfound-rest-api/internal/images"
	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/internal/repository"
	"lostfound-rest-api/internal/router"
	"lostfound-rest-api/internal/service"
	"lostfound-rest-api/internal/suggest"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.MustLoad()
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting lost & found API",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.App.LoginKey == "" {
		if cfg.App.IsProduction() {
			return errors.New("LOGIN_KEY is required when APP_ENV=production")
		}
		logger.Warn("LOGIN_KEY is not set, admin routes are unprotected")
	}

	// Initialize item repository based on config
	repo, err := openItemRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Image storage
	var backend images.Backend
	var uploadDir string
	switch cfg.Images.Backend {
	case "s3":
		s3Backend, err := images.NewS3Backend(ctx, images.S3Config{
			Bucket:    cfg.Images.S3Bucket,
			Region:    cfg.Images.S3Region,
			Endpoint:  cfg.Images.S3Endpoint,
			AccessKey: cfg.Images.S3AccessKey,
			SecretKey: cfg.Images.S3SecretKey,
			PublicURL: cfg.Images.S3PublicURL,
			Prefix:    cfg.Images.S3Prefix,
		})
		if err != nil {
			return fmt.Errorf("init S3 image storage: %w", err)
		}
		backend = s3Backend
		logger.Info("S3 image storage initialized", "bucket", cfg.Images.S3Bucket)
	default:
		local, err := images.NewLocalBackend(cfg.Images.UploadDir, cfg.Images.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("init local image storage: %w", err)
		}
		backend = local
		uploadDir = local.Dir()
		logger.Info("local image storage initialized", "dir", uploadDir)
	}

	imageManager := images.NewManager(backend, images.Config{
		AcceptedTypes: cfg.Images.AcceptedTypes,
		Normalize:     cfg.Images.Normalize,
		MaxDimension:  cfg.Images.MaxDimension,
		Timeout:       cfg.Images.Timeout,
	}, logger)

	// Cache and, with Redis, the cross-instance sweep lease
	var itemCache cache.Cache = cache.NewMemoryCache(cfg.Cache.MemorySize, cfg.Cache.TTL)
	var lease service.Lease
	if cfg.Cache.Type == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, falling back to memory cache", "addr", cfg.Cache.RedisAddress(), "error", err)
		} else {
			itemCache = cache.NewRedisCache(redisClient, "lostfound:cache:")
			lease = cache.NewRedisLease(redisClient, "lostfound:sweeper:lease", cfg.Retention.Interval())
			logger.Info("Redis cache initialized", "addr", cfg.Cache.RedisAddress())
		}
	}

	// Initialize services
	itemService := service.NewItemService(repo, imageManager, itemCache, service.ItemServiceConfig{
		Retention:     cfg.Retention.Window(),
		ExpiryWarning: cfg.Retention.Warning(),
		Policy:        model.Policy{RequireContactInfo: cfg.Items.RequireContactInfo},
		StatsTTL:      cfg.Cache.TTL,
	}, logger)

	sweeper := service.NewSweeper(repo, imageManager, service.SweeperConfig{
		Retention:   cfg.Retention.Window(),
		Interval:    cfg.Retention.Interval(),
		BatchSize:   cfg.Retention.SweepBatchSize,
		Concurrency: cfg.Retention.SweepConcurrency,
		Lease:       lease,
		OnRemoved:   itemService.InvalidateStats,
	}, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Initialize handlers
	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Name, cfg.App.Version, repo, logger),
		ItemHandler:    handler.NewItemHandler(itemService, suggest.New(cfg.Suggestions.Provider), cfg.Images.MaxUploadBytes, logger),
		AdminHandler:   handler.NewAdminHandler(itemService, sweeper, cfg.App.LoginKey, cfg.ItemDB.Type, cfg.Cache.Type, logger),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LoginKey:       cfg.App.LoginKey,
		UploadDir:      uploadDir,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	sweeper.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openItemRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ItemRepository, error) {
	db := cfg.ItemDB
	switch db.Type {
	case "mongodb":
		repo, err := repository.NewMongoDBItemRepository(ctx, db.MongoURI, db.MongoDatabase, db.MongoCollection, logger)
		if err != nil {
			return nil, fmt.Errorf("init MongoDB: %w", err)
		}
		return repo, nil
	case "postgres":
		repo, err := repository.NewPostgresItemRepository(ctx, db.PostgresDSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("init PostgreSQL: %w", err)
		}
		return repo, nil
	case "mysql":
		repo, err := repository.NewMySQLItemRepository(ctx, db.MySQLDSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("init MySQL: %w", err)
		}
		return repo, nil
	default:
		repo, err := repository.NewSQLiteItemRepository(ctx, db.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("init SQLite: %w", err)
		}
		return repo, nil
	}
}
