package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/retailsegmentation/internal/adapters/cache"
	"github.com/zatekoja/retailsegmentation/internal/adapters/database"
	"github.com/zatekoja/retailsegmentation/internal/adapters/events"
	"github.com/zatekoja/retailsegmentation/internal/api/handlers"
	"github.com/zatekoja/retailsegmentation/internal/api/routes"
	"github.com/zatekoja/retailsegmentation/internal/application/services"
	"github.com/zatekoja/retailsegmentation/internal/domain/providers"
	"github.com/zatekoja/retailsegmentation/internal/domain/repositories"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/redis"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	"github.com/zatekoja/retailsegmentation/internal/model"
	"github.com/zatekoja/retailsegmentation/internal/segmentation"
	"github.com/zatekoja/retailsegmentation/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	artifacts, err := model.LoadDir(cfg.Artifacts.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Artifacts.Dir).Msg("failed to load model artifacts")
	}
	log.Info().
		Str("version", artifacts.Version()).
		Strs("features", artifacts.Schema().Features).
		Int("clusters", artifacts.K()).
		Msg("model artifacts loaded")

	predictor, err := segmentation.NewBatchPredictor(artifacts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create predictor")
	}

	var (
		pgClient *postgres.Client
		runs     repositories.SegmentationRepository
		source   repositories.TransactionRepository
	)
	if cfg.Segmentation.StoreEnabled {
		pgClient, err = postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		runs = database.NewSegmentationAdapter(pgClient)
		log.Info().Msg("segmentation run store enabled")
	}

	if cfg.Segmentation.SourceEnabled {
		var closer io.Closer
		source, closer, err = database.OpenTransactionSource(cfg, pgClient)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open transaction source")
		}
		defer closeQuietly(closer, "transaction source")
		log.Info().
			Str("driver", cfg.Database.Driver).
			Str("table", cfg.Segmentation.TransactionsTable).
			Msg("transaction source enabled")
	}

	service := services.NewSegmentationService(predictor, runs, source, metrics)

	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			// Caching and streaming are optional.
			log.Warn().Err(err).Msg("Redis unavailable, running without cache and event stream")
		} else {
			defer closeQuietly(redisClient, "redis")
			ttl := time.Duration(cfg.Segmentation.CacheTTLSeconds) * time.Second
			eventBus = events.NewRedisEventBus(redisClient)
			service.SetCache(cache.NewRedisAdapter(redisClient, cache.DefaultKeyPrefix), ttl)
			service.SetEventBus(eventBus)
			log.Info().Dur("cache_ttl", ttl).Msg("Redis cache and event bus enabled")
		}
	}

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}
	router := routes.NewRouter(
		handlers.NewSegmentationHandler(service, cfg.Segmentation.MaxUploadBytes),
		sseHandler,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close the bus first so open event streams end and Shutdown can drain.
	if eventBus != nil {
		closeQuietly(eventBus, "event bus")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}

func closeQuietly(c io.Closer, name string) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("resource", name).Msg("close failed")
	}
}
