// Package app assembles configuration, logger, store and pipeline for the
// commands under cmd/.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/weather-s3-ingest/internal/config"
	"github.com/i474232898/weather-s3-ingest/internal/logging"
	"github.com/i474232898/weather-s3-ingest/internal/store"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
	"github.com/i474232898/weather-s3-ingest/internal/weather/providers"
)

// Bootstrap loads configuration and builds the logger.
func Bootstrap() (*config.AppConfig, *zap.SugaredLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.LogDebug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// OpenStore validates the storage settings and opens the configured backend.
func OpenStore(ctx context.Context, cfg *config.AppConfig, log *zap.SugaredLogger) (store.ObjectStore, func() error, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, nil, err
	}

	st, closeFn, err := store.Open(ctx, cfg.StoreOptions(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	log.Infow("object store ready", "backend", cfg.Storage.Backend, "bucket", cfg.Storage.Bucket)
	return st, closeFn, nil
}

// NewPipeline validates the ingestion settings and builds the pipeline with
// an OpenWeatherMap client.
func NewPipeline(cfg *config.AppConfig, st store.ObjectStore, log *zap.SugaredLogger) (*weather.Pipeline, error) {
	if err := cfg.ValidateIngest(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Ingest.HTTPTimeout}
	client := providers.NewOpenWeatherClient(httpClient, providers.OpenWeatherOptions{
		APIKey:  cfg.Ingest.APIKey,
		BaseURL: cfg.Ingest.BaseURL,
		Breaker: cfg.BreakerConfig(),
		Logger:  log,
	})

	return weather.NewPipeline(client, st, cfg.RetryPolicy(), log), nil
}
