package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-s3-ingest/internal/api/http"
	"github.com/i474232898/weather-s3-ingest/internal/app"
	"github.com/i474232898/weather-s3-ingest/internal/scheduler"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

func main() {
	once := flag.Bool("once", false, "run a single ingestion pass and exit")
	flag.Parse()

	os.Exit(run(*once))
}

func run(once bool) int {
	cfg, log, err := app.Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Errorw("cannot open object store", "error", err)
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warnw("error closing object store", "error", err)
		}
	}()

	pipeline, err := app.NewPipeline(cfg, st, log)
	if err != nil {
		log.Errorw("invalid ingestion settings", "error", err)
		return 1
	}

	if once {
		if pipeline.Run(ctx, cfg.Ingest.Cities).Failed() {
			return 1
		}
		return 0
	}

	if err := cfg.ValidateService(); err != nil {
		log.Errorw("invalid service settings", "error", err)
		return 1
	}

	// Scheduler that periodically fetches and stores data.
	sched := scheduler.New(cfg.Ingest.Cities, cfg.Service.FetchInterval, pipeline, log)
	if err := sched.Start(); err != nil {
		log.Errorw("failed to start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	fiberApp := fiber.New(fiber.Config{
		AppName:               "weather-s3-ingest",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	fiberApp.Use(logger.New())
	fiberApp.Use(recover.New())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-s3-ingest",
			"backend": cfg.Storage.Backend,
		})
	})

	httpapi.RegisterRoutes(fiberApp, pipeline, weather.NewCatalog(st), weather.NewAggregator(st, log))

	go func() {
		if err := fiberApp.Listen(":" + cfg.Service.Port); err != nil {
			log.Errorw("fiber server stopped", "error", err)
			stop()
		}
	}()
	log.Infow("http api listening", "port", cfg.Service.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warnw("error during shutdown", "error", err)
	}
	return 0
}
