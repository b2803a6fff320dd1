package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/i474232898/weather-s3-ingest/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, log, err := app.Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

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

	summary := pipeline.Run(ctx, cfg.Ingest.Cities)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Errorw("cannot encode run summary", "error", err)
		return 1
	}
	fmt.Println(string(out))

	if summary.Failed() {
		return 1
	}
	return 0
}
