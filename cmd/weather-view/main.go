package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/i474232898/weather-s3-ingest/internal/app"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

func main() {
	date := flag.String("date", "", "day to list (YYYY-MM-DD)")
	city := flag.String("city", "", "city name filter")
	limit := flag.Int("limit", weather.DefaultListLimit, "maximum number of objects to list")
	raw := flag.Bool("raw", false, "print the JSON document of the first match")
	flag.Parse()

	os.Exit(run(*date, *city, *limit, *raw))
}

func run(date, city string, limit int, raw bool) int {
	filter, err := weather.ParseFilter(date, city)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if limit <= 0 {
		fmt.Fprintln(os.Stderr, "limit must be positive")
		return 1
	}

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
	defer func() { _ = closeStore() }()

	catalog := weather.NewCatalog(st)
	objects, err := catalog.List(ctx, filter, limit)
	if err != nil {
		log.Errorw("failed to list objects", "prefix", filter.ListPrefix(), "error", err)
		if len(objects) == 0 {
			return 1
		}
	}

	if len(objects) == 0 {
		fmt.Println("No objects found.")
		return 0
	}

	fmt.Printf("Found %d object(s):\n", len(objects))
	for _, obj := range objects {
		fmt.Printf("  %s  %6d bytes  %s\n", obj.Key, obj.Size, obj.LastModified.UTC().Format("2006-01-02 15:04:05"))
	}

	if !raw {
		return 0
	}

	first := objects[0].Key
	doc, err := catalog.Document(ctx, first)
	if err != nil {
		log.Errorw("failed to read object", "key", first, "error", err)
		return 1
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		log.Errorw("failed to format object", "key", first, "error", err)
		return 1
	}
	fmt.Printf("\n%s:\n%s\n", first, pretty.String())
	return 0
}
