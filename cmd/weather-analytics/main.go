package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/i474232898/weather-s3-ingest/internal/app"
	"github.com/i474232898/weather-s3-ingest/internal/common"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

func main() {
	date := flag.String("date", "", "single day to analyse (YYYY-MM-DD)")
	start := flag.String("start", "", "first day of the range (YYYY-MM-DD)")
	end := flag.String("end", "", "last day of the range (YYYY-MM-DD)")
	city := flag.String("city", "", "only include this city")
	flag.Parse()

	os.Exit(run(*date, *start, *end, *city))
}

func run(date, start, end, city string) int {
	from, to, err := dateRange(date, start, end)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	stats, err := weather.NewAggregator(st, log).Aggregate(ctx, from, to, city)
	if err != nil {
		log.Errorw("aggregation failed", "error", err)
		return 1
	}

	printStats(os.Stdout, stats)
	return 0
}

// dateRange accepts either a single date or a start/end pair.
func dateRange(date, start, end string) (time.Time, time.Time, error) {
	switch {
	case date != "" && (start != "" || end != ""):
		return time.Time{}, time.Time{}, errors.New("use either -date or -start/-end, not both")
	case date != "":
		d, err := common.ParseDate(date)
		return d, d, err
	case start != "" && end != "":
		from, err := common.ParseDate(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to, err := common.ParseDate(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, weather.ErrInvalidRange
		}
		return from, to, nil
	default:
		return time.Time{}, time.Time{}, errors.New("either -date or both -start and -end are required")
	}
}

// printStats writes one row per city, sorted by name.
func printStats(w io.Writer, stats map[string]*weather.CityStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No data found for the given parameters.")
		return
	}

	cities := make([]string, 0, len(stats))
	for c := range stats {
		cities = append(cities, c)
	}
	sort.Strings(cities)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "City\tCount\tMin (C)\tAvg (C)\tMax (C)")
	for _, c := range cities {
		s := stats[c]
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", c, s.Count, *s.TempMin, s.Avg(), *s.TempMax)
	}
	_ = tw.Flush()
}
