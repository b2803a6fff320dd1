package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-s3-ingest/internal/common"
	"github.com/i474232898/weather-s3-ingest/internal/logging"
	"github.com/i474232898/weather-s3-ingest/internal/store"
)

// MaxRangeDays bounds how many days one aggregation may scan.
const MaxRangeDays = 366

var (
	// ErrInvalidRange is returned when the end date precedes the start date.
	ErrInvalidRange = errors.New("end date is before start date")
	// ErrRangeTooLong is returned when a range covers more than MaxRangeDays.
	ErrRangeTooLong = fmt.Errorf("date range covers more than %d days", MaxRangeDays)
)

// Aggregator folds stored records into per-city temperature statistics.
type Aggregator struct {
	store store.ObjectStore
	log   *zap.SugaredLogger
}

// NewAggregator creates an Aggregator. A nil logger discards log output.
func NewAggregator(st store.ObjectStore, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{store: st, log: logging.OrNop(logger)}
}

// Aggregate scans every day from start to end inclusive and returns stats
// keyed by the city name found in each document. Objects that cannot be
// listed, downloaded or parsed are logged and skipped, as are documents
// without a numeric temperature_c.
func (a *Aggregator) Aggregate(ctx context.Context, start, end time.Time, city string) (map[string]*CityStats, error) {
	first, last := common.Day(start), common.Day(end)
	if last.Before(first) {
		return nil, ErrInvalidRange
	}
	if last.Sub(first) >= MaxRangeDays*24*time.Hour {
		return nil, ErrRangeTooLong
	}

	stats := make(map[string]*CityStats)
	for _, day := range common.Days(start, end) {
		filter := KeyFilter{Date: &day, City: city}
		prefix := filter.ListPrefix()
		a.log.Infow("scanning day", "prefix", prefix)

		objs, err := store.Collect(ctx, a.store, prefix, 0, filter.Match)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			a.log.Errorw("failed to list objects", "prefix", prefix, "error", err, "listed", len(objs))
		}

		for _, obj := range objs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			a.foldObject(ctx, obj.Key, stats)
		}
	}
	return stats, nil
}

func (a *Aggregator) foldObject(ctx context.Context, key string, stats map[string]*CityStats) {
	body, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Errorw("failed to load object", "key", key, "error", err)
		return
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		a.log.Errorw("failed to decode object", "key", key, "error", err)
		return
	}

	temp, ok := doc["temperature_c"].(float64)
	if !ok {
		a.log.Debugw("skipping object without numeric temperature", "key", key)
		return
	}

	name, _ := doc["city"].(string)
	if name == "" {
		name = "unknown"
	}

	s, ok := stats[name]
	if !ok {
		s = &CityStats{}
		stats[name] = s
	}
	s.Add(temp)
}
