package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-s3-ingest/internal/logging"
	"github.com/i474232898/weather-s3-ingest/internal/retry"
	"github.com/i474232898/weather-s3-ingest/internal/store"
)

// Pipeline fetches current weather for each city, stores one JSON object per
// city and summarizes the run.
type Pipeline struct {
	fetcher Fetcher
	store   store.ObjectStore
	policy  retry.Policy
	log     *zap.SugaredLogger

	now   func() time.Time
	newID func() string

	mu   sync.RWMutex
	last *RunSummary
}

// NewPipeline creates a Pipeline. A nil logger discards log output.
func NewPipeline(fetcher Fetcher, st store.ObjectStore, policy retry.Policy, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		store:   st,
		policy:  policy,
		log:     logging.OrNop(logger),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Run processes cities one at a time in input order. A city that cannot be
// fetched or stored is recorded as a failure; it never stops the run. Names
// that normalize to an earlier city's key fragment are skipped, so each city
// yields at most one stored record per run.
func (p *Pipeline) Run(ctx context.Context, cities []string) RunSummary {
	cities, duplicates := UniqueCities(cities)

	summary := RunSummary{
		RunID:       p.newID(),
		StartedAt:   p.now().UTC(),
		TotalCities: len(cities),
		Failures:    []string{},
	}
	log := p.log.With("run_id", summary.RunID)
	log.Infow("starting weather ingestion run", "cities", len(cities))
	if len(duplicates) > 0 {
		log.Warnw("skipping cities that map to an already listed storage key", "duplicates", duplicates)
	}

	var temps CityStats
	for _, city := range cities {
		log.Infow("processing city", "city", city)

		tempC, err := p.ingestCity(ctx, log, city)
		if err != nil {
			summary.FailureCount++
			summary.Failures = append(summary.Failures, city)
			continue
		}

		summary.SuccessCount++
		temps.Add(tempC)
	}

	summary.MinTempC = temps.TempMin
	summary.MaxTempC = temps.TempMax
	summary.AvgTempC = temps.avgPtr()
	summary.FinishedAt = p.now().UTC()

	if summary.Failed() {
		log.Warnw("run completed with failures",
			"failures", summary.FailureCount, "total", summary.TotalCities, "failed_cities", summary.Failures)
	} else {
		log.Infow("run completed successfully", "total", summary.TotalCities)
	}

	p.mu.Lock()
	last := summary
	p.last = &last
	p.mu.Unlock()

	return summary
}

// LastSummary returns the summary of the most recent completed run.
func (p *Pipeline) LastSummary() (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.last == nil {
		return RunSummary{}, false
	}
	return *p.last, true
}

// ingestCity fetches with retry and uploads; it returns the stored temperature.
func (p *Pipeline) ingestCity(ctx context.Context, log *zap.SugaredLogger, city string) (float64, error) {
	policy := p.policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Infow("retrying weather fetch", "city", city, "attempt", attempt, "backoff", wait)
	}

	attempt := 0
	rec, err := retry.Do(ctx, policy, func(ctx context.Context) (Record, error) {
		attempt++
		log.Debugw("fetching weather", "city", city, "attempt", attempt)

		rec, err := p.fetcher.Fetch(ctx, city)
		if err != nil {
			fields := []any{"city", city, "attempt", attempt, "error", err}
			if apiErr, ok := AsAPIError(err); ok {
				fields = append(fields, "kind", apiErr.Kind, "status", apiErr.StatusCode, "retriable", apiErr.Transient)
			}
			log.Errorw("weather api error", fields...)
		}
		return rec, err
	})
	if err != nil {
		log.Errorw("giving up on city", "city", city, "attempts", attempt, "error", err)
		return 0, err
	}

	key := BuildKey(city, p.now())
	body, err := encodeRecord(rec)
	if err != nil {
		log.Errorw("failed to encode weather record", "city", city, "error", err)
		return 0, err
	}

	if err := p.store.Put(ctx, key, body, store.ContentTypeJSON); err != nil {
		log.Errorw("failed to upload weather record", "city", city, "key", key, "error", err)
		return 0, err
	}

	log.Infow("uploaded weather record", "city", city, "key", key, "temperature_c", rec.TemperatureC)
	return rec.TemperatureC, nil
}

// encodeRecord renders rec as UTF-8 JSON without HTML escaping.
func encodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode record for %q: %w", rec.City, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
