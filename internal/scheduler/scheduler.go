package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-s3-ingest/internal/logging"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

// Runner executes one ingestion pass.
type Runner interface {
	Run(ctx context.Context, cities []string) weather.RunSummary
}

// Scheduler periodically runs the ingestion pipeline for the configured
// cities. A tick that fires while a run is still in flight is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	cities    []string
	interval  time.Duration
	log       *zap.SugaredLogger

	// mu orders run registration against Stop so wg.Add never races Wait.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Scheduler.
func New(cities []string, interval time.Duration, runner Runner, logger *zap.SugaredLogger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		cities:    cities,
		interval:  interval,
		log:       logging.OrNop(logger),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run starts immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		s.log.Warnw("scheduler: no cities configured; nothing to schedule")
		return nil
	}
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Infow("scheduler started", "interval", s.interval.String(), "cities", len(s.cities))
	return nil
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.log.Infow("scheduler: running weather ingestion job")
	summary := s.runner.Run(s.ctx, s.cities)
	s.log.Infow("scheduler: completed weather ingestion job",
		"run_id", summary.RunID, "success", summary.SuccessCount, "failures", summary.FailureCount)
}

// Stop cancels the in-flight run, stops future jobs and waits for the run to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.wg.Wait()
}
