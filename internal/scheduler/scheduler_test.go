package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

// blockingRunner signals each run and blocks until its context is cancelled.
type blockingRunner struct {
	started  chan []string
	finished chan error
}

func (r *blockingRunner) Run(ctx context.Context, cities []string) weather.RunSummary {
	r.started <- cities
	<-ctx.Done()
	r.finished <- ctx.Err()
	return weather.RunSummary{TotalCities: len(cities)}
}

func TestSchedulerRunsImmediatelyAndStopCancels(t *testing.T) {
	runner := &blockingRunner{started: make(chan []string, 1), finished: make(chan error, 1)}
	s := New([]string{"London", "Paris"}, time.Hour, runner, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case cities := <-runner.started:
		if len(cities) != 2 {
			t.Fatalf("unexpected cities %v", cities)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected an immediate first run")
	}

	s.Stop()

	select {
	case err := <-runner.finished:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the in-flight run")
	}
}

func TestSchedulerWithoutCities(t *testing.T) {
	runner := &blockingRunner{started: make(chan []string, 1), finished: make(chan error, 1)}
	s := New(nil, time.Minute, runner, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()

	select {
	case <-runner.started:
		t.Fatal("no run expected without cities")
	default:
	}
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := New([]string{"London"}, 0, &blockingRunner{}, nil)
	if err := s.Start(); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestSchedulerSkipsRunsAfterStop(t *testing.T) {
	runner := &blockingRunner{started: make(chan []string, 1), finished: make(chan error, 1)}
	s := New([]string{"London"}, time.Hour, runner, nil)
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.runOnce()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runOnce blocked after Stop")
	}
	select {
	case <-runner.started:
		t.Fatal("no run expected after Stop")
	default:
	}
}

func TestSchedulerStopWaitsForConcurrentRuns(t *testing.T) {
	runner := &blockingRunner{started: make(chan []string, 8), finished: make(chan error, 8)}
	s := New([]string{"London"}, time.Hour, runner, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runOnce()
		}()
	}
	s.Stop()

	// Every run that registered before Stop has finished by the time Stop
	// returns; the rest never start.
	started, finished := len(runner.started), len(runner.finished)
	wg.Wait()
	if started != finished {
		t.Fatalf("%d runs started but only %d finished when Stop returned", started, finished)
	}
	if len(runner.started) != started {
		t.Fatalf("a run started after Stop returned")
	}
}
