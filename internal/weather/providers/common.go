package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-s3-ingest/internal/retry"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// BreakerConfig controls the circuit breaker wrapped around upstream calls.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures that
	// opens the breaker. Zero disables the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
}

// newBreaker returns nil when the breaker is disabled. Only transient faults
// count against it; a bad city name must not cut off the other cities.
func newBreaker(name string, cfg BreakerConfig, logger *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		return nil
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retry.IsRetriable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// doRequest executes one request through the optional circuit breaker and
// returns the body of a 2xx response. Every failure is a *weather.APIError.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	city string,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	call := func() ([]byte, error) {
		req, err := buildRequest(ctx)
		if err != nil {
			return nil, weather.NewAPIError(weather.KindUpstreamClient, city, 0, "cannot build request", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, weather.NewAPIError(weather.KindTransport, city, 0, "network error", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, weather.NewAPIError(weather.KindTransport, city, resp.StatusCode, "reading response body", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, weather.NewAPIError(weather.KindForStatus(resp.StatusCode), city, resp.StatusCode,
				statusMessage(resp.StatusCode, body), nil)
		}
		return body, nil
	}

	if cb == nil {
		return call()
	}

	result, err := cb.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, weather.NewAPIError(weather.KindCircuitOpen, city, 0, "circuit breaker open", err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}

// statusMessage renders "HTTP <code>", adding the JSON "message" field when
// the upstream body carries one.
func statusMessage(code int, body []byte) string {
	msg := fmt.Sprintf("HTTP %d", code)

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg += ": " + payload.Message
	}
	return msg
}
