package weather

import (
	"context"
)

// Fetcher abstracts the current-weather source (OpenWeatherMap in production).
// Failures are reported as *APIError.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (Record, error)
}
