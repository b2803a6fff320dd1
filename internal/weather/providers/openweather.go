package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-s3-ingest/internal/logging"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherClient fetches current weather for one city per call from
// OpenWeatherMap. Responses are requested in the default (Kelvin) units and
// converted to Celsius.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// OpenWeatherOptions configures an OpenWeatherClient.
type OpenWeatherOptions struct {
	APIKey  string
	BaseURL string
	Breaker BreakerConfig
	Logger  *zap.SugaredLogger
}

// NewOpenWeatherClient creates a client. An empty BaseURL uses
// DefaultOpenWeatherURL.
func NewOpenWeatherClient(client *http.Client, opts OpenWeatherOptions) *OpenWeatherClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &OpenWeatherClient{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		client:  client,
		circuit: newBreaker("openweathermap", opts.Breaker, logging.OrNop(opts.Logger)),
		now:     time.Now,
	}
}

// Fetch issues one request for city and normalizes the response.
func (p *OpenWeatherClient) Fetch(ctx context.Context, city string) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, weather.NewAPIError(weather.KindUpstreamClient, city, 0, "openweather api key is not configured", nil)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("q", city)
		values.Set("appid", p.apiKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequest(ctx, p.client, p.circuit, city, buildRequest)
	if err != nil {
		return weather.Record{}, err
	}

	return parseOpenWeather(city, body, p.now())
}

// openWeatherPayload lists the fields we read. Pointers distinguish absent
// values from zero.
type openWeatherPayload struct {
	ID    *int64 `json:"id"`
	Dt    *int64 `json:"dt"`
	Name  string `json:"name"`
	Coord *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Sys *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
		Pressure  *float64 `json:"pressure"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// parseOpenWeather converts a 2xx body into a Record. Invalid JSON is a
// transient fault; valid JSON with the wrong shape is a contract violation.
func parseOpenWeather(city string, body []byte, now time.Time) (weather.Record, error) {
	if !json.Valid(body) {
		return weather.Record{}, weather.NewAPIError(weather.KindMalformedBody, city, 0, "failed to parse JSON response", nil)
	}

	var payload openWeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Record{}, weather.NewAPIError(weather.KindContractViolation, city, 0, "unexpected response structure", err)
	}
	if payload.Main == nil || payload.Main.Temp == nil {
		return weather.Record{}, weather.NewAPIError(weather.KindContractViolation, city, 0, "unexpected response structure: missing main.temp", nil)
	}

	tempK := *payload.Main.Temp
	feelsK := tempK
	if payload.Main.FeelsLike != nil {
		feelsK = *payload.Main.FeelsLike
	}

	rec := weather.Record{
		City:         city,
		TemperatureC: weather.KelvinToCelsius(tempK),
		FeelsLikeC:   weather.KelvinToCelsius(feelsK),
		Humidity:     int(deref(payload.Main.Humidity)),
		PressureHpa:  int(deref(payload.Main.Pressure)),
		TimestampUTC: now.UTC(),
		RawSource:    map[string]any{"id": payload.ID, "dt": payload.Dt},
	}
	if payload.Name != "" {
		rec.City = payload.Name
	}
	if payload.Sys != nil {
		rec.Country = payload.Sys.Country
	}
	if payload.Coord != nil {
		rec.Coordinates = weather.Coordinates{Lat: deref(payload.Coord.Lat), Lon: deref(payload.Coord.Lon)}
	}
	if payload.Wind != nil {
		rec.WindSpeedMS = deref(payload.Wind.Speed)
	}
	if len(payload.Weather) > 0 {
		rec.WeatherMain = payload.Weather[0].Main
		rec.WeatherDescription = payload.Weather[0].Description
	}

	return rec, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
