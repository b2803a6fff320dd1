package weather

import (
	"time"
)

// KelvinOffset is subtracted from Kelvin to get Celsius.
const KelvinOffset = 273.15

// KelvinToCelsius converts without clamping.
func KelvinToCelsius(k float64) float64 {
	return k - KelvinOffset
}

// Coordinates of the reported station.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is the normalized current-weather document written to the object
// store, one per successful fetch. Temperatures are always Celsius.
type Record struct {
	// City as reported by the API; may differ from the requested name.
	City               string      `json:"city"`
	Country            *string     `json:"country"`
	Coordinates        Coordinates `json:"coordinates"`
	TemperatureC       float64     `json:"temperature_c"`
	FeelsLikeC         float64     `json:"feels_like_c"`
	Humidity           int         `json:"humidity"`
	PressureHpa        int         `json:"pressure_hpa"`
	WeatherMain        string      `json:"weather_main"`
	WeatherDescription string      `json:"weather_description"`
	WindSpeedMS        float64     `json:"wind_speed_ms"`
	// TimestampUTC is set when the response is parsed, not taken from the API.
	TimestampUTC time.Time      `json:"timestamp_utc"`
	RawSource    map[string]any `json:"raw_source"`
}

// RunSummary reports one pipeline invocation. Temperature aggregates cover
// only cities that were both fetched and stored.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	TotalCities  int       `json:"total_cities"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	MinTempC     *float64  `json:"min_temp_c"`
	MaxTempC     *float64  `json:"max_temp_c"`
	AvgTempC     *float64  `json:"avg_temp_c"`
	Failures     []string  `json:"failures"`
}

// Failed reports whether any city did not produce a stored record.
func (s RunSummary) Failed() bool {
	return s.FailureCount > 0
}
