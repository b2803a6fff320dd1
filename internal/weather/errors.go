package weather

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a weather API failure.
type ErrorKind string

const (
	KindTransport         ErrorKind = "transport"
	KindRateLimited       ErrorKind = "rate_limited"
	KindUpstreamServer    ErrorKind = "upstream_server"
	KindUpstreamClient    ErrorKind = "upstream_client"
	KindContractViolation ErrorKind = "contract_violation"
	// KindMalformedBody is a 2xx response whose body is not valid JSON.
	KindMalformedBody ErrorKind = "malformed_body"
	KindCircuitOpen   ErrorKind = "circuit_open"
)

// Transient reports whether failures of this kind are worth retrying.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindTransport, KindRateLimited, KindUpstreamServer, KindMalformedBody:
		return true
	default:
		return false
	}
}

// KindForStatus maps a non-2xx HTTP status to an ErrorKind.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500 && code <= 599:
		return KindUpstreamServer
	default:
		return KindUpstreamClient
	}
}

// APIError is a failed fetch for one city.
type APIError struct {
	Kind ErrorKind
	City string
	// StatusCode is 0 when no HTTP response was received.
	StatusCode int
	// Transient is true when the call may succeed if repeated.
	Transient bool
	Message    string
	Err        error
}

// NewAPIError builds an APIError whose Transient flag follows kind.
func NewAPIError(kind ErrorKind, city string, status int, msg string, err error) *APIError {
	return &APIError{
		Kind:       kind,
		City:       city,
		StatusCode: status,
		Transient:  kind.Transient(),
		Message:    msg,
		Err:        err,
	}
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("weather api %s for %q (HTTP %d): %s", e.Kind, e.City, e.StatusCode, msg)
	}
	return fmt.Sprintf("weather api %s for %q: %s", e.Kind, e.City, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retriable satisfies retry.Retriable.
func (e *APIError) Retriable() bool { return e.Transient }

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
