package societyapi

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrTooManyRetries = errors.New("too many retries")
var ErrUnauthorized = errors.New("unauthorized")
var ErrNotFound = errors.New("not found")
var ErrUnableToDecodeResponse = errors.New("unable to decode response")
var ErrMaintenance = errors.New("backend is in maintenance mode")

// APIError is the error reported by the backend, either through a non-2xx status or a
// 2xx envelope with success set to false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("a backend error occurred. Message: %s, Status: %d", e.Message, e.StatusCode)
}

// Unwrap lets callers match the status based sentinels with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusServiceUnavailable:
		return ErrMaintenance
	}
	return nil
}
