package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when the backend answers 404
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx backend response
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Unwrap lets errors.Is match ErrNotFound on 404 responses
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// temporary reports whether the status is worth retrying
func (e *StatusError) temporary() bool {
	switch e.Code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}
