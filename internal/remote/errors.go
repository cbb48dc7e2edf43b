package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("remote: not found")
	ErrAlreadyExists = errors.New("remote: already exists")
	ErrUnauthorized  = errors.New("remote: unauthorized")
)

// StatusError is returned when the endpoint answers with an unexpected status.
type StatusError struct {
	Op         string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %q: %d %s", e.Op, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps well known statuses onto the package sentinels so callers can
// use errors.Is without caring about the transport.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusMethodNotAllowed:
		return ErrAlreadyExists
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

func NewStatusError(op, path string, code int) *StatusError {
	return &StatusError{Op: op, Path: path, StatusCode: code}
}
