// Package dav provides a minimal WebDAV client exposing the whole-file
// primitives of a remote store: stat, read, write, move, copy, delete,
// and recursive directory listing.
package dav

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, dav.ErrNotFound) to check.
var (
	ErrBadRequest          = errors.New("dav: bad request")
	ErrUnauthorized        = errors.New("dav: unauthorized")
	ErrForbidden           = errors.New("dav: forbidden")
	ErrNotFound            = errors.New("dav: not found")
	ErrConflict            = errors.New("dav: conflict")
	ErrPreconditionFailed  = errors.New("dav: precondition failed")
	ErrRangeNotSatisfiable = errors.New("dav: range not satisfiable")
	ErrLocked              = errors.New("dav: resource locked")
	ErrInsufficientStorage = errors.New("dav: insufficient storage")
	ErrServerError         = errors.New("dav: server error")
)

// StatusError wraps a sentinel error with the HTTP status code and the
// server's error message body for debugging.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dav: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes (including 207 Multi-Status).
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case http.StatusRequestedRangeNotSatisfiable:
		return ErrRangeNotSatisfiable
	case http.StatusLocked:
		return ErrLocked
	case http.StatusInsufficientStorage:
		return ErrInsufficientStorage
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
