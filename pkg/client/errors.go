package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches 400 responses.
	ErrValidation = errors.New("validation failed")
	// ErrConflict matches 409 responses.
	ErrConflict = errors.New("conflict")
	// ErrServer matches every other error response.
	ErrServer = errors.New("server error")
)

// Failure names one rejected batch entry.
type Failure struct {
	Index   int    `json:"index"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// APIError is an error response of the settings api.
type APIError struct {
	StatusCode int       `json:"-"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Failures   []Failure `json:"failures,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("settings api: %d %s", e.StatusCode, e.Message)
}

// Unwrap returns the sentinel matching the status code.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrServer
	}
}
