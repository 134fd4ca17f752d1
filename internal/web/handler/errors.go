package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/settings"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Failures []settings.Failure `json:"failures,omitempty"`
}

// StatusOf maps an error to its http status code.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return fiber.StatusNotFound
	case apperr.ErrValidation:
		return fiber.StatusBadRequest
	case apperr.ErrConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders handler errors as ErrorResponse.
func ErrorHandler(c fiber.Ctx, err error) error {
	var (
		status = StatusOf(err)
		body   = ErrorResponse{Message: err.Error()}
	)

	var batchErr *settings.BatchError
	if errors.As(err, &batchErr) {
		body.Failures = batchErr.Failures
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).
			Str("requestId", requestid.FromContext(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")

		body.Message = "internal server error"
	}

	return c.Status(status).JSON(body)
}
