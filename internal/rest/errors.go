package rest

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error from the notes service to an HTTP status.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, notes.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, notes.ErrAuthentication):
		return fiber.StatusUnauthorized
	case errors.Is(err, notes.ErrAccessDenied):
		return fiber.StatusForbidden
	case errors.Is(err, notes.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, notes.ErrLimitExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, notes.ErrPublish):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers and middleware. Internal
// failures are logged and their details withheld from the client.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		requestID := notes.RequestID(c.UserContext())
		detail := err.Error()
		switch status {
		case fiber.StatusInternalServerError:
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"request_id", requestID,
				"err", err)
			detail = "internal server error"
		case fiber.StatusBadGateway:
			logger.Error("change committed but event was not published",
				"method", c.Method(),
				"path", c.Path(),
				"request_id", requestID,
				"err", err)
		}
		return c.Status(status).JSON(ErrorResponse{Detail: detail, RequestID: requestID})
	}
}
