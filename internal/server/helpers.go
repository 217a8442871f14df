package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"carlot/internal/middleware"
	"carlot/internal/models"

	"github.com/gofiber/fiber/v2"
)

// decodeJSON strictly decodes the request body into dst. Unknown fields and
// trailing data are validation errors.
func decodeJSON(c *fiber.Ctx, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// respondError writes an API error using the status derived from its code.
// Unexpected errors are logged with request context.
func respondError(c *fiber.Ctx, err error) error {
	if models.StatusFor(err) == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.Respond(c, err)
}

// pageError sends a rendered-page failure to the error page.
func pageError(c *fiber.Ctx, err error) error {
	if models.StatusFor(err) == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "page request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return c.Redirect(middleware.ErrorPageURL(models.PublicMessage(err)), fiber.StatusFound)
}
