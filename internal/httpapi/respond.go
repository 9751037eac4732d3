// Package httpapi wires the fiber HTTP server: routing, request
// validation, the auth middleware and the error-to-status mapping,
// grounded on the teacher's common/net/http handler/error conventions.
package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aeroframe-io/core/internal/apperr"
)

// ResponseError is the stable error body shape (spec.md §7): never a
// stack trace, always a category-bearing message.
type ResponseError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WithError maps an AppError to its HTTP status, mirroring the teacher's
// common/net/http/errors.go WithError switch.
func WithError(c *fiber.Ctx, err error) error {
	ae := apperr.Translate(err)

	status := fiber.StatusInternalServerError

	switch ae.Category {
	case apperr.CategoryValidation:
		status = fiber.StatusBadRequest
	case apperr.CategoryUnauthenticated:
		status = fiber.StatusUnauthorized
	case apperr.CategoryForbidden:
		status = fiber.StatusForbidden
	case apperr.CategoryNotFound:
		status = fiber.StatusNotFound
	case apperr.CategoryConflict:
		status = fiber.StatusConflict
	case apperr.CategoryRateLimited:
		status = fiber.StatusTooManyRequests
	case apperr.CategoryInternal:
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(ResponseError{Error: ae.Message, Code: ae.Code})
}

func OK(c *fiber.Ctx, body any) error      { return c.Status(fiber.StatusOK).JSON(body) }
func Created(c *fiber.Ctx, body any) error { return c.Status(fiber.StatusCreated).JSON(body) }
func NoContent(c *fiber.Ctx) error         { return c.SendStatus(fiber.StatusNoContent) }
