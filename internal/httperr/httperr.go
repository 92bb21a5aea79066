// Package httperr converts domain and persistence errors into fiber errors
// rendered by the application's error handler.
package httperr

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"lmis-backend/internal/database"
)

var logger = loggo.GetLogger("lmis.httperr")

// ClientError marks a domain rule violation that is the caller's fault.
// Packages declare their rule errors as ClientError constants so they map
// to 400 without this package knowing them.
type ClientError string

func (e ClientError) Error() string { return string(e) }

// FromDomain maps err to a fiber error. Errors of unknown kind become 500
// with a generic message and are logged.
func FromDomain(err error) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}

	var ce ClientError
	switch {
	case errors.Is(err, errors.NotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest), errors.Is(err, errors.NotSupported), errors.As(err, &ce):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, errors.AlreadyExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, errors.Unauthorized), errors.Is(err, errors.Forbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case database.IsNotFound(err):
		return fiber.NewError(fiber.StatusNotFound, "record not found")
	case database.IsConstraintViolation(err):
		return fiber.NewError(fiber.StatusBadRequest, "data integrity violation")
	}
	logger.Errorf("unexpected error: %s", errors.ErrorStack(err))
	return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler renders every error returned by a handler as
// {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		fe = FromDomain(err).(*fiber.Error)
	}
	return c.Status(fe.Code).JSON(fiber.Map{
		"error": fe.Message,
	})
}
