package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/pkg/logger"
)

// statusForKind maps the error taxonomy onto HTTP statuses. Empty-document
// failures surface as upstream errors: from the caller's view the OCR step
// produced nothing usable.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindPermissionDenied:
		return fiber.StatusForbidden
	case apperr.KindUpstream, apperr.KindEmptyDocument:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders err as a JSON error body. Internal errors are logged
// with their cause but reported generically; taxonomy errors expose their
// message and, for validation, the offending field.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	if status == fiber.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(status).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	body := fiber.Map{
		"error": errorMessage(err),
		"code":  kind.String(),
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}

	return c.Status(status).JSON(body)
}

func errorMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return err.Error()
}
