package handlers

import (
	"fmt"

	"pasar/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// respondError writes the uniform error response shape: a stable
// machine-readable code plus a human-readable message. Internal details never
// leak to the client.
func respondError(c *fiber.Ctx, err error) error {
	return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{
		"code":    string(apperrors.KindOf(err)),
		"message": apperrors.PublicMessage(err),
	})
}

// respondValidationErrors renders validator failures field by field.
func respondValidationErrors(c *fiber.Ctx, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return respondError(c, apperrors.Validation("invalid request body"))
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"code":    string(apperrors.KindValidation),
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
