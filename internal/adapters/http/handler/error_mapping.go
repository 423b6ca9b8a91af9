package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/ogurasousui/personnel-records/internal/core/employee"
)

func toErrorResponse(err error) (int, ErrorResponse) {
	var (
		validationErr *employee.ValidationError
		duplicateErr  *employee.DuplicateSSNError
	)

	switch {
	case errors.As(err, &duplicateErr):
		return fiber.StatusConflict, ErrorResponse{
			Code:    "DUPLICATE_SSN",
			Field:   "ssn",
			Message: fmt.Sprintf("SSN %s already exists", duplicateErr.SSN),
		}
	case errors.Is(err, employee.ErrSSNAlreadyExists):
		return fiber.StatusConflict, ErrorResponse{Code: "DUPLICATE_SSN", Field: "ssn", Message: "SSN already exists"}
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, ErrorResponse{Code: "VALIDATION", Field: validationErr.Field, Message: validationErr.Err.Error()}
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return fiber.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, employee.ErrConcurrentModification):
		return fiber.StatusConflict, ErrorResponse{Code: "CONCURRENT_MODIFICATION", Message: "employee was modified concurrently, retry the request"}
	case errors.Is(err, employee.ErrStorage):
		return fiber.StatusInternalServerError, ErrorResponse{Code: "STORAGE", Message: "storage is unavailable"}
	default:
		return fiber.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal error"}
	}
}

func (h *EmployeeHandler) writeError(c *fiber.Ctx, err error) error {
	status, body := toErrorResponse(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", RequestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler は fiber のルーティング由来のエラー (404, 405 など) を JSON で返します。
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(status).JSON(ErrorResponse{Code: "HTTP_" + fmt.Sprint(status), Message: message})
}
