package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wikicite/archiver/internal/service"
	"github.com/wikicite/archiver/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrSourceNotFound):
		return http.StatusNotFound

	// The wiki page behind a create request does not exist
	case errors.Is(err, service.ErrPageNotFound):
		return http.StatusUnprocessableEntity

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTaskState):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, store.ErrInvalidPageToken):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrSourceNotFound):
		return "Source not found"

	case errors.Is(err, service.ErrPageNotFound):
		return "Page not found"

	case errors.Is(err, service.ErrInvalidTaskState):
		return "Task is already in a terminal state"

	case errors.Is(err, store.ErrInvalidPageToken):
		return "Invalid page token"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'CreateTaskRequest.PageID' Error:Field
		// validation for 'PageID' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt":
		return "must be positive"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
