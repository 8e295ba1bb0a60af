package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/service/auth"
	"github.com/stillpoint/stillpoint-api/internal/service/lifecycle"
	"github.com/stillpoint/stillpoint-api/internal/store"
	"github.com/stillpoint/stillpoint-api/internal/timerange"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Not found errors; cross-owner lookups resolve here too
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, lifecycle.ErrActiveRecordExists),
		errors.Is(err, lifecycle.ErrRecordClosed),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrUpdateFailed):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, lifecycle.ErrMoodValueRequired),
		errors.Is(err, timerange.ErrInvalidRange),
		isDomainValidationError(err):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// domainValidationSentinels are the domain layer's field validation errors,
// all of which are safe to surface verbatim.
var domainValidationSentinels = []error{
	domain.ErrUnknownDomain,
	domain.ErrInvalidStatus,
	domain.ErrEndBeforeStart,
	domain.ErrNegativePlanned,
	domain.ErrRatingOutOfRange,
	domain.ErrUnknownStage,
	domain.ErrStageOverlap,
	domain.ErrStageEndBeforeStart,
	domain.ErrStressorSlugEmpty,
}

// matchDomainValidationError returns the matching domain validation sentinel,
// or nil when the error is not one.
func matchDomainValidationError(err error) error {
	for _, sentinel := range domainValidationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isDomainValidationError(err error) bool {
	return matchDomainValidationError(err) != nil
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	// Not found errors
	case errors.Is(err, store.ErrRecordNotFound):
		return "Record not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	// Conflict errors
	case errors.Is(err, lifecycle.ErrActiveRecordExists):
		return "An open record already exists for this domain"

	case errors.Is(err, lifecycle.ErrRecordClosed):
		return "Record is already closed"

	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrUpdateFailed):
		return "Record was modified concurrently"

	// Bad request errors
	case errors.Is(err, lifecycle.ErrMoodValueRequired):
		return "Mood entries require a mood value"

	case errors.Is(err, timerange.ErrInvalidRange):
		return "Invalid range token"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case isDomainValidationError(err):
		// Surface the sentinel's own message, never the wrapping context.
		return capitalizeSentinel(matchDomainValidationError(err))

	// Default case for unknown errors
	default:
		return "An unexpected error occurred"
	}
}

// capitalizeSentinel upper-cases the first letter of a sentinel's message
// for presentation.
func capitalizeSentinel(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'OpenRecordRequest.PlannedDurationSeconds'
	// Error:Field validation for 'PlannedDurationSeconds' failed on the
	// 'gte' tag"
	if strings.Contains(errMsg, "Field validation") {
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
					return fmt.Sprintf("Invalid value for field %s (%s)", field, tag)
				}
				return fmt.Sprintf("Invalid value for field %s", field)
			}
		}
		return "Request validation failed"
	}

	return "Invalid request format"
}
