package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/service/auth"
	"github.com/stillpoint/stillpoint-api/internal/service/lifecycle"
	"github.com/stillpoint/stillpoint-api/internal/store"
	"github.com/stillpoint/stillpoint-api/internal/timerange"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"record not found", store.ErrRecordNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("get: %w", store.ErrRecordNotFound), http.StatusNotFound},
		{"active record exists", lifecycle.ErrActiveRecordExists, http.StatusConflict},
		{"record closed", lifecycle.ErrRecordClosed, http.StatusConflict},
		{"lost update", store.ErrUpdateFailed, http.StatusConflict},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"mood value required", lifecycle.ErrMoodValueRequired, http.StatusBadRequest},
		{"invalid range", timerange.ErrInvalidRange, http.StatusBadRequest},
		{"rating out of range", domain.ErrRatingOutOfRange, http.StatusBadRequest},
		{"stage overlap", domain.ErrStageOverlap, http.StatusBadRequest},
		{"end before start", domain.ErrEndBeforeStart, http.StatusBadRequest},
		{"unknown error", errors.New("database exploded"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"record not found", store.ErrRecordNotFound, "Record not found"},
		{"active record", lifecycle.ErrActiveRecordExists, "An open record already exists for this domain"},
		{"record closed", lifecycle.ErrRecordClosed, "Record is already closed"},
		{"mood value", lifecycle.ErrMoodValueRequired, "Mood entries require a mood value"},
		{"invalid range", timerange.ErrInvalidRange, "Invalid range token"},
		{"domain sentinel", domain.ErrStageOverlap, "Sleep stage segments must not overlap"},
		{
			"wrapped domain sentinel drops context",
			fmt.Errorf("save progress for owner 7f3a: %w", domain.ErrRatingOutOfRange),
			"Rating out of range",
		},
		{"unknown", errors.New("pq: connection refused"), "An unexpected error occurred"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := errors.New(
		"Key: 'OpenRecordRequest.PlannedDurationSeconds' " +
			"Error:Field validation for 'PlannedDurationSeconds' failed on the 'gte' tag",
	)
	assert.Equal(
		t,
		"Invalid value for field PlannedDurationSeconds (gte)",
		SanitizeValidationError(err),
	)

	assert.Equal(t, "Invalid request format", SanitizeValidationError(errors.New("unexpected EOF")))
}
