package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint/stillpoint-api/internal/config"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/mocks"
	"github.com/stillpoint/stillpoint-api/internal/service/analytics"
)

func newAnalyticsRouter(
	t *testing.T,
	records *mocks.MemoryRecordStore,
	ownerID uuid.UUID,
	now time.Time,
) *chi.Mux {
	t.Helper()

	cfg := config.AnalyticsConfig{
		RollupStaleness:   6 * time.Hour,
		ReferenceTimezone: "UTC",
	}
	service, err := analytics.NewService(
		records,
		mocks.NewMemoryRollupStore(),
		cfg,
		quietTestLogger(),
		analytics.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	handler := NewAnalyticsHandler(service, quietTestLogger())

	r := chi.NewRouter()
	r.Use(ownerContext(ownerID))
	r.Route("/analytics/{domain}", func(r chi.Router) {
		r.Get("/daily", handler.Daily)
		r.Get("/overview", handler.Overview)
		r.Get("/streak", handler.Streak)
	})
	return r
}

func seedFinalizedRecord(
	t *testing.T,
	records *mocks.MemoryRecordStore,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	start time.Time,
	duration time.Duration,
	score float64,
) {
	t.Helper()

	record, err := domain.NewTimedRecord(ownerID, recordDomain, start, 0)
	require.NoError(t, err)
	end := start.Add(duration)
	record.EndAt = &end
	record.ActualDuration = duration
	record.Status = domain.StatusFinalized
	record.Scores.Restfulness = &score
	record.UpdatedAt = end
	require.NoError(t, records.Create(context.Background(), record))
}

func TestDailyEndpoint(t *testing.T) {
	ownerID := uuid.New()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	records := mocks.NewMemoryRecordStore()

	seedFinalizedRecord(t, records, ownerID, domain.DomainGuidedExercise,
		now.Add(-26*time.Hour), 30*time.Minute, 70)
	seedFinalizedRecord(t, records, ownerID, domain.DomainGuidedExercise,
		now.Add(-2*time.Hour), 15*time.Minute, 90)

	router := newAnalyticsRouter(t, records, ownerID, now)
	rec := doJSON(t, router, http.MethodGet, "/analytics/guided_exercise/daily?range=7d", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var response DailyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "guided_exercise", response.Domain)
	assert.Equal(t, "7d", response.Range)
	require.Len(t, response.Points, 2)
	assert.InDelta(t, 30.0, response.Points[0].TotalMinutes, 1e-9)
	assert.InDelta(t, 15.0, response.Points[1].TotalMinutes, 1e-9)
}

func TestDailyDefaultRange(t *testing.T) {
	ownerID := uuid.New()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	router := newAnalyticsRouter(t, mocks.NewMemoryRecordStore(), ownerID, now)

	rec := doJSON(t, router, http.MethodGet, "/analytics/sleep/daily", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var response DailyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "30d", response.Range)
	assert.Empty(t, response.Points)
}

func TestDailyRejectsUnknownRange(t *testing.T) {
	router := newAnalyticsRouter(t, mocks.NewMemoryRecordStore(), uuid.New(), time.Now().UTC())

	rec := doJSON(t, router, http.MethodGet, "/analytics/sleep/daily?range=fortnight", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyRejectsUnknownDomain(t *testing.T) {
	router := newAnalyticsRouter(t, mocks.NewMemoryRecordStore(), uuid.New(), time.Now().UTC())

	rec := doJSON(t, router, http.MethodGet, "/analytics/journaling/daily", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	ownerID := uuid.New()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	records := mocks.NewMemoryRecordStore()

	seedFinalizedRecord(t, records, ownerID, domain.DomainGuidedExercise,
		now.Add(-26*time.Hour), 30*time.Minute, 70)
	seedFinalizedRecord(t, records, ownerID, domain.DomainGuidedExercise,
		now.Add(-2*time.Hour), 15*time.Minute, 90)

	router := newAnalyticsRouter(t, records, ownerID, now)
	rec := doJSON(t, router, http.MethodGet, "/analytics/guided_exercise/overview?range=7d", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var response OverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "guided_exercise", response.Domain)
	assert.Equal(t, "7d", response.Range)
	assert.Equal(t, 2, response.Totals.RecordCount)
	assert.InDelta(t, 45.0, response.Totals.TotalMinutes, 1e-9)
	require.NotNil(t, response.Latest)
	assert.Equal(t, "finalized", response.Latest.Status)
	assert.Equal(t, 2, response.StreakDays)
}

func TestStreakEndpoint(t *testing.T) {
	ownerID := uuid.New()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	records := mocks.NewMemoryRecordStore()

	seedFinalizedRecord(t, records, ownerID, domain.DomainGuidedExercise,
		now.Add(-2*time.Hour), 15*time.Minute, 90)

	router := newAnalyticsRouter(t, records, ownerID, now)
	rec := doJSON(t, router, http.MethodGet, "/analytics/guided_exercise/streak", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var response StreakResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response.StreakDays)
}

func TestAnalyticsRequireOwner(t *testing.T) {
	router := newAnalyticsRouter(t, mocks.NewMemoryRecordStore(), uuid.Nil, time.Now().UTC())

	rec := doJSON(t, router, http.MethodGet, "/analytics/mood/streak", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
