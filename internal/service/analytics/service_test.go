package analytics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint/stillpoint-api/internal/config"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/mocks"
	"github.com/stillpoint/stillpoint-api/internal/timerange"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		RollupStaleness:   6 * time.Hour,
		ReferenceTimezone: "UTC",
	}
}

func newTestService(
	t *testing.T,
	records *mocks.MemoryRecordStore,
	rollups *mocks.MemoryRollupStore,
	now time.Time,
) Service {
	t.Helper()
	svc, err := NewService(records, rollups, testConfig(), quietLogger(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return svc
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// seedFinalized inserts a finalized record directly into the store.
func seedFinalized(
	t *testing.T,
	records *mocks.MemoryRecordStore,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	start time.Time,
	duration time.Duration,
	mutate func(*domain.TimedRecord),
) *domain.TimedRecord {
	t.Helper()
	end := start.Add(duration)
	record := &domain.TimedRecord{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Domain:         recordDomain,
		StartAt:        start,
		EndAt:          &end,
		ActualDuration: duration,
		Status:         domain.StatusFinalized,
		CreatedAt:      start,
		UpdatedAt:      end,
	}
	if mutate != nil {
		mutate(record)
	}
	require.NoError(t, records.Create(context.Background(), record))
	return record
}

func mustResolve(t *testing.T, token string) timerange.Window {
	t.Helper()
	w, err := timerange.Resolve(token)
	require.NoError(t, err)
	return w
}

func TestDailyBucketsFromRaw(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	day1 := time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 9, 4, 8, 0, 0, 0, time.UTC)

	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise, day1, 10*time.Minute,
		func(r *domain.TimedRecord) { r.Scores.Restfulness = floatPtr(80) })
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise, day1.Add(6*time.Hour), 20*time.Minute,
		func(r *domain.TimedRecord) { r.Scores.Restfulness = floatPtr(60) })
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise, day2, 15*time.Minute,
		func(r *domain.TimedRecord) { r.Scores.Restfulness = floatPtr(90) })

	// 45 seconds is under the qualifying floor and must not appear anywhere.
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise, day2.Add(2*time.Hour), 45*time.Second, nil)

	points, err := svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC), points[0].Day)
	assert.InDelta(t, 30, points[0].TotalMinutes, 1e-9)
	assert.Equal(t, 2, points[0].RecordCount)
	require.NotNil(t, points[0].AvgScore)
	assert.InDelta(t, 70, *points[0].AvgScore, 1e-9)

	assert.Equal(t, 1, points[1].RecordCount)
	require.NotNil(t, points[1].AvgScore)
	assert.InDelta(t, 90, *points[1].AvgScore, 1e-9)
}

func TestDailyExcludesOpenRecords(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	open := &domain.TimedRecord{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Domain:    domain.DomainGuidedExercise,
		StartAt:   now.Add(-2 * time.Hour),
		Status:    domain.StatusOpen,
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	require.NoError(t, records.Create(ctx, open))

	points, err := svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestRollupAndRawPathsAgree(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	for day := 1; day <= 4; day++ {
		start := time.Date(2025, 9, day, 22, 30, 0, 0, time.UTC)
		score := float64(60 + day)
		seedFinalized(t, records, ownerID, domain.DomainSleep, start, 8*time.Hour,
			func(r *domain.TimedRecord) { r.Scores.Overall = &score })
	}

	// No rollups yet: the raw path serves the request.
	raw, err := svc.Daily(ctx, ownerID, domain.DomainSleep, mustResolve(t, "30d"))
	require.NoError(t, err)
	require.Len(t, raw, 4)

	// Materialize rollups, then read again through the rollup path.
	written, err := svc.RecomputeRollups(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	fromRollups, err := svc.Daily(ctx, ownerID, domain.DomainSleep, mustResolve(t, "30d"))
	require.NoError(t, err)

	require.Len(t, fromRollups, len(raw))
	for i := range raw {
		assert.True(t, raw[i].Day.Equal(fromRollups[i].Day), "day %d", i)
		assert.InDelta(t, raw[i].TotalMinutes, fromRollups[i].TotalMinutes, 1e-9)
		assert.Equal(t, raw[i].RecordCount, fromRollups[i].RecordCount)
		require.NotNil(t, fromRollups[i].AvgScore)
		assert.InDelta(t, *raw[i].AvgScore, *fromRollups[i].AvgScore, 1e-9)
	}
}

func TestDailyFallsBackWhenRollupsStale(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	start := time.Date(2025, 9, 4, 9, 0, 0, 0, time.UTC)
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise, start, 10*time.Minute,
		func(r *domain.TimedRecord) { r.Scores.Restfulness = floatPtr(75) })

	// A rollup computed 8 hours ago (past the 6-hour tolerance) that is
	// also wrong on purpose: the fallback must ignore it.
	require.NoError(t, rollups.Upsert(ctx, &domain.DailyRollup{
		OwnerID:      ownerID,
		Domain:       domain.DomainGuidedExercise,
		Day:          time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
		TotalMinutes: 999,
		RecordCount:  9,
		ComputedAt:   now.Add(-8 * time.Hour),
	}))

	points, err := svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 10, points[0].TotalMinutes, 1e-9)
	assert.Equal(t, 1, points[0].RecordCount)
}

func TestRecomputeRevisitsRescoredDays(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	record := seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		now.AddDate(0, 0, -5), 10*time.Minute,
		func(r *domain.TimedRecord) { r.Scores.Restfulness = floatPtr(50) })

	_, err := svc.RecomputeRollups(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)

	points, err := svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 50, *points[0].AvgScore, 1e-9)

	// A repeat finalize re-scores the record days after its start day. Only
	// updated_at moves; start_at stays on the old day.
	record.Scores.Restfulness = floatPtr(90)
	record.UpdatedAt = now
	require.NoError(t, records.OverwriteDerived(ctx, record))

	// The rollup row still holds the old value until the next recompute.
	stale, err := svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.InDelta(t, 50, *stale[0].AvgScore, 1e-9)

	// An incremental recompute keyed off updated_at must rebuild the old
	// start day, not just the days inside the sweep window.
	written, err := svc.RecomputeRollups(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	points, err = svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 90, *points[0].AvgScore, 1e-9)
}

func TestRecomputeDropsDayLeftWithoutQualifiers(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	record := seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		now.AddDate(0, 0, -3), 10*time.Minute, nil)

	_, err := svc.RecomputeRollups(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	rows, err := rollups.GetRange(ctx, ownerID, domain.DomainGuidedExercise, time.Time{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// An end override shortens the record below the qualifying floor.
	record.ActualDuration = 30 * time.Second
	record.UpdatedAt = now
	require.NoError(t, records.OverwriteDerived(ctx, record))

	written, err := svc.RecomputeRollups(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, written)

	rows, err = rollups.GetRange(ctx, ownerID, domain.DomainGuidedExercise, time.Time{}, now)
	require.NoError(t, err)
	assert.Empty(t, rows)

	points, err := svc.Daily(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestStreakRequiresToday(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	// Qualifying days: 09-01, 09-02, 09-04. Today (09-05) has nothing.
	for _, day := range []int{1, 2, 4} {
		start := time.Date(2025, 9, day, 7, 30, 0, 0, time.UTC)
		seedFinalized(t, records, ownerID, domain.DomainGuidedExercise, start, 10*time.Minute, nil)
	}

	streak, err := svc.Streak(ctx, ownerID, domain.DomainGuidedExercise)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)

	// Logging today extends the walk through 09-04's gap-free run only.
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		time.Date(2025, 9, 5, 7, 30, 0, 0, time.UTC), 10*time.Minute, nil)

	streak, err = svc.Streak(ctx, ownerID, domain.DomainGuidedExercise)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestStreakIgnoresShortRecords(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	// 45 seconds does not qualify, so today stays empty.
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		time.Date(2025, 9, 5, 7, 30, 0, 0, time.UTC), 45*time.Second, nil)

	streak, err := svc.Streak(ctx, ownerID, domain.DomainGuidedExercise)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreakMoodQualifiesWithoutDuration(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	rollups := mocks.NewMemoryRollupStore()
	now := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, rollups, now)
	ownerID := uuid.New()

	seedFinalized(t, records, ownerID, domain.DomainMood,
		time.Date(2025, 9, 5, 9, 0, 0, 0, time.UTC), 0,
		func(r *domain.TimedRecord) { r.Ratings.MoodValue = intPtr(3) })

	streak, err := svc.Streak(ctx, ownerID, domain.DomainMood)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
}

func TestTrendDirection(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	ownerID := uuid.New()

	seedSlope := func(t *testing.T, scores []float64) Service {
		t.Helper()
		records := mocks.NewMemoryRecordStore()
		for i, score := range scores {
			s := score
			start := now.AddDate(0, 0, i-len(scores)).Add(-time.Hour)
			seedFinalized(t, records, ownerID, domain.DomainSleep, start, 7*time.Hour,
				func(r *domain.TimedRecord) { r.Scores.Overall = &s })
		}
		return newTestService(t, records, mocks.NewMemoryRollupStore(), now)
	}

	t.Run("rising scores trend up", func(t *testing.T) {
		svc := seedSlope(t, []float64{50, 55, 60, 65, 70})
		overview, err := svc.Overview(ctx, ownerID, domain.DomainSleep, mustResolve(t, "7d"))
		require.NoError(t, err)
		assert.Equal(t, TrendUp, overview.Trend.Direction)
		assert.InDelta(t, 5, overview.Trend.Slope, 1e-9)
	})

	t.Run("falling scores trend down", func(t *testing.T) {
		svc := seedSlope(t, []float64{70, 65, 60, 55, 50})
		overview, err := svc.Overview(ctx, ownerID, domain.DomainSleep, mustResolve(t, "7d"))
		require.NoError(t, err)
		assert.Equal(t, TrendDown, overview.Trend.Direction)
	})

	t.Run("steady scores trend flat", func(t *testing.T) {
		svc := seedSlope(t, []float64{60, 60.01, 60, 60.02, 60})
		overview, err := svc.Overview(ctx, ownerID, domain.DomainSleep, mustResolve(t, "7d"))
		require.NoError(t, err)
		assert.Equal(t, TrendFlat, overview.Trend.Direction)
	})

	t.Run("single day trends flat", func(t *testing.T) {
		svc := seedSlope(t, []float64{60})
		overview, err := svc.Overview(ctx, ownerID, domain.DomainSleep, mustResolve(t, "7d"))
		require.NoError(t, err)
		assert.Equal(t, TrendFlat, overview.Trend.Direction)
		assert.Zero(t, overview.Trend.Slope)
	})
}

func TestTrendDeltaVsPreviousPeriod(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, mocks.NewMemoryRollupStore(), now)
	ownerID := uuid.New()

	// Previous 7-day window: average 50. Current window: average 70.
	seedFinalized(t, records, ownerID, domain.DomainSleep,
		now.AddDate(0, 0, -10), 7*time.Hour,
		func(r *domain.TimedRecord) { r.Scores.Overall = floatPtr(50) })
	seedFinalized(t, records, ownerID, domain.DomainSleep,
		now.AddDate(0, 0, -3), 7*time.Hour,
		func(r *domain.TimedRecord) { r.Scores.Overall = floatPtr(70) })

	overview, err := svc.Overview(ctx, ownerID, domain.DomainSleep, mustResolve(t, "7d"))
	require.NoError(t, err)
	require.NotNil(t, overview.Trend.DeltaVsPrevPeriod)
	assert.InDelta(t, 20, *overview.Trend.DeltaVsPrevPeriod, 1e-9)
}

func TestTrendDeltaNilWhenPreviousEmpty(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, mocks.NewMemoryRollupStore(), now)
	ownerID := uuid.New()

	seedFinalized(t, records, ownerID, domain.DomainSleep,
		now.AddDate(0, 0, -3), 7*time.Hour,
		func(r *domain.TimedRecord) { r.Scores.Overall = floatPtr(70) })

	overview, err := svc.Overview(ctx, ownerID, domain.DomainSleep, mustResolve(t, "7d"))
	require.NoError(t, err)
	assert.Nil(t, overview.Trend.DeltaVsPrevPeriod)
}

func TestOverviewGuidedExercise(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	now := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, mocks.NewMemoryRollupStore(), now)
	ownerID := uuid.New()

	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		time.Date(2025, 9, 4, 8, 0, 0, 0, time.UTC), 10*time.Minute,
		func(r *domain.TimedRecord) {
			r.Scores.Restfulness = floatPtr(80)
			r.Extension.GuidedExercise = &domain.GuidedExerciseExtension{Tags: []string{"morning"}}
		})
	latest := seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		time.Date(2025, 9, 5, 8, 0, 0, 0, time.UTC), 20*time.Minute,
		func(r *domain.TimedRecord) {
			r.Scores.Restfulness = floatPtr(60)
			r.Extension.GuidedExercise = &domain.GuidedExerciseExtension{Tags: []string{"morning", "breathing"}}
		})

	overview, err := svc.Overview(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "30d"))
	require.NoError(t, err)

	assert.Equal(t, domain.DomainGuidedExercise, overview.Domain)
	require.NotNil(t, overview.Latest)
	assert.Equal(t, latest.ID, overview.Latest.ID)

	assert.InDelta(t, 30, overview.Totals.TotalMinutes, 1e-9)
	assert.InDelta(t, 0.5, overview.Totals.TotalHours, 1e-9)
	assert.Equal(t, 2, overview.Totals.RecordCount)
	require.NotNil(t, overview.Totals.AvgScore)
	assert.InDelta(t, 70, *overview.Totals.AvgScore, 1e-9)

	assert.Equal(t, 2, overview.StreakDays)

	require.NotNil(t, overview.MinutesByTag)
	assert.InDelta(t, 30, overview.MinutesByTag["morning"], 1e-9)
	assert.InDelta(t, 20, overview.MinutesByTag["breathing"], 1e-9)
	assert.Nil(t, overview.LabelDistribution)
	assert.Nil(t, overview.TopStressors)
}

func TestOverviewLatestScopedToWindow(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	now := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, mocks.NewMemoryRollupStore(), now)
	ownerID := uuid.New()

	// The owner's only record predates the 7-day window entirely.
	seedFinalized(t, records, ownerID, domain.DomainGuidedExercise,
		now.AddDate(0, 0, -40), 10*time.Minute,
		func(r *domain.TimedRecord) { r.Scores.Restfulness = floatPtr(80) })

	overview, err := svc.Overview(ctx, ownerID, domain.DomainGuidedExercise, mustResolve(t, "7d"))
	require.NoError(t, err)

	assert.Nil(t, overview.Latest)
	assert.Zero(t, overview.Totals.RecordCount)
}

func TestSlopeSpansEmptyDays(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC) }

	// Ten calendar days apart with nothing in between: the x-axis must keep
	// the gap rather than compress the points to adjacent indexes.
	points := []DailyPoint{
		{Day: day(1), AvgScore: floatPtr(50)},
		{Day: day(11), AvgScore: floatPtr(60)},
	}
	assert.InDelta(t, 1.0, slope(points), 1e-9)

	// Days without a score are skipped without distorting the spacing.
	points = []DailyPoint{
		{Day: day(1), AvgScore: floatPtr(50)},
		{Day: day(2)},
		{Day: day(5), AvgScore: floatPtr(58)},
	}
	assert.InDelta(t, 2.0, slope(points), 1e-9)
}

func TestOverviewStress(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemoryRecordStore()
	now := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, records, mocks.NewMemoryRollupStore(), now)
	ownerID := uuid.New()

	seed := func(day int, score int, label string, stressors []domain.StressorLink) {
		seedFinalized(t, records, ownerID, domain.DomainStress,
			time.Date(2025, 9, day, 14, 0, 0, 0, time.UTC), 0,
			func(r *domain.TimedRecord) {
				r.Ratings.StressScore = &score
				r.Scores.QualitativeLabel = label
				if stressors != nil {
					r.Extension.Stress = &domain.StressExtension{Stressors: stressors}
				}
			})
	}

	seed(3, 4, "high", []domain.StressorLink{
		{Slug: "deadline", ImpactScore: floatPtr(0.8), ImpactLevel: domain.ImpactVeryHigh},
	})
	seed(4, 2, "elevated", []domain.StressorLink{
		{Slug: "deadline", ImpactScore: floatPtr(0.4), ImpactLevel: domain.ImpactModerate},
		{Slug: "commute", ImpactScore: floatPtr(0.2), ImpactLevel: domain.ImpactLow},
	})
	seed(5, 2, "elevated", nil)

	overview, err := svc.Overview(ctx, ownerID, domain.DomainStress, mustResolve(t, "30d"))
	require.NoError(t, err)

	require.NotNil(t, overview.LabelDistribution)
	assert.Equal(t, map[string]int{"high": 1, "elevated": 2}, overview.LabelDistribution)

	require.Len(t, overview.TopStressors, 2)
	assert.Equal(t, "deadline", overview.TopStressors[0].Slug)
	assert.InDelta(t, 0.6, overview.TopStressors[0].AvgImpact, 1e-9)
	assert.Equal(t, 2, overview.TopStressors[0].Count)
	assert.Equal(t, "commute", overview.TopStressors[1].Slug)

	// Stress entries carry no duration; the average is the raw 0–5 score.
	require.NotNil(t, overview.Totals.AvgScore)
	assert.InDelta(t, 8.0/3, *overview.Totals.AvgScore, 1e-9)
}

func TestUnknownDomainRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, mocks.NewMemoryRecordStore(), mocks.NewMemoryRollupStore(),
		time.Now().UTC())

	_, err := svc.Daily(ctx, uuid.New(), domain.RecordDomain("yoga"), mustResolve(t, "7d"))
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)

	_, err = svc.Streak(ctx, uuid.New(), domain.RecordDomain("yoga"))
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)
}

func TestInvalidTimezoneRejected(t *testing.T) {
	cfg := config.AnalyticsConfig{RollupStaleness: time.Hour, ReferenceTimezone: "Not/AZone"}
	_, err := NewService(mocks.NewMemoryRecordStore(), mocks.NewMemoryRollupStore(), cfg, quietLogger())
	assert.Error(t, err)
}
