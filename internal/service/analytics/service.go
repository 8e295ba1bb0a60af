// Package analytics is the read side of the records system: daily buckets,
// streaks, trend direction and the per-domain overview. Values are served
// from precomputed daily rollups when those are fresh, and recomputed from
// raw records otherwise; both paths must produce identical results.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/timerange"
)

// minQualifyingDuration excludes trivially short timed records from every
// aggregate. Mood and stress entries carry no duration and qualify on
// finalized status alone.
const minQualifyingDuration = 60 * time.Second

// trendEpsilon is the slope band treated as flat.
const trendEpsilon = 0.05

// streakLookbackDays bounds how far back the streak walk can reach.
const streakLookbackDays = 366

// Trend directions.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// DailyPoint is one calendar day's aggregate for an owner and domain. Days
// with no qualifying records produce no point.
type DailyPoint struct {
	Day          time.Time `json:"day"`
	TotalMinutes float64   `json:"total_minutes"`
	AvgScore     *float64  `json:"avg_score,omitempty"`
	RecordCount  int       `json:"record_count"`
}

// TrendBlock describes the direction of the domain's primary metric over
// the requested window.
type TrendBlock struct {
	// Direction is up, down or flat; the slope band within ±0.05 reads
	// as flat.
	Direction string `json:"direction"`

	// Slope is the least-squares slope of daily averages over the day's
	// calendar offset within the window.
	Slope float64 `json:"slope"`

	// DeltaVsPrevPeriod is the current window's average minus the
	// preceding equal-length window's average. Nil when either window is
	// empty or the window is unbounded.
	DeltaVsPrevPeriod *float64 `json:"delta_vs_prev_period,omitempty"`
}

// Totals aggregates the window as a whole.
type Totals struct {
	TotalMinutes float64  `json:"total_minutes"`
	TotalHours   float64  `json:"total_hours"`
	RecordCount  int      `json:"record_count"`
	AvgScore     *float64 `json:"avg_score,omitempty"`
}

// StressorSummary ranks one stressor by its average impact across the
// window's stress entries.
type StressorSummary struct {
	Slug      string  `json:"slug"`
	AvgImpact float64 `json:"avg_impact"`
	Count     int     `json:"count"`
}

// Overview is the per-domain dashboard block. The domain-specific fields
// (LabelDistribution, TopStressors, MinutesByTag) are populated only for the
// domains they apply to.
type Overview struct {
	Domain domain.RecordDomain `json:"domain"`

	// Latest is the most recent qualifying record within the requested
	// window. Nil when the window holds none.
	Latest *domain.TimedRecord `json:"latest,omitempty"`

	Trend      TrendBlock `json:"trend"`
	Totals     Totals     `json:"totals"`
	StreakDays int        `json:"streak_days"`

	// LabelDistribution counts qualitative labels (mood, stress).
	LabelDistribution map[string]int `json:"label_distribution,omitempty"`

	// TopStressors ranks stressors by average impact (stress).
	TopStressors []StressorSummary `json:"top_stressors,omitempty"`

	// MinutesByTag sums minutes per tag (guided exercise).
	MinutesByTag map[string]float64 `json:"minutes_by_tag,omitempty"`
}

// Service is the aggregation engine.
type Service interface {
	// Daily returns the window's per-day aggregates, ascending by day.
	// Served from rollups when fresh, recomputed from raw records
	// otherwise.
	Daily(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain, window timerange.Window) ([]DailyPoint, error)

	// Overview assembles the domain's dashboard block for the window.
	// Always reads raw records: the overview needs labels, tags and
	// stressor links that rollup rows do not carry.
	Overview(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain, window timerange.Window) (*Overview, error)

	// Streak counts contiguous qualifying days ending today in the
	// reference zone. A day with no qualifying record, today included,
	// ends the walk, so an owner who has not logged today reports 0.
	Streak(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain) (int, error)

	// RecomputeRollups rebuilds the daily rollups for every day that holds
	// a finalized record updated since the given instant and returns how
	// many rows were written. The periodic maintenance task drives this.
	RecomputeRollups(ctx context.Context, since time.Time) (int, error)
}
