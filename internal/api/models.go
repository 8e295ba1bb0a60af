package api

import (
	"time"

	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/service/analytics"
)

// Common request/response structures

// OpenRecordRequest defines the payload for opening a timed record.
type OpenRecordRequest struct {
	// PlannedDurationSeconds is the caller's target; optional, absent for
	// the single-shot domains.
	PlannedDurationSeconds int64 `json:"planned_duration_seconds,omitempty" validate:"gte=0"`

	// AllowConcurrent overrides the one-open-record rule for domains that
	// enforce it.
	AllowConcurrent bool `json:"allow_concurrent,omitempty"`

	Ratings   domain.Ratings   `json:"ratings"`
	Extension domain.Extension `json:"extension"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// ProgressRequest defines the payload for a progress update on an open
// record. Absent fields leave the stored values untouched.
type ProgressRequest struct {
	Ratings                domain.Ratings `json:"ratings"`
	PlannedDurationSeconds *int64         `json:"planned_duration_seconds,omitempty" validate:"omitempty,gt=0"`

	AppendStages []domain.StageSegment `json:"append_stages,omitempty"`
	Stressors    []domain.StressorLink `json:"stressors,omitempty"`

	Tags            []string `json:"tags,omitempty"`
	CyclesCompleted *int     `json:"cycles_completed,omitempty" validate:"omitempty,gte=0"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// FinalizeRequest defines the payload for finalizing a record.
type FinalizeRequest struct {
	// EndAt overrides the finalize instant; nil means now.
	EndAt *time.Time `json:"end_at,omitempty"`

	Ratings   domain.Ratings        `json:"ratings"`
	Stressors []domain.StressorLink `json:"stressors,omitempty"`
	Metadata  map[string]any        `json:"metadata,omitempty"`
}

// RecordResponse represents the response data for a timed record. Durations
// are surfaced in whole seconds.
type RecordResponse struct {
	ID                     string               `json:"id"`
	OwnerID                string               `json:"owner_id"`
	Domain                 string               `json:"domain"`
	StartAt                time.Time            `json:"start_at"`
	EndAt                  *time.Time           `json:"end_at,omitempty"`
	PlannedDurationSeconds int64                `json:"planned_duration_seconds,omitempty"`
	ActualDurationSeconds  int64                `json:"actual_duration_seconds,omitempty"`
	Status                 string               `json:"status"`
	Ratings                domain.Ratings       `json:"ratings"`
	Scores                 domain.DerivedScores `json:"derived_scores"`
	Extension              domain.Extension     `json:"extension"`
	Metadata               map[string]any       `json:"metadata,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

// recordToResponse transforms a domain record into its response shape.
func recordToResponse(record *domain.TimedRecord) RecordResponse {
	return RecordResponse{
		ID:                     record.ID.String(),
		OwnerID:                record.OwnerID.String(),
		Domain:                 string(record.Domain),
		StartAt:                record.StartAt,
		EndAt:                  record.EndAt,
		PlannedDurationSeconds: int64(record.PlannedDuration.Seconds()),
		ActualDurationSeconds:  int64(record.ActualDuration.Seconds()),
		Status:                 string(record.Status),
		Ratings:                record.Ratings,
		Scores:                 record.Scores,
		Extension:              record.Extension,
		Metadata:               record.Metadata,
		CreatedAt:              record.CreatedAt,
		UpdatedAt:              record.UpdatedAt,
	}
}

// ListRecordsResponse is one page of a record listing.
type ListRecordsResponse struct {
	Items []RecordResponse `json:"items"`

	// NextOffset is the offset of the following page; absent on the last.
	NextOffset *int `json:"next_offset,omitempty"`
}

// DailyResponse carries the per-day aggregates for one domain and window.
type DailyResponse struct {
	Domain string                 `json:"domain"`
	Range  string                 `json:"range"`
	Points []analytics.DailyPoint `json:"points"`
}

// OverviewResponse is the per-domain dashboard block. It mirrors
// analytics.Overview with the latest record mapped to its response shape.
type OverviewResponse struct {
	Domain string          `json:"domain"`
	Range  string          `json:"range"`
	Latest *RecordResponse `json:"latest,omitempty"`

	Trend      analytics.TrendBlock `json:"trend"`
	Totals     analytics.Totals     `json:"totals"`
	StreakDays int                  `json:"streak_days"`

	LabelDistribution map[string]int              `json:"label_distribution,omitempty"`
	TopStressors      []analytics.StressorSummary `json:"top_stressors,omitempty"`
	MinutesByTag      map[string]float64          `json:"minutes_by_tag,omitempty"`
}

// overviewToResponse transforms the service overview into its response shape.
func overviewToResponse(overview *analytics.Overview, rangeToken string) OverviewResponse {
	response := OverviewResponse{
		Domain:            string(overview.Domain),
		Range:             rangeToken,
		Trend:             overview.Trend,
		Totals:            overview.Totals,
		StreakDays:        overview.StreakDays,
		LabelDistribution: overview.LabelDistribution,
		TopStressors:      overview.TopStressors,
		MinutesByTag:      overview.MinutesByTag,
	}
	if overview.Latest != nil {
		latest := recordToResponse(overview.Latest)
		response.Latest = &latest
	}
	return response
}

// StreakResponse carries the contiguous-day streak for one domain.
type StreakResponse struct {
	Domain     string `json:"domain"`
	StreakDays int    `json:"streak_days"`
}
