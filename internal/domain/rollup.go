package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Rollup validation errors.
var (
	ErrRollupOwnerIDEmpty = errors.New("rollup owner ID cannot be empty")
	ErrRollupDayZero      = errors.New("rollup day cannot be zero")
	ErrNegativeCount      = errors.New("rollup record count cannot be negative")
)

// DailyRollup is a precomputed per-day aggregate of qualifying records for
// one owner and domain. Rollups are an optimization: the aggregation engine
// must produce identical results whether it reads these rows or recomputes
// from raw records.
type DailyRollup struct {
	OwnerID      uuid.UUID    `json:"owner_id"`
	Domain       RecordDomain `json:"domain"`
	Day          time.Time    `json:"day"` // midnight in the owner's reference zone
	TotalMinutes float64      `json:"total_minutes"`
	AvgScore     *float64     `json:"avg_score,omitempty"`
	RecordCount  int          `json:"record_count"`
	ComputedAt   time.Time    `json:"computed_at"`
}

// Validate checks the rollup's invariants.
func (d *DailyRollup) Validate() error {
	if d.OwnerID == uuid.Nil {
		return ErrRollupOwnerIDEmpty
	}
	if !d.Domain.Valid() {
		return ErrUnknownDomain
	}
	if d.Day.IsZero() {
		return ErrRollupDayZero
	}
	if d.RecordCount < 0 {
		return ErrNegativeCount
	}
	return nil
}
