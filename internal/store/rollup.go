package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
)

// RollupStore defines the interface for precomputed daily-rollup
// persistence. Rollups are an eventually consistent cache over raw records;
// the aggregation engine checks freshness before trusting them.
type RollupStore interface {
	// Upsert writes a rollup row, replacing any existing row for the same
	// owner, domain and day.
	Upsert(ctx context.Context, rollup *domain.DailyRollup) error

	// GetRange returns the owner's rollup rows for the domain with
	// day ∈ [from, to), ordered by day ascending. A zero from means no
	// lower bound. An empty result is not an error.
	GetRange(
		ctx context.Context,
		ownerID uuid.UUID,
		recordDomain domain.RecordDomain,
		from, to time.Time,
	) ([]*domain.DailyRollup, error)

	// LatestComputedAt returns the most recent computed_at for the owner
	// and domain, or ErrRollupNotFound when no rollups exist yet.
	LatestComputedAt(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain) (time.Time, error)

	// DeleteDay removes the rollup row for the owner, domain and day.
	// Deleting a row that does not exist is not an error. Used when a
	// rebuild finds no qualifying records left for the day.
	DeleteDay(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain, day time.Time) error
}

// StressorCatalog is the read-only reference surface of the external
// stressor catalog. Only the slug→weight mapping lives here because the
// impact formula keys off the weight; display metadata stays external.
type StressorCatalog interface {
	// Weights resolves catalog weights for the given slugs. Unknown slugs
	// are absent from the result map; callers decide whether that is an
	// error or a default-weight case.
	Weights(ctx context.Context, slugs []string) (map[string]float64, error)
}
