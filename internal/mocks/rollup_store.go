package mocks

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// MemoryRollupStore is an in-memory store.RollupStore.
type MemoryRollupStore struct {
	Rows map[rollupKey]*domain.DailyRollup
}

type rollupKey struct {
	ownerID uuid.UUID
	domain  domain.RecordDomain
	day     time.Time
}

// Statically verify interface compliance.
var _ store.RollupStore = (*MemoryRollupStore)(nil)

// NewMemoryRollupStore creates an empty in-memory rollup store.
func NewMemoryRollupStore() *MemoryRollupStore {
	return &MemoryRollupStore{Rows: make(map[rollupKey]*domain.DailyRollup)}
}

// Upsert implements store.RollupStore.
func (m *MemoryRollupStore) Upsert(_ context.Context, rollup *domain.DailyRollup) error {
	c := *rollup
	if rollup.AvgScore != nil {
		avg := *rollup.AvgScore
		c.AvgScore = &avg
	}
	m.Rows[rollupKey{rollup.OwnerID, rollup.Domain, rollup.Day}] = &c
	return nil
}

// GetRange implements store.RollupStore.
func (m *MemoryRollupStore) GetRange(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	from, to time.Time,
) ([]*domain.DailyRollup, error) {
	var rows []*domain.DailyRollup
	for key, row := range m.Rows {
		if key.ownerID != ownerID || key.domain != recordDomain {
			continue
		}
		if !from.IsZero() && key.day.Before(from) {
			continue
		}
		if !key.day.Before(to) {
			continue
		}
		c := *row
		rows = append(rows, &c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })
	return rows, nil
}

// DeleteDay implements store.RollupStore.
func (m *MemoryRollupStore) DeleteDay(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	day time.Time,
) error {
	delete(m.Rows, rollupKey{ownerID, recordDomain, day})
	return nil
}

// LatestComputedAt implements store.RollupStore.
func (m *MemoryRollupStore) LatestComputedAt(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
) (time.Time, error) {
	var latest time.Time
	found := false
	for key, row := range m.Rows {
		if key.ownerID == ownerID && key.domain == recordDomain {
			found = true
			if row.ComputedAt.After(latest) {
				latest = row.ComputedAt
			}
		}
	}
	if !found {
		return time.Time{}, store.ErrRollupNotFound
	}
	return latest, nil
}

// MemoryStressorCatalog is an in-memory store.StressorCatalog serving
// weights from a fixed map. Unknown slugs are absent from the result, per
// the interface contract.
type MemoryStressorCatalog struct {
	ByCatalogSlug map[string]float64
}

// Statically verify interface compliance.
var _ store.StressorCatalog = (*MemoryStressorCatalog)(nil)

// Weights implements store.StressorCatalog.
func (m *MemoryStressorCatalog) Weights(_ context.Context, slugs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(slugs))
	for _, slug := range slugs {
		if w, ok := m.ByCatalogSlug[slug]; ok {
			out[slug] = w
		}
	}
	return out, nil
}
