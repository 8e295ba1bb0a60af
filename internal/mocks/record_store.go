// Package mocks provides in-memory test doubles for the store interfaces.
// They reproduce the conditional-write semantics of the postgres
// implementations so service tests exercise the same contracts.
package mocks

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// MemoryRecordStore is an in-memory store.RecordStore.
type MemoryRecordStore struct {
	Records map[uuid.UUID]*domain.TimedRecord

	// BeforeComplete, when set, runs once just before CompleteIfOpen
	// evaluates the status condition. Tests use it to interleave a
	// competing terminal write.
	BeforeComplete func()
}

// Statically verify interface compliance.
var _ store.RecordStore = (*MemoryRecordStore)(nil)

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{Records: make(map[uuid.UUID]*domain.TimedRecord)}
}

func cloneRecord(r *domain.TimedRecord) *domain.TimedRecord {
	c := *r
	if r.EndAt != nil {
		end := *r.EndAt
		c.EndAt = &end
	}
	return &c
}

// Create implements store.RecordStore.
func (m *MemoryRecordStore) Create(_ context.Context, record *domain.TimedRecord) error {
	if _, ok := m.Records[record.ID]; ok {
		return store.ErrConflict
	}
	m.Records[record.ID] = cloneRecord(record)
	return nil
}

// GetByID implements store.RecordStore.
func (m *MemoryRecordStore) GetByID(_ context.Context, ownerID, id uuid.UUID) (*domain.TimedRecord, error) {
	r, ok := m.Records[id]
	if !ok || r.OwnerID != ownerID {
		return nil, store.ErrRecordNotFound
	}
	return cloneRecord(r), nil
}

// List implements store.RecordStore. Filtering covers what the service
// tests need: statuses and the start-time range.
func (m *MemoryRecordStore) List(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	filter store.ListFilter,
	page store.Page,
) (store.RecordPage, error) {
	var items []*domain.TimedRecord
	for _, r := range m.Records {
		if r.OwnerID != ownerID || r.Domain != recordDomain {
			continue
		}
		if filter.From != nil && r.StartAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !r.StartAt.Before(*filter.To) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, r.Status) {
			continue
		}
		items = append(items, cloneRecord(r))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartAt.After(items[j].StartAt) })

	result := store.RecordPage{}
	if page.Offset < len(items) {
		end := len(items)
		if page.Limit > 0 && page.Offset+page.Limit < end {
			end = page.Offset + page.Limit
			next := end
			result.NextOffset = &next
		}
		result.Items = items[page.Offset:end]
	}
	return result, nil
}

func containsStatus(statuses []domain.RecordStatus, status domain.RecordStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// SaveProgress implements store.RecordStore.
func (m *MemoryRecordStore) SaveProgress(_ context.Context, record *domain.TimedRecord) error {
	current, ok := m.Records[record.ID]
	if !ok {
		return store.ErrRecordNotFound
	}
	if current.Status != domain.StatusOpen {
		return store.ErrConflict
	}
	m.Records[record.ID] = cloneRecord(record)
	return nil
}

// CompleteIfOpen implements store.RecordStore.
func (m *MemoryRecordStore) CompleteIfOpen(_ context.Context, record *domain.TimedRecord) (bool, error) {
	if m.BeforeComplete != nil {
		hook := m.BeforeComplete
		m.BeforeComplete = nil
		hook()
	}
	current, ok := m.Records[record.ID]
	if !ok {
		return false, store.ErrRecordNotFound
	}
	if current.Status != domain.StatusOpen {
		return false, nil
	}
	m.Records[record.ID] = cloneRecord(record)
	return true, nil
}

// OverwriteDerived implements store.RecordStore.
func (m *MemoryRecordStore) OverwriteDerived(_ context.Context, record *domain.TimedRecord) error {
	current, ok := m.Records[record.ID]
	if !ok {
		return store.ErrRecordNotFound
	}
	if !current.Status.Terminal() {
		return store.ErrRecordNotFound
	}
	m.Records[record.ID] = cloneRecord(record)
	return nil
}

// FindOpen implements store.RecordStore.
func (m *MemoryRecordStore) FindOpen(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
) (*domain.TimedRecord, error) {
	var latest *domain.TimedRecord
	for _, r := range m.Records {
		if r.OwnerID != ownerID || r.Domain != recordDomain || r.Status != domain.StatusOpen {
			continue
		}
		if latest == nil || r.StartAt.After(latest.StartAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, store.ErrRecordNotFound
	}
	return cloneRecord(latest), nil
}

// ListStale implements store.RecordStore.
func (m *MemoryRecordStore) ListStale(
	_ context.Context,
	recordDomain domain.RecordDomain,
	cutoff time.Time,
	limit int,
) ([]*domain.TimedRecord, error) {
	var stale []*domain.TimedRecord
	for _, r := range m.Records {
		if r.Domain == recordDomain && r.Status == domain.StatusOpen && r.StartAt.Before(cutoff) {
			stale = append(stale, cloneRecord(r))
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].StartAt.Before(stale[j].StartAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// ListQualifying implements store.RecordStore.
func (m *MemoryRecordStore) ListQualifying(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	from, to time.Time,
	minDuration time.Duration,
) ([]*domain.TimedRecord, error) {
	var qualifying []*domain.TimedRecord
	for _, r := range m.Records {
		if r.OwnerID != ownerID || r.Domain != recordDomain || r.Status != domain.StatusFinalized {
			continue
		}
		if !from.IsZero() && r.StartAt.Before(from) {
			continue
		}
		if !r.StartAt.Before(to) || r.ActualDuration < minDuration {
			continue
		}
		qualifying = append(qualifying, cloneRecord(r))
	}
	sort.Slice(qualifying, func(i, j int) bool {
		return qualifying[i].StartAt.Before(qualifying[j].StartAt)
	})
	return qualifying, nil
}

// ListRecentStarts implements store.RecordStore.
func (m *MemoryRecordStore) ListRecentStarts(
	_ context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	limit int,
) ([]time.Time, error) {
	var starts []time.Time
	for _, r := range m.Records {
		if r.OwnerID == ownerID && r.Domain == recordDomain && r.Status == domain.StatusFinalized {
			starts = append(starts, r.StartAt)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].After(starts[j]) })
	if len(starts) > limit {
		starts = starts[:limit]
	}
	return starts, nil
}

// ListUpdatedStarts implements store.RecordStore.
func (m *MemoryRecordStore) ListUpdatedStarts(_ context.Context, since time.Time) ([]store.UpdatedStart, error) {
	var starts []store.UpdatedStart
	for _, r := range m.Records {
		if r.Status == domain.StatusFinalized && !r.UpdatedAt.Before(since) {
			starts = append(starts, store.UpdatedStart{
				OwnerID: r.OwnerID,
				Domain:  r.Domain,
				StartAt: r.StartAt,
			})
		}
	}
	return starts, nil
}
