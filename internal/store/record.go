package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
)

// ListFilter narrows a record listing. Zero values mean "no constraint".
type ListFilter struct {
	// From/To bound the record's start time (inclusive).
	From *time.Time
	To   *time.Time

	// Statuses restricts the listing; empty means every status.
	Statuses []domain.RecordStatus

	// MinDuration excludes records whose actual duration is shorter.
	MinDuration *time.Duration

	// MinRating/MaxRating bound the domain's primary rating
	// (mood_value for mood, stress_score for stress).
	MinRating *int
	MaxRating *int

	// GoalCode and Tag filter guided-exercise records by extension fields.
	GoalCode string
	Tag      string
}

// Page is a limit/offset pagination request.
type Page struct {
	Limit  int
	Offset int
}

// RecordPage is one page of a listing. NextOffset is nil on the last page.
type RecordPage struct {
	Items      []*domain.TimedRecord
	NextOffset *int
}

// UpdatedStart locates a finalized record by owner, domain and start instant.
// The rollup recompute maps these to the calendar days that need rebuilding.
type UpdatedStart struct {
	OwnerID uuid.UUID
	Domain  domain.RecordDomain
	StartAt time.Time
}

// RecordStore defines the interface for timed-record persistence. All
// lookups are scoped to the owning user; a cross-owner ID resolves to
// ErrRecordNotFound rather than revealing that the record exists.
type RecordStore interface {
	// Create saves a new record. The record must be valid according to
	// domain validation rules.
	Create(ctx context.Context, record *domain.TimedRecord) error

	// GetByID retrieves a record by its unique ID, scoped to ownerID.
	// Returns ErrRecordNotFound if the record does not exist for that owner.
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.TimedRecord, error)

	// List returns a page of the owner's records in the given domain,
	// newest first, narrowed by the filter.
	List(
		ctx context.Context,
		ownerID uuid.UUID,
		recordDomain domain.RecordDomain,
		filter ListFilter,
		page Page,
	) (RecordPage, error)

	// SaveProgress persists progress mutations to an open record
	// (ratings, extension, planned duration, metadata). The write is
	// conditioned on status still being open; ErrUpdateFailed wraps
	// ErrConflict when the record has already reached a terminal state.
	SaveProgress(ctx context.Context, record *domain.TimedRecord) error

	// CompleteIfOpen performs the terminal write: end time, actual
	// duration, derived scores and the terminal status, conditioned on
	// status = open (compare-and-swap). It reports whether this call won
	// the transition; false with a nil error means another writer got
	// there first and the caller should re-read.
	CompleteIfOpen(ctx context.Context, record *domain.TimedRecord) (bool, error)

	// OverwriteDerived rewrites ratings, derived scores, metadata and end
	// fields of a record that has reached a terminal status. Used when a
	// repeat finalize supplies changed formula inputs and for metadata
	// merges onto closed records. Returns ErrRecordNotFound if the record
	// is missing or still open.
	OverwriteDerived(ctx context.Context, record *domain.TimedRecord) error

	// FindOpen returns the owner's most recently started open record in
	// the given domain, or ErrRecordNotFound when there is none.
	FindOpen(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain) (*domain.TimedRecord, error)

	// ListStale returns open records across all owners whose start time
	// predates the cutoff, oldest first, up to limit.
	ListStale(ctx context.Context, recordDomain domain.RecordDomain, cutoff time.Time, limit int) ([]*domain.TimedRecord, error)

	// ListQualifying returns the owner's finalized records in the domain
	// whose start falls within [from, to) and whose actual duration meets
	// minDuration, oldest first. A zero from means no lower bound. This is
	// the raw-record path the aggregation engine falls back to.
	ListQualifying(
		ctx context.Context,
		ownerID uuid.UUID,
		recordDomain domain.RecordDomain,
		from, to time.Time,
		minDuration time.Duration,
	) ([]*domain.TimedRecord, error)

	// ListRecentStarts returns the start times of the owner's most recent
	// finalized records in the domain, newest first, up to limit. Feeds
	// the sleep regularity sub-score.
	ListRecentStarts(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain, limit int) ([]time.Time, error)

	// ListUpdatedStarts returns the owner, domain and start time of every
	// finalized record whose updated_at is at or after the given instant.
	// A record re-scored long after its start day still surfaces here,
	// keyed by its original start, so the rollup for that day is rebuilt.
	ListUpdatedStarts(ctx context.Context, since time.Time) ([]UpdatedStart, error)
}
