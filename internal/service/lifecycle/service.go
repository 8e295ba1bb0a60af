// Package lifecycle drives the timed-record state machine: open records,
// progress updates, finalization with derived-score computation, and the
// staleness sweep that abandons records left open too long.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// Service-specific errors.
var (
	// ErrActiveRecordExists is returned when opening a record in a domain
	// that disallows concurrent open records (sleep) while one is open.
	ErrActiveRecordExists = errors.New("an open record already exists for this domain")

	// ErrRecordClosed is returned for mutations that require an open
	// record when the record has already reached a terminal state.
	ErrRecordClosed = errors.New("record has already reached a terminal state")

	// ErrRecordNotFound mirrors the store sentinel at the service boundary.
	ErrRecordNotFound = store.ErrRecordNotFound

	// ErrMoodValueRequired is returned when a mood entry is opened
	// without its 0–5 value.
	ErrMoodValueRequired = errors.New("mood entries require a mood value")
)

// OpenParams carries the caller-supplied fields for opening a record.
type OpenParams struct {
	// PlannedDuration is the caller's target; optional, absent for the
	// single-shot domains.
	PlannedDuration time.Duration

	// AllowConcurrent overrides the one-open-record rule for domains that
	// enforce it.
	AllowConcurrent bool

	Ratings   domain.Ratings
	Extension domain.Extension
	Metadata  map[string]any
}

// ProgressUpdate mutates non-derived fields of an open record. Progress
// writes are last-write-wins; they never touch derived fields.
type ProgressUpdate struct {
	Ratings         domain.Ratings
	PlannedDuration *time.Duration

	// AppendStages adds sleep stage segments; they are validated against
	// the record's existing segments for overlap.
	AppendStages []domain.StageSegment

	// Stressors replaces the record's stressor links when non-nil.
	Stressors []domain.StressorLink

	// Tags and CyclesCompleted update the guided-exercise extension.
	Tags            []string
	CyclesCompleted *int

	Metadata map[string]any
}

// FinalizeOverrides carries the caller-supplied fields for finalization.
// Repeating a finalize with values identical to the stored ones is a
// successful no-op.
type FinalizeOverrides struct {
	// EndAt overrides the finalize instant; nil means now.
	EndAt *time.Time

	Ratings domain.Ratings

	// Stressors replaces the stressor links before impact classification
	// when non-nil.
	Stressors []domain.StressorLink

	Metadata map[string]any
}

// Service is the lifecycle/completion engine for timed records.
type Service interface {
	// Open creates a record with status open starting now. Sleep rejects
	// a second concurrent open record with ErrActiveRecordExists unless
	// params.AllowConcurrent is set. Mood entries are single-shot: the
	// record is created already finalized with its qualitative label
	// cached.
	Open(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain, params OpenParams) (*domain.TimedRecord, error)

	// Progress applies a last-write-wins mutation of non-derived fields
	// to an open record. On a terminal record only the metadata merge is
	// permitted; any other field returns ErrRecordClosed.
	Progress(ctx context.Context, ownerID, id uuid.UUID, update ProgressUpdate) (*domain.TimedRecord, error)

	// Finalize closes the record, computes its actual duration, runs the
	// domain's scoring formulas and stores the derived scores. Calling it
	// again with no formula-relevant change returns the stored record
	// unchanged; changed formula inputs trigger a deterministic recompute
	// from the merged field set.
	Finalize(ctx context.Context, ownerID, id uuid.UUID, overrides FinalizeOverrides) (*domain.TimedRecord, error)

	// Get retrieves one record, owner-scoped.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.TimedRecord, error)

	// List returns a page of the owner's records in the domain.
	List(ctx context.Context, ownerID uuid.UUID, recordDomain domain.RecordDomain, filter store.ListFilter, page store.Page) (store.RecordPage, error)

	// AbandonStale sweeps every domain for open records older than the
	// configured staleness threshold and abandons them without scoring.
	// Failures on one record do not abort the sweep; the number of
	// records abandoned is returned.
	AbandonStale(ctx context.Context) (int, error)
}
