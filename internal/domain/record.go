package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RecordDomain identifies which self-report domain a timed record belongs to.
// The domain selects the extension payload and the scoring formula that apply
// at finalization.
type RecordDomain string

// Supported record domains.
const (
	DomainGuidedExercise RecordDomain = "guided_exercise"
	DomainSleep          RecordDomain = "sleep"
	DomainStress         RecordDomain = "stress"
	DomainMood           RecordDomain = "mood"
)

// RecordStatus is the lifecycle state of a timed record. Transitions are
// monotonic: open → finalized or open → abandoned, both terminal.
type RecordStatus string

const (
	StatusOpen      RecordStatus = "open"
	StatusFinalized RecordStatus = "finalized"
	StatusAbandoned RecordStatus = "abandoned"
)

// Record-specific validation errors.
var (
	ErrRecordIDEmpty      = errors.New("record ID cannot be empty")
	ErrRecordOwnerIDEmpty = errors.New("record owner ID cannot be empty")
	ErrUnknownDomain      = errors.New("unknown record domain")
	ErrInvalidStatus      = errors.New("invalid record status")
	ErrEndBeforeStart     = errors.New("end time cannot precede start time")
	ErrNegativePlanned    = errors.New("planned duration must be positive")
	ErrRatingOutOfRange   = errors.New("rating out of range")
	ErrUnknownStage       = errors.New("unknown sleep stage")
	ErrStageOverlap       = errors.New("sleep stage segments must not overlap")
	ErrStageEndBeforeStart = errors.New("stage segment end cannot precede its start")
	ErrStressorSlugEmpty  = errors.New("stressor slug cannot be empty")
)

// TimedRecord is the generalized session/assessment entity shared by all four
// domains. Derived fields (ActualDuration, Scores) are absent while the record
// is open and are populated exactly once per semantically distinct finalize.
type TimedRecord struct {
	ID              uuid.UUID      `json:"id"`
	OwnerID         uuid.UUID      `json:"owner_id"`
	Domain          RecordDomain   `json:"domain"`
	StartAt         time.Time      `json:"start_at"`
	EndAt           *time.Time     `json:"end_at,omitempty"`
	PlannedDuration time.Duration  `json:"planned_duration_seconds,omitempty"`
	ActualDuration  time.Duration  `json:"actual_duration_seconds,omitempty"`
	Status          RecordStatus   `json:"status"`
	Ratings         Ratings        `json:"ratings"`
	Scores          DerivedScores  `json:"derived_scores"`
	Extension       Extension      `json:"extension"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewTimedRecord creates an open record for the given owner and domain,
// starting at startAt. Returns a validation error if the inputs are invalid.
func NewTimedRecord(
	ownerID uuid.UUID,
	recordDomain RecordDomain,
	startAt time.Time,
	plannedDuration time.Duration,
) (*TimedRecord, error) {
	now := time.Now().UTC()
	record := &TimedRecord{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Domain:          recordDomain,
		StartAt:         startAt.UTC(),
		PlannedDuration: plannedDuration,
		Status:          StatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks the record's invariants. It is called before every write.
func (r *TimedRecord) Validate() error {
	if r.ID == uuid.Nil {
		return ErrRecordIDEmpty
	}
	if r.OwnerID == uuid.Nil {
		return ErrRecordOwnerIDEmpty
	}
	if !r.Domain.Valid() {
		return ErrUnknownDomain
	}
	switch r.Status {
	case StatusOpen, StatusFinalized, StatusAbandoned:
	default:
		return ErrInvalidStatus
	}
	if r.EndAt != nil && r.EndAt.Before(r.StartAt) {
		return ErrEndBeforeStart
	}
	if r.PlannedDuration < 0 {
		return ErrNegativePlanned
	}
	if err := r.Ratings.Validate(); err != nil {
		return err
	}
	return r.Extension.Validate()
}

// Valid reports whether the domain is one of the four supported values.
func (d RecordDomain) Valid() bool {
	switch d {
	case DomainGuidedExercise, DomainSleep, DomainStress, DomainMood:
		return true
	}
	return false
}

// ParseRecordDomain converts a path or query token to a RecordDomain.
func ParseRecordDomain(s string) (RecordDomain, error) {
	d := RecordDomain(s)
	if !d.Valid() {
		return "", ErrUnknownDomain
	}
	return d, nil
}

// Terminal reports whether the status permits no further transitions.
func (s RecordStatus) Terminal() bool {
	return s == StatusFinalized || s == StatusAbandoned
}

// Finalized reports whether the record has completed its lifecycle normally.
func (r *TimedRecord) Finalized() bool {
	return r.Status == StatusFinalized
}

// MergeMetadata overlays the given attributes onto the record's metadata bag.
// Metadata is never interpreted by scoring or aggregation; it is the only
// field that remains writable after a record reaches a terminal status.
// Callers stamp UpdatedAt from their own clock before persisting.
func (r *TimedRecord) MergeMetadata(attrs map[string]any) {
	if len(attrs) == 0 {
		return
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		r.Metadata[k] = v
	}
}
