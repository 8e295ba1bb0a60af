package domain

import (
	"sort"
	"time"
)

// SleepStage labels one segment of a sleep session.
type SleepStage string

const (
	StageAwake SleepStage = "awake"
	StageLight SleepStage = "light"
	StageDeep  SleepStage = "deep"
	StageREM   SleepStage = "rem"
)

// Valid reports whether the stage label is known.
func (s SleepStage) Valid() bool {
	switch s {
	case StageAwake, StageLight, StageDeep, StageREM:
		return true
	}
	return false
}

// StageSegment is one contiguous span of a sleep stage within a record.
// Segments within a record must not overlap.
type StageSegment struct {
	Stage        SleepStage `json:"stage"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        time.Time  `json:"end_at"`
	HeartRateAvg *float64   `json:"heart_rate_avg,omitempty"`
}

// Minutes returns the segment length in minutes.
func (s StageSegment) Minutes() float64 {
	return s.EndAt.Sub(s.StartAt).Minutes()
}

// SleepExtension carries the sleep-specific payload of a timed record.
type SleepExtension struct {
	Stages []StageSegment `json:"stages,omitempty"`
}

// StageMinutes sums segment minutes per stage.
func (e *SleepExtension) StageMinutes() map[SleepStage]float64 {
	totals := make(map[SleepStage]float64, 4)
	for _, seg := range e.Stages {
		totals[seg.Stage] += seg.Minutes()
	}
	return totals
}

// LastStageEnd returns the latest segment end, or the zero time when the
// record carries no segments. Used to infer an end for abandoned records.
func (e *SleepExtension) LastStageEnd() time.Time {
	var last time.Time
	for _, seg := range e.Stages {
		if seg.EndAt.After(last) {
			last = seg.EndAt
		}
	}
	return last
}

func (e *SleepExtension) validate() error {
	segments := make([]StageSegment, len(e.Stages))
	copy(segments, e.Stages)
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartAt.Before(segments[j].StartAt)
	})
	for i, seg := range segments {
		if !seg.Stage.Valid() {
			return ErrUnknownStage
		}
		if seg.EndAt.Before(seg.StartAt) {
			return ErrStageEndBeforeStart
		}
		if i > 0 && seg.StartAt.Before(segments[i-1].EndAt) {
			return ErrStageOverlap
		}
	}
	return nil
}

// ImpactLevel classifies a stressor link's contribution to an assessment.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactModerate ImpactLevel = "moderate"
	ImpactHigh     ImpactLevel = "high"
	ImpactVeryHigh ImpactLevel = "very_high"
)

// StressorLink ties a stress assessment to a catalog stressor. The catalog
// itself is an external collaborator; only the slug (and the weight it
// resolves to) participates in the impact formula.
type StressorLink struct {
	Slug        string      `json:"slug"`
	ImpactScore *float64    `json:"impact_score,omitempty"`
	ImpactLevel ImpactLevel `json:"impact_level,omitempty"`
}

// StressExtension carries the stress-specific payload of a timed record.
type StressExtension struct {
	Stressors   []StressorLink `json:"stressors,omitempty"`
	ContextNote string         `json:"context_note,omitempty"`
}

func (e *StressExtension) validate() error {
	for _, link := range e.Stressors {
		if link.Slug == "" {
			return ErrStressorSlugEmpty
		}
	}
	return nil
}

// GuidedExerciseExtension carries the guided-exercise payload: free tags and
// foreign references into the goal and soundscape catalogs.
type GuidedExerciseExtension struct {
	ExerciseType    string   `json:"exercise_type,omitempty"`
	GoalCode        string   `json:"goal_code,omitempty"`
	SoundscapeSlug  string   `json:"soundscape_slug,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	CyclesCompleted *int     `json:"cycles_completed,omitempty"`
}

// Extension is the domain-specific substructure of a timed record, a tagged
// union keyed by the record's domain. The generic lifecycle and aggregation
// engines never require it and treat absent variants as empty.
type Extension struct {
	Sleep          *SleepExtension          `json:"sleep,omitempty"`
	Stress         *StressExtension         `json:"stress,omitempty"`
	GuidedExercise *GuidedExerciseExtension `json:"guided_exercise,omitempty"`
}

// Validate checks the invariants of whichever variants are present.
func (e Extension) Validate() error {
	if e.Sleep != nil {
		if err := e.Sleep.validate(); err != nil {
			return err
		}
	}
	if e.Stress != nil {
		if err := e.Stress.validate(); err != nil {
			return err
		}
	}
	return nil
}
