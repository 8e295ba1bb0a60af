package domain

// Ratings holds the bounded self-report scalars a caller may attach to a
// record. Every field is optional; each domain reads its own subset and
// ignores the rest. Pointer fields distinguish "not reported" from zero.
type Ratings struct {
	// Guided-exercise ratings, 1–10.
	Relaxation   *int `json:"relaxation,omitempty"`
	StressBefore *int `json:"stress_before,omitempty"`
	StressAfter  *int `json:"stress_after,omitempty"`
	MoodBefore   *int `json:"mood_before,omitempty"`
	MoodAfter    *int `json:"mood_after,omitempty"`

	// Mood entry value, 0–5.
	MoodValue *int `json:"mood_value,omitempty"`

	// Stress assessment score, 0–5.
	StressScore *int `json:"stress_score,omitempty"`

	// Sleep self-reports. Efficiency and HeartRateComponent are 0–100;
	// Awakenings is a count.
	Efficiency         *float64 `json:"efficiency,omitempty"`
	Awakenings         *int     `json:"awakenings,omitempty"`
	HeartRateComponent *float64 `json:"heart_rate_component,omitempty"`
}

// Validate checks every present rating against its scale.
func (r Ratings) Validate() error {
	for _, v := range []*int{r.Relaxation, r.StressBefore, r.StressAfter, r.MoodBefore, r.MoodAfter} {
		if v != nil && (*v < 1 || *v > 10) {
			return ErrRatingOutOfRange
		}
	}
	for _, v := range []*int{r.MoodValue, r.StressScore} {
		if v != nil && (*v < 0 || *v > 5) {
			return ErrRatingOutOfRange
		}
	}
	for _, v := range []*float64{r.Efficiency, r.HeartRateComponent} {
		if v != nil && (*v < 0 || *v > 100) {
			return ErrRatingOutOfRange
		}
	}
	if r.Awakenings != nil && *r.Awakenings < 0 {
		return ErrRatingOutOfRange
	}
	return nil
}

// Merge overlays the present fields of other onto a copy of r and returns it.
// Used at finalize time to combine stored ratings with caller overrides.
func (r Ratings) Merge(other Ratings) Ratings {
	merged := r
	if other.Relaxation != nil {
		merged.Relaxation = other.Relaxation
	}
	if other.StressBefore != nil {
		merged.StressBefore = other.StressBefore
	}
	if other.StressAfter != nil {
		merged.StressAfter = other.StressAfter
	}
	if other.MoodBefore != nil {
		merged.MoodBefore = other.MoodBefore
	}
	if other.MoodAfter != nil {
		merged.MoodAfter = other.MoodAfter
	}
	if other.MoodValue != nil {
		merged.MoodValue = other.MoodValue
	}
	if other.StressScore != nil {
		merged.StressScore = other.StressScore
	}
	if other.Efficiency != nil {
		merged.Efficiency = other.Efficiency
	}
	if other.Awakenings != nil {
		merged.Awakenings = other.Awakenings
	}
	if other.HeartRateComponent != nil {
		merged.HeartRateComponent = other.HeartRateComponent
	}
	return merged
}

// Equal reports whether two rating sets carry identical values. Nil and
// present-with-zero are distinct.
func (r Ratings) Equal(other Ratings) bool {
	intEq := func(a, b *int) bool {
		if (a == nil) != (b == nil) {
			return false
		}
		return a == nil || *a == *b
	}
	floatEq := func(a, b *float64) bool {
		if (a == nil) != (b == nil) {
			return false
		}
		return a == nil || *a == *b
	}
	return intEq(r.Relaxation, other.Relaxation) &&
		intEq(r.StressBefore, other.StressBefore) &&
		intEq(r.StressAfter, other.StressAfter) &&
		intEq(r.MoodBefore, other.MoodBefore) &&
		intEq(r.MoodAfter, other.MoodAfter) &&
		intEq(r.MoodValue, other.MoodValue) &&
		intEq(r.StressScore, other.StressScore) &&
		intEq(r.Awakenings, other.Awakenings) &&
		floatEq(r.Efficiency, other.Efficiency) &&
		floatEq(r.HeartRateComponent, other.HeartRateComponent)
}

// DerivedScores holds the named bounded values computed at finalization.
// Absent while the record is open. Each domain populates its own subset.
type DerivedScores struct {
	Restfulness  *float64 `json:"restfulness,omitempty"`
	Focus        *float64 `json:"focus,omitempty"`
	Overall      *float64 `json:"overall,omitempty"`
	QualityLabel string   `json:"quality_label,omitempty"`

	// QualitativeLabel is the static lookup label for mood and stress
	// records. For mood it is cached at creation, not at finalize.
	QualitativeLabel string `json:"qualitative_label,omitempty"`
}

// Empty reports whether no derived value has been computed yet.
func (d DerivedScores) Empty() bool {
	return d.Restfulness == nil && d.Focus == nil && d.Overall == nil &&
		d.QualityLabel == "" && d.QualitativeLabel == ""
}
