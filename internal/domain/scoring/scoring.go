// Package scoring holds the pure, deterministic formulas that turn raw
// self-report inputs into bounded derived scores and qualitative labels.
// Nothing here touches storage or the clock; every function is a pure
// function of its arguments and the Params constants.
package scoring

import (
	"strings"
	"time"

	"github.com/stillpoint/stillpoint-api/internal/domain"
)

// Static label tables for the single-shot domains.
var (
	moodLabels = map[int]string{
		0: "depressed",
		1: "sad",
		2: "neutral",
		3: "happy",
		4: "joyful",
		5: "overjoyed",
	}
	stressLabels = map[int]string{
		0: "calm",
		1: "normal",
		2: "elevated",
		3: "elevated",
		4: "high",
		5: "extreme",
	}
)

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Restfulness computes the guided-exercise restfulness score:
// clamp(base + stressDeltaWeight·(stress_before − stress_after) +
// relaxationWeight·relaxation, 0, 100). A missing before/after pair
// contributes 0 to the delta term. Returns nil when none of the relevant
// ratings were reported at all.
func Restfulness(ratings domain.Ratings, params *Params) *float64 {
	if ratings.Relaxation == nil && ratings.StressBefore == nil && ratings.StressAfter == nil {
		return nil
	}

	delta := 0.0
	if ratings.StressBefore != nil && ratings.StressAfter != nil {
		delta = float64(*ratings.StressBefore - *ratings.StressAfter)
	}

	score := params.RestfulnessBase + params.StressDeltaWeight*delta
	if ratings.Relaxation != nil {
		score += params.RelaxationWeight * float64(*ratings.Relaxation)
	}

	result := clamp(score, 0, 100)
	return &result
}

// FocusOriented reports whether a goal code selects the focus formula.
func FocusOriented(goalCode string) bool {
	return strings.HasPrefix(goalCode, "focus")
}

// Focus computes the guided-exercise focus score for focus-oriented goals:
// clamp(base + durationRatioWeight·(actual/planned) +
// moodDeltaWeight·(mood_after − mood_before), 0, 100). A zero or absent
// planned duration short-circuits the duration term to 0; the ratio is
// capped at params.MaxDurationRatio. Returns nil for non-focus goals.
func Focus(
	goalCode string,
	ratings domain.Ratings,
	actual, planned time.Duration,
	params *Params,
) *float64 {
	if !FocusOriented(goalCode) {
		return nil
	}

	ratio := 0.0
	if planned > 0 {
		ratio = actual.Seconds() / planned.Seconds()
		if ratio > params.MaxDurationRatio {
			ratio = params.MaxDurationRatio
		}
	}

	moodDelta := 0.0
	if ratings.MoodBefore != nil && ratings.MoodAfter != nil {
		moodDelta = float64(*ratings.MoodAfter - *ratings.MoodBefore)
	}

	score := clamp(params.FocusBase+params.DurationRatioWeight*ratio+params.MoodDeltaWeight*moodDelta, 0, 100)
	return &score
}

// SleepInputs gathers everything the sleep formula reads. Pointer fields are
// optional inputs whose absence resolves to a defined fallback rather than an
// error.
type SleepInputs struct {
	ActualMinutes float64
	TargetMinutes float64

	// Efficiency is the self-reported or device-reported sleep efficiency,
	// 0–100.
	Efficiency *float64

	REMMinutes  float64
	DeepMinutes float64

	Awakenings int

	// HeartRateComponent is a pre-normalized 0–100 value; 50 is neutral.
	HeartRateComponent *float64

	// StartTimeStddevMinutes is the spread of recent same-period start
	// times. Nil means too little history to measure, which scores as
	// perfectly regular.
	StartTimeStddevMinutes *float64
}

// SleepOverall computes the weighted sleep score and its quality label.
// Every sub-score is clamped to [0,100] before weighting; every ratio with a
// zero denominator contributes 0; the final value is clamped to [0,100].
func SleepOverall(in SleepInputs, params *Params) (float64, string) {
	durationScore := 0.0
	if in.TargetMinutes > 0 {
		durationScore = clamp(in.ActualMinutes/in.TargetMinutes*100, 0, 100)
	}

	efficiencyScore := 0.0
	if in.Efficiency != nil {
		efficiencyScore = clamp(*in.Efficiency, 0, 100)
	}

	remScore := 0.0
	deepScore := 0.0
	if in.ActualMinutes > 0 {
		remRatio := in.REMMinutes / in.ActualMinutes
		deepRatio := in.DeepMinutes / in.ActualMinutes
		remScore = clamp(remRatio/params.REMTargetRatio*100, 0, 100)
		deepScore = clamp(deepRatio/params.DeepTargetRatio*100, 0, 100)
	}

	regularityScore := 100.0
	if in.StartTimeStddevMinutes != nil {
		regularityScore = clamp(
			(1-*in.StartTimeStddevMinutes/params.RegularityZeroStddevMinutes)*100, 0, 100)
	}

	heartRateScore := 0.0
	if in.HeartRateComponent != nil {
		heartRateScore = clamp(*in.HeartRateComponent, 0, 100)
	}

	penalty := params.PenaltyPerAwakening * float64(in.Awakenings)
	if penalty > params.MaxAwakeningPenalty {
		penalty = params.MaxAwakeningPenalty
	}

	raw := params.SleepDurationWeight*durationScore +
		params.SleepEfficiencyWeight*efficiencyScore +
		params.SleepREMWeight*remScore +
		params.SleepDeepWeight*deepScore +
		params.SleepRegularityWeight*regularityScore +
		params.SleepHeartRateWeight*heartRateScore -
		penalty

	score := clamp(raw, 0, 100)
	return score, QualityLabel(score, params)
}

// QualityLabel buckets a sleep score into its quality band.
func QualityLabel(score float64, params *Params) string {
	switch {
	case score < params.FairFloor:
		return "poor"
	case score < params.GoodFloor:
		return "fair"
	case score <= params.ExcellentFloor:
		return "good"
	default:
		return "excellent"
	}
}

// StressorImpact computes one stressor link's impact score and its bucket:
// (report_score / 5) · weight · recency_factor. A non-positive weight falls
// back to the default weight of 1; the recency factor is clamped to [0,1].
func StressorImpact(
	reportScore int,
	weight float64,
	recencyFactor float64,
	params *Params,
) (float64, domain.ImpactLevel) {
	if weight <= 0 {
		weight = 1
	}
	recency := clamp(recencyFactor, 0, 1)

	impact := float64(reportScore) / params.ImpactScoreScale * weight * recency

	switch {
	case impact >= params.VeryHighImpactFloor:
		return impact, domain.ImpactVeryHigh
	case impact >= params.HighImpactFloor:
		return impact, domain.ImpactHigh
	case impact >= params.ModerateImpactFloor:
		return impact, domain.ImpactModerate
	default:
		return impact, domain.ImpactLow
	}
}

// MoodLabel returns the canonical label for a 0–5 mood value.
func MoodLabel(value int) (string, error) {
	label, ok := moodLabels[value]
	if !ok {
		return "", domain.ErrRatingOutOfRange
	}
	return label, nil
}

// StressLabel returns the qualitative label for a 0–5 stress score.
func StressLabel(score int) (string, error) {
	label, ok := stressLabels[score]
	if !ok {
		return "", domain.ErrRatingOutOfRange
	}
	return label, nil
}
