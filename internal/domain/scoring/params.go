package scoring

// Params defines all configurable constants for the scoring formulas.
type Params struct {
	// Guided-exercise restfulness: base + StressDeltaWeight·(before−after)
	// + RelaxationWeight·relaxation.
	RestfulnessBase   float64
	StressDeltaWeight float64
	RelaxationWeight  float64

	// Guided-exercise focus: base + DurationRatioWeight·(actual/planned)
	// + MoodDeltaWeight·(after−before). The ratio is capped at
	// MaxDurationRatio so an overrun session cannot dominate the score.
	FocusBase           float64
	DurationRatioWeight float64
	MoodDeltaWeight     float64
	MaxDurationRatio    float64

	// Sleep overall weighted sum.
	SleepDurationWeight   float64
	SleepEfficiencyWeight float64
	SleepREMWeight        float64
	SleepDeepWeight       float64
	SleepRegularityWeight float64
	SleepHeartRateWeight  float64

	// Reference stage ratios the rem/deep sub-scores are measured against.
	REMTargetRatio  float64
	DeepTargetRatio float64

	// DefaultSleepTargetMinutes is the duration target applied when a
	// sleep record carries no planned duration of its own.
	DefaultSleepTargetMinutes float64

	// Regularity reaches zero once the same-period start-time spread hits
	// this many minutes.
	RegularityZeroStddevMinutes float64

	// Disturbance penalty: PenaltyPerAwakening·awakenings, capped.
	PenaltyPerAwakening float64
	MaxAwakeningPenalty float64

	// Quality label band edges (poor < FairFloor ≤ fair < GoodFloor ≤ good
	// ≤ ExcellentFloor < excellent).
	FairFloor      float64
	GoodFloor      float64
	ExcellentFloor float64

	// Stress impact bucket floors.
	VeryHighImpactFloor float64
	HighImpactFloor     float64
	ModerateImpactFloor float64

	// Denominator of the report-score term in the impact formula
	// (report scores are on a 0–5 scale).
	ImpactScoreScale float64
}

// NewDefaultParams returns the production scoring constants.
func NewDefaultParams() *Params {
	return &Params{
		RestfulnessBase:   50,
		StressDeltaWeight: 5,
		RelaxationWeight:  3,

		FocusBase:           40,
		DurationRatioWeight: 30,
		MoodDeltaWeight:     5,
		MaxDurationRatio:    2.0,

		SleepDurationWeight:   0.30,
		SleepEfficiencyWeight: 0.20,
		SleepREMWeight:        0.15,
		SleepDeepWeight:       0.15,
		SleepRegularityWeight: 0.15,
		SleepHeartRateWeight:  0.05,

		REMTargetRatio:  0.22,
		DeepTargetRatio: 0.18,

		DefaultSleepTargetMinutes: 480,

		RegularityZeroStddevMinutes: 60,

		PenaltyPerAwakening: 3,
		MaxAwakeningPenalty: 25,

		FairFloor:      50,
		GoodFloor:      65,
		ExcellentFloor: 80,

		VeryHighImpactFloor: 0.75,
		HighImpactFloor:     0.55,
		ModerateImpactFloor: 0.35,

		ImpactScoreScale: 5,
	}
}
