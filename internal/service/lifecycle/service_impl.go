package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/config"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/domain/scoring"
	"github.com/stillpoint/stillpoint-api/internal/platform/logger"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// regularityHistorySize is how many recent start times feed the sleep
// regularity sub-score.
const regularityHistorySize = 14

// Verify interface compliance at compile time.
var _ Service = (*serviceImpl)(nil)

// serviceImpl implements the Service interface.
type serviceImpl struct {
	records  store.RecordStore
	catalog  store.StressorCatalog
	params   *scoring.Params
	sweepCfg config.SweepConfig
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes service construction.
type Option func(*serviceImpl)

// WithClock overrides the service's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) {
		s.now = now
	}
}

// NewService creates the lifecycle engine.
func NewService(
	records store.RecordStore,
	catalog store.StressorCatalog,
	params *scoring.Params,
	sweepCfg config.SweepConfig,
	log *slog.Logger,
	opts ...Option,
) Service {
	if records == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("records store cannot be nil")
	}
	if catalog == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("stressor catalog cannot be nil")
	}
	if params == nil {
		params = scoring.NewDefaultParams()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &serviceImpl{
		records:  records,
		catalog:  catalog,
		params:   params,
		sweepCfg: sweepCfg,
		logger:   log.With(slog.String("component", "lifecycle_service")),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements Service.Open.
func (s *serviceImpl) Open(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	params OpenParams,
) (*domain.TimedRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !recordDomain.Valid() {
		return nil, domain.ErrUnknownDomain
	}

	// Sleep disallows concurrent open records for the same owner.
	if recordDomain == domain.DomainSleep && !params.AllowConcurrent {
		existing, err := s.records.FindOpen(ctx, ownerID, recordDomain)
		if err != nil && !store.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to check for open record: %w", err)
		}
		if existing != nil {
			log.Debug("rejecting concurrent open record",
				slog.String("owner_id", ownerID.String()),
				slog.String("existing_id", existing.ID.String()))
			return nil, ErrActiveRecordExists
		}
	}

	record, err := domain.NewTimedRecord(ownerID, recordDomain, s.now(), params.PlannedDuration)
	if err != nil {
		return nil, err
	}
	record.Ratings = params.Ratings
	record.Extension = params.Extension
	record.Metadata = params.Metadata

	// Mood entries are single-shot: the record is born finalized with its
	// qualitative label cached. No finalize-time score exists for mood.
	if recordDomain == domain.DomainMood {
		if record.Ratings.MoodValue == nil {
			return nil, ErrMoodValueRequired
		}
		label, err := scoring.MoodLabel(*record.Ratings.MoodValue)
		if err != nil {
			return nil, err
		}
		end := record.StartAt
		record.EndAt = &end
		record.Status = domain.StatusFinalized
		record.Scores.QualitativeLabel = label
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	log.Debug("opened record",
		slog.String("record_id", record.ID.String()),
		slog.String("domain", string(recordDomain)))
	return record, nil
}

// Progress implements Service.Progress.
func (s *serviceImpl) Progress(
	ctx context.Context,
	ownerID, id uuid.UUID,
	update ProgressUpdate,
) (*domain.TimedRecord, error) {
	record, err := s.records.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if record.Status.Terminal() {
		// Terminal records accept metadata merges and nothing else.
		if !progressTouchesRecord(update) {
			if len(update.Metadata) > 0 {
				record.MergeMetadata(update.Metadata)
				record.UpdatedAt = s.now()
				if err := s.records.OverwriteDerived(ctx, record); err != nil {
					return nil, err
				}
			}
			return record, nil
		}
		return nil, ErrRecordClosed
	}

	record.Ratings = record.Ratings.Merge(update.Ratings)
	if update.PlannedDuration != nil {
		record.PlannedDuration = *update.PlannedDuration
	}
	if len(update.AppendStages) > 0 {
		if record.Extension.Sleep == nil {
			record.Extension.Sleep = &domain.SleepExtension{}
		}
		record.Extension.Sleep.Stages = append(record.Extension.Sleep.Stages, update.AppendStages...)
	}
	if update.Stressors != nil {
		if record.Extension.Stress == nil {
			record.Extension.Stress = &domain.StressExtension{}
		}
		record.Extension.Stress.Stressors = update.Stressors
	}
	if update.Tags != nil || update.CyclesCompleted != nil {
		if record.Extension.GuidedExercise == nil {
			record.Extension.GuidedExercise = &domain.GuidedExerciseExtension{}
		}
		if update.Tags != nil {
			record.Extension.GuidedExercise.Tags = update.Tags
		}
		if update.CyclesCompleted != nil {
			record.Extension.GuidedExercise.CyclesCompleted = update.CyclesCompleted
		}
	}
	record.MergeMetadata(update.Metadata)
	record.UpdatedAt = s.now()

	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.records.SaveProgress(ctx, record); err != nil {
		if store.IsConflictError(err) {
			return nil, ErrRecordClosed
		}
		return nil, err
	}
	return record, nil
}

// progressTouchesRecord reports whether the update mutates anything beyond
// the metadata bag.
func progressTouchesRecord(update ProgressUpdate) bool {
	return !update.Ratings.Equal(domain.Ratings{}) ||
		update.PlannedDuration != nil ||
		len(update.AppendStages) > 0 ||
		update.Stressors != nil ||
		update.Tags != nil ||
		update.CyclesCompleted != nil
}

// Finalize implements Service.Finalize.
func (s *serviceImpl) Finalize(
	ctx context.Context,
	ownerID, id uuid.UUID,
	overrides FinalizeOverrides,
) (*domain.TimedRecord, error) {
	record, err := s.records.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.finalizeRecord(ctx, record, overrides, true)
}

// finalizeRecord finalizes one loaded record. retryOnLostRace guards the
// single re-read after a lost compare-and-swap.
func (s *serviceImpl) finalizeRecord(
	ctx context.Context,
	record *domain.TimedRecord,
	overrides FinalizeOverrides,
	retryOnLostRace bool,
) (*domain.TimedRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	switch record.Status {
	case domain.StatusAbandoned:
		return nil, ErrRecordClosed

	case domain.StatusFinalized:
		return s.refinalize(ctx, record, overrides)
	}

	end := s.now()
	if overrides.EndAt != nil {
		end = overrides.EndAt.UTC()
	}
	if end.Before(record.StartAt) {
		return nil, domain.ErrEndBeforeStart
	}

	record.Ratings = record.Ratings.Merge(overrides.Ratings)
	if overrides.Stressors != nil {
		if record.Extension.Stress == nil {
			record.Extension.Stress = &domain.StressExtension{}
		}
		record.Extension.Stress.Stressors = overrides.Stressors
	}
	record.EndAt = &end
	record.ActualDuration = end.Sub(record.StartAt)
	record.MergeMetadata(overrides.Metadata)

	if err := s.computeScores(ctx, record); err != nil {
		return nil, err
	}

	record.Status = domain.StatusFinalized
	record.UpdatedAt = s.now()
	if err := record.Validate(); err != nil {
		return nil, err
	}

	won, err := s.records.CompleteIfOpen(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize record: %w", err)
	}
	if won {
		log.Debug("finalized record",
			slog.String("record_id", record.ID.String()),
			slog.String("domain", string(record.Domain)))
		return record, nil
	}

	// Another terminal write (a concurrent finalize or the staleness
	// sweep) got there first. Re-read once and resolve against the state
	// that actually won.
	if !retryOnLostRace {
		return nil, store.ErrUpdateFailed
	}
	current, err := s.records.GetByID(ctx, record.OwnerID, record.ID)
	if err != nil {
		return nil, err
	}
	return s.finalizeRecord(ctx, current, overrides, false)
}

// refinalize handles finalize calls on an already finalized record.
// Unchanged formula inputs are a successful no-op; changed inputs trigger a
// deterministic recompute from the merged field set. Metadata-only edits
// never recompute.
func (s *serviceImpl) refinalize(
	ctx context.Context,
	record *domain.TimedRecord,
	overrides FinalizeOverrides,
) (*domain.TimedRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	merged := record.Ratings.Merge(overrides.Ratings)
	changed := !merged.Equal(record.Ratings)

	if overrides.EndAt != nil && record.EndAt != nil && !overrides.EndAt.UTC().Equal(*record.EndAt) {
		changed = true
	}
	if overrides.Stressors != nil && !stressorsEqual(overrides.Stressors, currentStressors(record)) {
		changed = true
	}

	if !changed {
		// Idempotent no-op, except that the metadata bag still merges.
		if len(overrides.Metadata) > 0 {
			record.MergeMetadata(overrides.Metadata)
			record.UpdatedAt = s.now()
			if err := s.records.OverwriteDerived(ctx, record); err != nil {
				return nil, err
			}
		}
		log.Debug("repeat finalize with unchanged inputs",
			slog.String("record_id", record.ID.String()))
		return record, nil
	}

	record.Ratings = merged
	if overrides.EndAt != nil {
		end := overrides.EndAt.UTC()
		if end.Before(record.StartAt) {
			return nil, domain.ErrEndBeforeStart
		}
		record.EndAt = &end
		record.ActualDuration = end.Sub(record.StartAt)
	}
	if overrides.Stressors != nil {
		if record.Extension.Stress == nil {
			record.Extension.Stress = &domain.StressExtension{}
		}
		record.Extension.Stress.Stressors = overrides.Stressors
	}
	record.MergeMetadata(overrides.Metadata)

	if err := s.computeScores(ctx, record); err != nil {
		return nil, err
	}
	record.UpdatedAt = s.now()
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.records.OverwriteDerived(ctx, record); err != nil {
		return nil, err
	}

	log.Debug("recomputed scores on repeat finalize",
		slog.String("record_id", record.ID.String()))
	return record, nil
}

func currentStressors(record *domain.TimedRecord) []domain.StressorLink {
	if record.Extension.Stress == nil {
		return nil
	}
	return record.Extension.Stress.Stressors
}

func stressorsEqual(a, b []domain.StressorLink) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Slug != b[i].Slug {
			return false
		}
	}
	return true
}

// computeScores dispatches to the domain's scoring formulas and writes the
// results into record.Scores. Pure computation aside from the catalog weight
// lookup for stress links.
func (s *serviceImpl) computeScores(ctx context.Context, record *domain.TimedRecord) error {
	switch record.Domain {
	case domain.DomainGuidedExercise:
		record.Scores.Restfulness = scoring.Restfulness(record.Ratings, s.params)
		goalCode := ""
		if record.Extension.GuidedExercise != nil {
			goalCode = record.Extension.GuidedExercise.GoalCode
		}
		record.Scores.Focus = scoring.Focus(
			goalCode, record.Ratings, record.ActualDuration, record.PlannedDuration, s.params)

	case domain.DomainSleep:
		return s.computeSleepScores(ctx, record)

	case domain.DomainStress:
		return s.computeStressScores(ctx, record)

	case domain.DomainMood:
		// Mood has no finalize-time score; the label is cached at creation.
	}
	return nil
}

func (s *serviceImpl) computeSleepScores(ctx context.Context, record *domain.TimedRecord) error {
	target := s.params.DefaultSleepTargetMinutes
	if record.PlannedDuration > 0 {
		target = record.PlannedDuration.Minutes()
	}

	var remMinutes, deepMinutes float64
	awakenings := 0
	if record.Ratings.Awakenings != nil {
		awakenings = *record.Ratings.Awakenings
	}
	if record.Extension.Sleep != nil {
		stageMinutes := record.Extension.Sleep.StageMinutes()
		remMinutes = stageMinutes[domain.StageREM]
		deepMinutes = stageMinutes[domain.StageDeep]
	}

	stddev, err := s.startTimeStddev(ctx, record)
	if err != nil {
		// Regularity history is an enhancement, not a requirement; score
		// without it rather than failing the finalize.
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to load regularity history",
			slog.String("record_id", record.ID.String()),
			slog.String("error", err.Error()))
		stddev = nil
	}

	score, label := scoring.SleepOverall(scoring.SleepInputs{
		ActualMinutes:          record.ActualDuration.Minutes(),
		TargetMinutes:          target,
		Efficiency:             record.Ratings.Efficiency,
		REMMinutes:             remMinutes,
		DeepMinutes:            deepMinutes,
		Awakenings:             awakenings,
		HeartRateComponent:     record.Ratings.HeartRateComponent,
		StartTimeStddevMinutes: stddev,
	}, s.params)

	record.Scores.Overall = &score
	record.Scores.QualityLabel = label
	return nil
}

// startTimeStddev measures the spread, in minutes, of the owner's recent
// sleep start times around this record's start. Start times are compared as
// minutes-of-day, shifted into the half-day window around the first sample
// so a 23:30/00:30 pair reads as a 60-minute spread, not a 23-hour one.
func (s *serviceImpl) startTimeStddev(ctx context.Context, record *domain.TimedRecord) (*float64, error) {
	starts, err := s.records.ListRecentStarts(ctx, record.OwnerID, record.Domain, regularityHistorySize)
	if err != nil {
		return nil, err
	}
	starts = append(starts, record.StartAt)
	if len(starts) < 2 {
		return nil, nil
	}

	minuteOfDay := func(t time.Time) float64 {
		return float64(t.Hour()*60 + t.Minute())
	}
	reference := minuteOfDay(starts[0])
	samples := make([]float64, 0, len(starts))
	for _, t := range starts {
		m := minuteOfDay(t)
		for m-reference > 720 {
			m -= 1440
		}
		for reference-m > 720 {
			m += 1440
		}
		samples = append(samples, m)
	}

	mean := 0.0
	for _, m := range samples {
		mean += m
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, m := range samples {
		variance += (m - mean) * (m - mean)
	}
	variance /= float64(len(samples))

	stddev := math.Sqrt(variance)
	return &stddev, nil
}

func (s *serviceImpl) computeStressScores(ctx context.Context, record *domain.TimedRecord) error {
	if record.Ratings.StressScore == nil {
		return domain.ErrRatingOutOfRange
	}
	score := *record.Ratings.StressScore

	label, err := scoring.StressLabel(score)
	if err != nil {
		return err
	}
	record.Scores.QualitativeLabel = label

	if record.Extension.Stress == nil || len(record.Extension.Stress.Stressors) == 0 {
		return nil
	}

	slugs := make([]string, 0, len(record.Extension.Stress.Stressors))
	for _, link := range record.Extension.Stress.Stressors {
		slugs = append(slugs, link.Slug)
	}
	weights, err := s.catalog.Weights(ctx, slugs)
	if err != nil {
		return fmt.Errorf("failed to resolve stressor weights: %w", err)
	}

	// Links are classified at report time, so the recency factor is 1;
	// decay applies when aggregations read old links, not here.
	for i := range record.Extension.Stress.Stressors {
		link := &record.Extension.Stress.Stressors[i]
		impact, level := scoring.StressorImpact(score, weights[link.Slug], 1, s.params)
		link.ImpactScore = &impact
		link.ImpactLevel = level
	}
	return nil
}

// Get implements Service.Get.
func (s *serviceImpl) Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.TimedRecord, error) {
	return s.records.GetByID(ctx, ownerID, id)
}

// List implements Service.List.
func (s *serviceImpl) List(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	filter store.ListFilter,
	page store.Page,
) (store.RecordPage, error) {
	if !recordDomain.Valid() {
		return store.RecordPage{}, domain.ErrUnknownDomain
	}
	return s.records.List(ctx, ownerID, recordDomain, filter, page)
}

// AbandonStale implements Service.AbandonStale. For each domain it loads
// open records older than the configured threshold and abandons them via the
// status compare-and-swap; a record that a concurrent finalize already
// closed is skipped silently. Derived scoring never runs here.
func (s *serviceImpl) AbandonStale(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	abandoned := 0
	domains := []domain.RecordDomain{
		domain.DomainGuidedExercise,
		domain.DomainSleep,
		domain.DomainStress,
		domain.DomainMood,
	}
	for _, d := range domains {
		cutoff := now.Add(-s.sweepCfg.Threshold(string(d)))
		stale, err := s.records.ListStale(ctx, d, cutoff, s.sweepCfg.BatchLimit)
		if err != nil {
			return abandoned, fmt.Errorf("failed to list stale %s records: %w", d, err)
		}

		for _, record := range stale {
			if err := s.abandonRecord(ctx, record); err != nil {
				// Partial-failure isolation: log and keep sweeping.
				log.Error("failed to abandon stale record",
					slog.String("record_id", record.ID.String()),
					slog.String("domain", string(d)),
					slog.String("error", err.Error()))
				continue
			}
			abandoned++
		}
	}
	return abandoned, nil
}

func (s *serviceImpl) abandonRecord(ctx context.Context, record *domain.TimedRecord) error {
	end := s.inferAbandonEnd(record)
	record.EndAt = &end
	record.ActualDuration = end.Sub(record.StartAt)
	record.Status = domain.StatusAbandoned
	record.UpdatedAt = s.now()

	won, err := s.records.CompleteIfOpen(ctx, record)
	if err != nil {
		return err
	}
	if !won {
		// A finalize (or another sweep) won the terminal transition; this
		// write is the designed no-op.
		logger.FromContextOrDefault(ctx, s.logger).Debug("record closed before sweep reached it",
			slog.String("record_id", record.ID.String()))
	}
	return nil
}

// inferAbandonEnd picks the best available end for an abandoned record:
// the last observed sleep stage end when present, otherwise the planned
// duration past the start, otherwise the start itself.
func (s *serviceImpl) inferAbandonEnd(record *domain.TimedRecord) time.Time {
	if record.Extension.Sleep != nil {
		if last := record.Extension.Sleep.LastStageEnd(); last.After(record.StartAt) {
			return last
		}
	}
	if record.PlannedDuration > 0 {
		return record.StartAt.Add(record.PlannedDuration)
	}
	return record.StartAt
}
