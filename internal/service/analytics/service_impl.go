package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/config"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/platform/logger"
	"github.com/stillpoint/stillpoint-api/internal/store"
	"github.com/stillpoint/stillpoint-api/internal/timerange"
)

// Verify interface compliance at compile time.
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	records store.RecordStore
	rollups store.RollupStore
	cfg     config.AnalyticsConfig
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes service construction.
type Option func(*serviceImpl)

// WithClock overrides the service's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) {
		s.now = now
	}
}

// NewService creates the aggregation engine. The configured reference
// timezone must resolve to an IANA zone.
func NewService(
	records store.RecordStore,
	rollups store.RollupStore,
	cfg config.AnalyticsConfig,
	log *slog.Logger,
	opts ...Option,
) (Service, error) {
	if records == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("records store cannot be nil")
	}
	if rollups == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("rollup store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	loc, err := time.LoadLocation(cfg.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reference timezone %q: %w", cfg.ReferenceTimezone, err)
	}

	s := &serviceImpl{
		records: records,
		rollups: rollups,
		cfg:     cfg,
		loc:     loc,
		logger:  log.With(slog.String("component", "analytics_service")),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// minDuration returns the qualifying duration floor for the domain. Mood and
// stress entries have no meaningful duration and qualify on status alone.
func minDuration(recordDomain domain.RecordDomain) time.Duration {
	switch recordDomain {
	case domain.DomainMood, domain.DomainStress:
		return 0
	default:
		return minQualifyingDuration
	}
}

// Daily implements Service.Daily.
func (s *serviceImpl) Daily(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	window timerange.Window,
) ([]DailyPoint, error) {
	if !recordDomain.Valid() {
		return nil, domain.ErrUnknownDomain
	}
	now := s.now()

	// Floor the window start to a day boundary: rollup rows cover whole
	// days, so the raw path must include the boundary day whole too or
	// the two paths would disagree at the window edge.
	from := window.Start(now)
	if !from.IsZero() {
		from = s.localDay(from)
	}

	if s.rollupsFresh(ctx, ownerID, recordDomain, now) {
		rows, err := s.rollups.GetRange(ctx, ownerID, recordDomain, from, now)
		if err != nil {
			return nil, err
		}
		points := make([]DailyPoint, 0, len(rows))
		for _, row := range rows {
			points = append(points, DailyPoint{
				Day:          row.Day,
				TotalMinutes: row.TotalMinutes,
				AvgScore:     row.AvgScore,
				RecordCount:  row.RecordCount,
			})
		}
		return points, nil
	}

	return s.dailyFromRaw(ctx, ownerID, recordDomain, from, now)
}

// rollupsFresh reports whether the owner's rollups for the domain were
// computed recently enough to trust.
func (s *serviceImpl) rollupsFresh(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	now time.Time,
) bool {
	computedAt, err := s.rollups.LatestComputedAt(ctx, ownerID, recordDomain)
	if err != nil {
		if !store.IsNotFoundError(err) {
			logger.FromContextOrDefault(ctx, s.logger).Warn("rollup freshness check failed",
				slog.String("owner_id", ownerID.String()),
				slog.String("error", err.Error()))
		}
		return false
	}
	return now.Sub(computedAt) <= s.cfg.RollupStaleness
}

// dailyFromRaw buckets qualifying records into calendar days of the
// reference zone. The raw path and the rollup path must agree exactly.
func (s *serviceImpl) dailyFromRaw(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	from, to time.Time,
) ([]DailyPoint, error) {
	records, err := s.records.ListQualifying(ctx, ownerID, recordDomain, from, to, minDuration(recordDomain))
	if err != nil {
		return nil, err
	}
	return s.bucketByDay(records), nil
}

// bucketByDay folds records into per-day aggregates, ascending by day.
// Records arrive ordered by start time, so days come out ordered too.
func (s *serviceImpl) bucketByDay(records []*domain.TimedRecord) []DailyPoint {
	type bucket struct {
		point    DailyPoint
		scoreSum float64
		scored   int
	}
	var buckets []*bucket
	index := make(map[time.Time]*bucket)

	for _, record := range records {
		day := s.localDay(record.StartAt)
		b, ok := index[day]
		if !ok {
			b = &bucket{point: DailyPoint{Day: day}}
			index[day] = b
			buckets = append(buckets, b)
		}
		b.point.TotalMinutes += record.ActualDuration.Minutes()
		b.point.RecordCount++
		if score := primaryScore(record); score != nil {
			b.scoreSum += *score
			b.scored++
		}
	}

	points := make([]DailyPoint, 0, len(buckets))
	for _, b := range buckets {
		if b.scored > 0 {
			avg := b.scoreSum / float64(b.scored)
			b.point.AvgScore = &avg
		}
		points = append(points, b.point)
	}
	return points
}

// primaryScore extracts the domain's headline metric from a record: the
// restfulness score for guided exercise, the overall score for sleep, and
// the raw 0–5 self-report for stress and mood.
func primaryScore(record *domain.TimedRecord) *float64 {
	switch record.Domain {
	case domain.DomainGuidedExercise:
		return record.Scores.Restfulness
	case domain.DomainSleep:
		return record.Scores.Overall
	case domain.DomainStress:
		if record.Ratings.StressScore == nil {
			return nil
		}
		v := float64(*record.Ratings.StressScore)
		return &v
	case domain.DomainMood:
		if record.Ratings.MoodValue == nil {
			return nil
		}
		v := float64(*record.Ratings.MoodValue)
		return &v
	}
	return nil
}

// localDay floors an instant to midnight of its calendar day in the
// reference zone.
func (s *serviceImpl) localDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// Overview implements Service.Overview.
func (s *serviceImpl) Overview(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	window timerange.Window,
) (*Overview, error) {
	if !recordDomain.Valid() {
		return nil, domain.ErrUnknownDomain
	}
	now := s.now()
	from := window.Start(now)

	records, err := s.records.ListQualifying(ctx, ownerID, recordDomain, from, now, minDuration(recordDomain))
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Domain: recordDomain,
		Totals: totals(records),
	}

	if n := len(records); n > 0 {
		overview.Latest = records[n-1]
	}

	points := s.bucketByDay(records)
	overview.Trend = s.trend(ctx, ownerID, recordDomain, window, points, now)

	streak, err := s.Streak(ctx, ownerID, recordDomain)
	if err != nil {
		return nil, err
	}
	overview.StreakDays = streak

	switch recordDomain {
	case domain.DomainMood, domain.DomainStress:
		overview.LabelDistribution = labelDistribution(records)
		if recordDomain == domain.DomainStress {
			overview.TopStressors = topStressors(records)
		}
	case domain.DomainGuidedExercise:
		overview.MinutesByTag = minutesByTag(records)
	}

	return overview, nil
}

func totals(records []*domain.TimedRecord) Totals {
	t := Totals{RecordCount: len(records)}
	sum := 0.0
	scored := 0
	for _, record := range records {
		t.TotalMinutes += record.ActualDuration.Minutes()
		if score := primaryScore(record); score != nil {
			sum += *score
			scored++
		}
	}
	t.TotalHours = t.TotalMinutes / 60
	if scored > 0 {
		avg := sum / float64(scored)
		t.AvgScore = &avg
	}
	return t
}

func labelDistribution(records []*domain.TimedRecord) map[string]int {
	dist := make(map[string]int)
	for _, record := range records {
		if record.Scores.QualitativeLabel != "" {
			dist[record.Scores.QualitativeLabel]++
		}
	}
	if len(dist) == 0 {
		return nil
	}
	return dist
}

func topStressors(records []*domain.TimedRecord) []StressorSummary {
	type acc struct {
		sum   float64
		count int
	}
	bySlug := make(map[string]*acc)
	for _, record := range records {
		if record.Extension.Stress == nil {
			continue
		}
		for _, link := range record.Extension.Stress.Stressors {
			if link.ImpactScore == nil {
				continue
			}
			a, ok := bySlug[link.Slug]
			if !ok {
				a = &acc{}
				bySlug[link.Slug] = a
			}
			a.sum += *link.ImpactScore
			a.count++
		}
	}

	summaries := make([]StressorSummary, 0, len(bySlug))
	for slug, a := range bySlug {
		summaries = append(summaries, StressorSummary{
			Slug:      slug,
			AvgImpact: a.sum / float64(a.count),
			Count:     a.count,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AvgImpact != summaries[j].AvgImpact {
			return summaries[i].AvgImpact > summaries[j].AvgImpact
		}
		return summaries[i].Slug < summaries[j].Slug
	})
	return summaries
}

func minutesByTag(records []*domain.TimedRecord) map[string]float64 {
	byTag := make(map[string]float64)
	for _, record := range records {
		if record.Extension.GuidedExercise == nil {
			continue
		}
		for _, tag := range record.Extension.GuidedExercise.Tags {
			byTag[tag] += record.ActualDuration.Minutes()
		}
	}
	if len(byTag) == 0 {
		return nil
	}
	return byTag
}

// trend computes the least-squares slope of daily averages over day index and
// the average delta against the preceding equal-length window.
func (s *serviceImpl) trend(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	window timerange.Window,
	points []DailyPoint,
	now time.Time,
) TrendBlock {
	block := TrendBlock{Direction: TrendFlat, Slope: slope(points)}
	switch {
	case block.Slope > trendEpsilon:
		block.Direction = TrendUp
	case block.Slope < -trendEpsilon:
		block.Direction = TrendDown
	}

	if window.AllTime {
		return block
	}

	currentAvg, currentOK := windowAvg(points)
	if !currentOK {
		return block
	}

	prevRecords, err := s.records.ListQualifying(
		ctx, ownerID, recordDomain,
		window.PreviousStart(now), window.Start(now),
		minDuration(recordDomain))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("previous-period lookup failed",
			slog.String("owner_id", ownerID.String()),
			slog.String("error", err.Error()))
		return block
	}
	prevAvg, prevOK := windowAvg(s.bucketByDay(prevRecords))
	if !prevOK {
		return block
	}

	delta := currentAvg - prevAvg
	block.DeltaVsPrevPeriod = &delta
	return block
}

// slope is the OLS slope of avg score against the day's calendar offset from
// the earliest scored day, so days without records keep their distance on the
// x-axis. Fewer than two scored days read as 0.
func slope(points []DailyPoint) float64 {
	var xs, ys []float64
	var first time.Time
	for _, p := range points {
		if p.AvgScore == nil {
			continue
		}
		if len(xs) == 0 {
			first = p.Day
		}
		// Round out DST-shortened and -lengthened days.
		xs = append(xs, math.Round(p.Day.Sub(first).Hours()/24))
		ys = append(ys, *p.AvgScore)
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// windowAvg averages the window's per-day scores.
func windowAvg(points []DailyPoint) (float64, bool) {
	sum := 0.0
	n := 0
	for _, p := range points {
		if p.AvgScore != nil {
			sum += *p.AvgScore
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Streak implements Service.Streak.
func (s *serviceImpl) Streak(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
) (int, error) {
	if !recordDomain.Valid() {
		return 0, domain.ErrUnknownDomain
	}
	now := s.now()
	from := now.AddDate(0, 0, -streakLookbackDays)

	records, err := s.records.ListQualifying(ctx, ownerID, recordDomain, from, now, minDuration(recordDomain))
	if err != nil {
		return 0, err
	}

	qualifyingDays := make(map[time.Time]bool, len(records))
	for _, record := range records {
		qualifyingDays[s.localDay(record.StartAt)] = true
	}

	streak := 0
	for day := s.localDay(now); qualifyingDays[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak, nil
}

// RecomputeRollups implements Service.RecomputeRollups. The rebuild set is
// keyed by the updated records' start days, not by the sweep window: a record
// re-scored long after its start day would otherwise leave its day's rollup
// stale forever, with freshness still passing on the strength of newer rows.
func (s *serviceImpl) RecomputeRollups(ctx context.Context, since time.Time) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	starts, err := s.records.ListUpdatedStarts(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list updated records: %w", err)
	}

	type dayKey struct {
		ownerID uuid.UUID
		d       domain.RecordDomain
		day     time.Time
	}
	seen := make(map[dayKey]bool, len(starts))
	var days []dayKey
	for _, entry := range starts {
		key := dayKey{entry.OwnerID, entry.Domain, s.localDay(entry.StartAt)}
		if !seen[key] {
			seen[key] = true
			days = append(days, key)
		}
	}

	written := 0
	for _, key := range days {
		// Rebuild the day whole so sibling records on the same day fold in.
		points, err := s.dailyFromRaw(ctx, key.ownerID, key.d, key.day, key.day.AddDate(0, 0, 1))
		if err != nil {
			log.Error("rollup recompute failed",
				slog.String("owner_id", key.ownerID.String()),
				slog.String("domain", string(key.d)),
				slog.String("error", err.Error()))
			continue
		}
		if len(points) == 0 {
			// The day no longer holds any qualifying record (an end
			// override can shorten one below the floor); drop the row
			// rather than serve its old aggregate.
			if err := s.rollups.DeleteDay(ctx, key.ownerID, key.d, key.day); err != nil {
				return written, fmt.Errorf("failed to delete rollup: %w", err)
			}
			continue
		}
		for _, point := range points {
			rollup := &domain.DailyRollup{
				OwnerID:      key.ownerID,
				Domain:       key.d,
				Day:          point.Day,
				TotalMinutes: point.TotalMinutes,
				AvgScore:     point.AvgScore,
				RecordCount:  point.RecordCount,
				ComputedAt:   now,
			}
			if err := rollup.Validate(); err != nil {
				return written, err
			}
			if err := s.rollups.Upsert(ctx, rollup); err != nil {
				return written, fmt.Errorf("failed to upsert rollup: %w", err)
			}
			written++
		}
	}
	return written, nil
}
