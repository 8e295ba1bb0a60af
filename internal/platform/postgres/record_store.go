package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// recordColumns is the column list every record query selects, in the order
// scanRecord expects.
const recordColumns = `id, owner_id, domain, start_at, end_at,
	planned_duration_seconds, actual_duration_seconds, status,
	ratings, derived_scores, extension, metadata, created_at, updated_at`

// PostgresRecordStore implements the store.RecordStore interface using
// PostgreSQL as the storage backend.
type PostgresRecordStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRecordStore creates a new PostgreSQL implementation of the
// RecordStore interface. The caller owns the database handle or transaction.
// If logger is nil, a default logger will be used.
func NewPostgresRecordStore(db store.DBTX, logger *slog.Logger) *PostgresRecordStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRecordStore{
		db:     db,
		logger: logger.With(slog.String("component", "record_store")),
	}
}

// Ensure PostgresRecordStore implements store.RecordStore interface
var _ store.RecordStore = (*PostgresRecordStore)(nil)

// Create implements store.RecordStore.Create.
func (s *PostgresRecordStore) Create(ctx context.Context, record *domain.TimedRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	ratings, scores, extension, metadata, err := marshalJSONColumns(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO timed_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Domain,
		record.StartAt,
		record.EndAt,
		int64(record.PlannedDuration.Seconds()),
		int64(record.ActualDuration.Seconds()),
		record.Status,
		ratings,
		scores,
		extension,
		metadata,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to create record",
			slog.String("record_id", record.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.RecordStore.GetByID. Cross-owner lookups return
// ErrRecordNotFound so record existence never leaks between owners.
func (s *PostgresRecordStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.TimedRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM timed_records WHERE id = $1 AND owner_id = $2`

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecordNotFound
		}
		return nil, MapError(err)
	}
	return record, nil
}

// List implements store.RecordStore.List.
func (s *PostgresRecordStore) List(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	filter store.ListFilter,
	page store.Page,
) (store.RecordPage, error) {
	conditions := []string{"owner_id = $1", "domain = $2"}
	args := []any{ownerID, recordDomain}

	addArg := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.From != nil {
		addArg("start_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		addArg("start_at < $%d", *filter.To)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.MinDuration != nil {
		addArg("actual_duration_seconds >= $%d", int64(filter.MinDuration.Seconds()))
	}
	if filter.MinRating != nil {
		addArg(ratingColumn(recordDomain)+" >= $%d", *filter.MinRating)
	}
	if filter.MaxRating != nil {
		addArg(ratingColumn(recordDomain)+" <= $%d", *filter.MaxRating)
	}
	if filter.GoalCode != "" {
		addArg("extension -> 'guided_exercise' ->> 'goal_code' = $%d", filter.GoalCode)
	}
	if filter.Tag != "" {
		addArg("extension -> 'guided_exercise' -> 'tags' ? $%d", filter.Tag)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	// Fetch one extra row to learn whether a next page exists.
	query := fmt.Sprintf(
		`SELECT %s FROM timed_records WHERE %s ORDER BY start_at DESC LIMIT %d OFFSET %d`,
		recordColumns, strings.Join(conditions, " AND "), limit+1, page.Offset,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.RecordPage{}, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.TimedRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return store.RecordPage{}, MapError(err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return store.RecordPage{}, MapError(err)
	}

	result := store.RecordPage{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		next := page.Offset + limit
		result.NextOffset = &next
	}
	return result, nil
}

// ratingColumn is the JSONB path of the domain's primary rating, cast for
// numeric comparison.
func ratingColumn(recordDomain domain.RecordDomain) string {
	switch recordDomain {
	case domain.DomainMood:
		return "(ratings ->> 'mood_value')::int"
	case domain.DomainStress:
		return "(ratings ->> 'stress_score')::int"
	default:
		return "(ratings ->> 'relaxation')::int"
	}
}

// SaveProgress implements store.RecordStore.SaveProgress.
func (s *PostgresRecordStore) SaveProgress(ctx context.Context, record *domain.TimedRecord) error {
	ratings, _, extension, metadata, err := marshalJSONColumns(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE timed_records
		SET ratings = $1, extension = $2, metadata = $3,
			planned_duration_seconds = $4, updated_at = $5
		WHERE id = $6 AND owner_id = $7 AND status = 'open'
	`
	result, err := s.db.ExecContext(ctx, query,
		ratings,
		extension,
		metadata,
		int64(record.PlannedDuration.Seconds()),
		record.UpdatedAt,
		record.ID,
		record.OwnerID,
	)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return s.explainMissedWrite(ctx, record.OwnerID, record.ID)
	}
	return nil
}

// explainMissedWrite distinguishes a missing record from one that already
// reached a terminal state when a conditional update matched no rows.
func (s *PostgresRecordStore) explainMissedWrite(ctx context.Context, ownerID, id uuid.UUID) error {
	var status domain.RecordStatus
	query := `SELECT status FROM timed_records WHERE id = $1 AND owner_id = $2`
	if err := s.db.QueryRowContext(ctx, query, id, ownerID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrRecordNotFound
		}
		return MapError(err)
	}
	return fmt.Errorf("%w: record is %s: %w", store.ErrUpdateFailed, status, store.ErrConflict)
}

// CompleteIfOpen implements store.RecordStore.CompleteIfOpen. The terminal
// transition is a compare-and-swap on status; losing the race is reported,
// not an error.
func (s *PostgresRecordStore) CompleteIfOpen(ctx context.Context, record *domain.TimedRecord) (bool, error) {
	ratings, scores, extension, metadata, err := marshalJSONColumns(record)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE timed_records
		SET end_at = $1, actual_duration_seconds = $2, status = $3,
			ratings = $4, derived_scores = $5, extension = $6, metadata = $7,
			updated_at = $8
		WHERE id = $9 AND owner_id = $10 AND status = 'open'
	`
	result, err := s.db.ExecContext(ctx, query,
		record.EndAt,
		int64(record.ActualDuration.Seconds()),
		record.Status,
		ratings,
		scores,
		extension,
		metadata,
		record.UpdatedAt,
		record.ID,
		record.OwnerID,
	)
	if err != nil {
		return false, MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}
	if affected == 1 {
		return true, nil
	}

	// No row matched: either the record is gone or another terminal write
	// won. Only the first case is an error.
	var status domain.RecordStatus
	check := `SELECT status FROM timed_records WHERE id = $1 AND owner_id = $2`
	if err := s.db.QueryRowContext(ctx, check, record.ID, record.OwnerID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, store.ErrRecordNotFound
		}
		return false, MapError(err)
	}
	return false, nil
}

// OverwriteDerived implements store.RecordStore.OverwriteDerived.
func (s *PostgresRecordStore) OverwriteDerived(ctx context.Context, record *domain.TimedRecord) error {
	ratings, scores, extension, metadata, err := marshalJSONColumns(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE timed_records
		SET end_at = $1, actual_duration_seconds = $2,
			ratings = $3, derived_scores = $4, extension = $5, metadata = $6,
			updated_at = $7
		WHERE id = $8 AND owner_id = $9 AND status IN ('finalized', 'abandoned')
	`
	result, err := s.db.ExecContext(ctx, query,
		record.EndAt,
		int64(record.ActualDuration.Seconds()),
		ratings,
		scores,
		extension,
		metadata,
		record.UpdatedAt,
		record.ID,
		record.OwnerID,
	)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrRecordNotFound
	}
	return nil
}

// FindOpen implements store.RecordStore.FindOpen.
func (s *PostgresRecordStore) FindOpen(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
) (*domain.TimedRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM timed_records
		WHERE owner_id = $1 AND domain = $2 AND status = 'open'
		ORDER BY start_at DESC
		LIMIT 1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, ownerID, recordDomain))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecordNotFound
		}
		return nil, MapError(err)
	}
	return record, nil
}

// ListStale implements store.RecordStore.ListStale.
func (s *PostgresRecordStore) ListStale(
	ctx context.Context,
	recordDomain domain.RecordDomain,
	cutoff time.Time,
	limit int,
) ([]*domain.TimedRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM timed_records
		WHERE domain = $1 AND status = 'open' AND start_at < $2
		ORDER BY start_at ASC
		LIMIT $3
	`
	return s.queryRecords(ctx, query, recordDomain, cutoff, limit)
}

// ListQualifying implements store.RecordStore.ListQualifying.
func (s *PostgresRecordStore) ListQualifying(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	from, to time.Time,
	minDuration time.Duration,
) ([]*domain.TimedRecord, error) {
	conditions := `owner_id = $1 AND domain = $2 AND status = 'finalized'
		AND start_at < $3 AND actual_duration_seconds >= $4`
	args := []any{ownerID, recordDomain, to, int64(minDuration.Seconds())}
	if !from.IsZero() {
		conditions += " AND start_at >= $5"
		args = append(args, from)
	}

	query := `SELECT ` + recordColumns + ` FROM timed_records WHERE ` +
		conditions + ` ORDER BY start_at ASC`
	return s.queryRecords(ctx, query, args...)
}

// ListRecentStarts implements store.RecordStore.ListRecentStarts.
func (s *PostgresRecordStore) ListRecentStarts(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	limit int,
) ([]time.Time, error) {
	query := `
		SELECT start_at
		FROM timed_records
		WHERE owner_id = $1 AND domain = $2 AND status = 'finalized'
		ORDER BY start_at DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID, recordDomain, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var starts []time.Time
	for rows.Next() {
		var start time.Time
		if err := rows.Scan(&start); err != nil {
			return nil, MapError(err)
		}
		starts = append(starts, start.UTC())
	}
	return starts, MapError(rows.Err())
}

// ListUpdatedStarts implements store.RecordStore.ListUpdatedStarts.
func (s *PostgresRecordStore) ListUpdatedStarts(ctx context.Context, since time.Time) ([]store.UpdatedStart, error) {
	query := `
		SELECT DISTINCT owner_id, domain, start_at
		FROM timed_records
		WHERE status = 'finalized' AND updated_at >= $1
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var starts []store.UpdatedStart
	for rows.Next() {
		var entry store.UpdatedStart
		if err := rows.Scan(&entry.OwnerID, &entry.Domain, &entry.StartAt); err != nil {
			return nil, MapError(err)
		}
		entry.StartAt = entry.StartAt.UTC()
		starts = append(starts, entry)
	}
	return starts, MapError(rows.Err())
}

func (s *PostgresRecordStore) queryRecords(ctx context.Context, query string, args ...any) ([]*domain.TimedRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.TimedRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, MapError(err)
		}
		records = append(records, record)
	}
	return records, MapError(rows.Err())
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row in recordColumns order and unmarshals the JSONB
// columns into their domain substructures.
func scanRecord(row rowScanner) (*domain.TimedRecord, error) {
	var (
		record          domain.TimedRecord
		endAt           sql.NullTime
		plannedSeconds  int64
		actualSeconds   int64
		ratingsJSON     []byte
		scoresJSON      []byte
		extensionJSON   []byte
		metadataJSON    []byte
	)

	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Domain,
		&record.StartAt,
		&endAt,
		&plannedSeconds,
		&actualSeconds,
		&record.Status,
		&ratingsJSON,
		&scoresJSON,
		&extensionJSON,
		&metadataJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.StartAt = record.StartAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if endAt.Valid {
		end := endAt.Time.UTC()
		record.EndAt = &end
	}
	record.PlannedDuration = time.Duration(plannedSeconds) * time.Second
	record.ActualDuration = time.Duration(actualSeconds) * time.Second

	if err := json.Unmarshal(ratingsJSON, &record.Ratings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ratings: %w", err)
	}
	if err := json.Unmarshal(scoresJSON, &record.Scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal derived scores: %w", err)
	}
	if err := json.Unmarshal(extensionJSON, &record.Extension); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extension: %w", err)
	}
	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &record, nil
}

// marshalJSONColumns serializes the record's JSONB columns.
func marshalJSONColumns(record *domain.TimedRecord) (ratings, scores, extension, metadata []byte, err error) {
	if ratings, err = json.Marshal(record.Ratings); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal ratings: %w", err)
	}
	if scores, err = json.Marshal(record.Scores); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal derived scores: %w", err)
	}
	if extension, err = json.Marshal(record.Extension); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal extension: %w", err)
	}
	if metadata, err = json.Marshal(record.Metadata); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return ratings, scores, extension, metadata, nil
}
