package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// PostgresRollupStore implements the store.RollupStore interface using
// PostgreSQL as the storage backend.
type PostgresRollupStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRollupStore creates a new PostgreSQL implementation of the
// RollupStore interface. If logger is nil, a default logger will be used.
func NewPostgresRollupStore(db store.DBTX, logger *slog.Logger) *PostgresRollupStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRollupStore{
		db:     db,
		logger: logger.With(slog.String("component", "rollup_store")),
	}
}

// Ensure PostgresRollupStore implements store.RollupStore interface
var _ store.RollupStore = (*PostgresRollupStore)(nil)

// Upsert implements store.RollupStore.Upsert.
func (s *PostgresRollupStore) Upsert(ctx context.Context, rollup *domain.DailyRollup) error {
	if err := rollup.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO daily_rollups
			(owner_id, domain, day, total_minutes, avg_score, record_count, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, domain, day) DO UPDATE
		SET total_minutes = EXCLUDED.total_minutes,
			avg_score = EXCLUDED.avg_score,
			record_count = EXCLUDED.record_count,
			computed_at = EXCLUDED.computed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rollup.OwnerID,
		rollup.Domain,
		rollup.Day,
		rollup.TotalMinutes,
		rollup.AvgScore,
		rollup.RecordCount,
		rollup.ComputedAt,
	)
	if err != nil {
		s.logger.Error("failed to upsert rollup",
			slog.String("owner_id", rollup.OwnerID.String()),
			slog.String("domain", string(rollup.Domain)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetRange implements store.RollupStore.GetRange.
func (s *PostgresRollupStore) GetRange(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	from, to time.Time,
) ([]*domain.DailyRollup, error) {
	conditions := `owner_id = $1 AND domain = $2 AND day < $3`
	args := []any{ownerID, recordDomain, to}
	if !from.IsZero() {
		conditions += " AND day >= $4"
		args = append(args, from)
	}

	query := `
		SELECT owner_id, domain, day, total_minutes, avg_score, record_count, computed_at
		FROM daily_rollups
		WHERE ` + conditions + `
		ORDER BY day ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var rollups []*domain.DailyRollup
	for rows.Next() {
		var (
			rollup   domain.DailyRollup
			avgScore sql.NullFloat64
		)
		err := rows.Scan(
			&rollup.OwnerID,
			&rollup.Domain,
			&rollup.Day,
			&rollup.TotalMinutes,
			&avgScore,
			&rollup.RecordCount,
			&rollup.ComputedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}
		rollup.Day = rollup.Day.UTC()
		rollup.ComputedAt = rollup.ComputedAt.UTC()
		if avgScore.Valid {
			rollup.AvgScore = &avgScore.Float64
		}
		rollups = append(rollups, &rollup)
	}
	return rollups, MapError(rows.Err())
}

// DeleteDay implements store.RollupStore.DeleteDay.
func (s *PostgresRollupStore) DeleteDay(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
	day time.Time,
) error {
	query := `DELETE FROM daily_rollups WHERE owner_id = $1 AND domain = $2 AND day = $3`
	_, err := s.db.ExecContext(ctx, query, ownerID, recordDomain, day)
	if err != nil {
		s.logger.Error("failed to delete rollup",
			slog.String("owner_id", ownerID.String()),
			slog.String("domain", string(recordDomain)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// LatestComputedAt implements store.RollupStore.LatestComputedAt.
func (s *PostgresRollupStore) LatestComputedAt(
	ctx context.Context,
	ownerID uuid.UUID,
	recordDomain domain.RecordDomain,
) (time.Time, error) {
	query := `
		SELECT MAX(computed_at)
		FROM daily_rollups
		WHERE owner_id = $1 AND domain = $2
	`
	var computedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, ownerID, recordDomain).Scan(&computedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, store.ErrRollupNotFound
		}
		return time.Time{}, MapError(err)
	}
	if !computedAt.Valid {
		return time.Time{}, store.ErrRollupNotFound
	}
	return computedAt.Time.UTC(), nil
}
