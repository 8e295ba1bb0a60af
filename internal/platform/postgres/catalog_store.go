package postgres

import (
	"context"
	"log/slog"

	"github.com/stillpoint/stillpoint-api/internal/store"
)

// PostgresStressorCatalog implements the store.StressorCatalog interface
// over the stressor_catalog reference table. Only the slug→weight mapping
// lives in this service; display metadata stays with the catalog owner.
type PostgresStressorCatalog struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStressorCatalog creates a new PostgreSQL implementation of the
// StressorCatalog interface. If logger is nil, a default logger will be used.
func NewPostgresStressorCatalog(db store.DBTX, logger *slog.Logger) *PostgresStressorCatalog {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStressorCatalog{
		db:     db,
		logger: logger.With(slog.String("component", "stressor_catalog")),
	}
}

// Ensure PostgresStressorCatalog implements store.StressorCatalog interface
var _ store.StressorCatalog = (*PostgresStressorCatalog)(nil)

// Weights implements store.StressorCatalog.Weights. Unknown slugs are
// absent from the result map, per the interface contract.
func (s *PostgresStressorCatalog) Weights(ctx context.Context, slugs []string) (map[string]float64, error) {
	if len(slugs) == 0 {
		return map[string]float64{}, nil
	}

	// The pgx stdlib driver encodes a []string as text[] for ANY().
	query := `SELECT slug, weight FROM stressor_catalog WHERE slug = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, slugs)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	weights := make(map[string]float64, len(slugs))
	for rows.Next() {
		var (
			slug   string
			weight float64
		)
		if err := rows.Scan(&slug, &weight); err != nil {
			return nil, MapError(err)
		}
		weights[slug] = weight
	}
	return weights, MapError(rows.Err())
}
