// Package postgres implements the store interfaces over PostgreSQL using
// database/sql with the pgx stdlib driver. Ratings, derived scores,
// extensions and metadata are persisted as JSONB columns on a single
// timed_records table keyed by a domain discriminator.
package postgres
