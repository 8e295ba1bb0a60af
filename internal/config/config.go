package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Sweep     SweepConfig     `mapstructure:"sweep"     validate:"required"`
	Analytics AnalyticsConfig `mapstructure:"analytics" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains the settings for verifying identity-service tokens.
// The API only extracts a verified owner ID from tokens; it issues none.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// SweepConfig controls the staleness sweep that abandons open records left
// past their domain threshold.
type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"required"`

	// Per-domain staleness thresholds.
	GuidedExerciseThreshold time.Duration `mapstructure:"guided_exercise_threshold" validate:"required"`
	SleepThreshold          time.Duration `mapstructure:"sleep_threshold"           validate:"required"`
	StressThreshold         time.Duration `mapstructure:"stress_threshold"          validate:"required"`
	MoodThreshold           time.Duration `mapstructure:"mood_threshold"            validate:"required"`

	// BatchLimit caps how many stale records one sweep cycle processes
	// per domain.
	BatchLimit int `mapstructure:"batch_limit" validate:"required,gt=0"`
}

// AnalyticsConfig controls the aggregation engine.
type AnalyticsConfig struct {
	// RollupStaleness is how old a precomputed rollup may be before the
	// engine falls back to computing from raw records.
	RollupStaleness time.Duration `mapstructure:"rollup_staleness" validate:"required"`

	// ReferenceTimezone is the IANA zone calendar days are bucketed in.
	ReferenceTimezone string `mapstructure:"reference_timezone" validate:"required"`
}
