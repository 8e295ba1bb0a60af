package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and optionally a
// config file. Environment variables take precedence over file values.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ./config.yaml
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables carry the rest.
	}

	// Environment variables with STILLPOINT_ prefix, e.g.
	// STILLPOINT_DATABASE_URL overrides database.url.
	v.SetEnvPrefix("STILLPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal under AutomaticEnv
	// and must be bound explicitly.
	for _, key := range []string{"database.url", "auth.jwt_secret"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("sweep.interval", 5*time.Minute)
	v.SetDefault("sweep.guided_exercise_threshold", 4*time.Hour)
	v.SetDefault("sweep.sleep_threshold", 24*time.Hour)
	v.SetDefault("sweep.stress_threshold", time.Hour)
	v.SetDefault("sweep.mood_threshold", time.Hour)
	v.SetDefault("sweep.batch_limit", 500)

	v.SetDefault("analytics.rollup_staleness", 6*time.Hour)
	v.SetDefault("analytics.reference_timezone", "UTC")
}

// Threshold returns the sweep staleness threshold for the given domain
// string. Unknown domains fall back to the most conservative threshold.
func (c SweepConfig) Threshold(recordDomain string) time.Duration {
	switch recordDomain {
	case "guided_exercise":
		return c.GuidedExerciseThreshold
	case "sleep":
		return c.SleepThreshold
	case "stress":
		return c.StressThreshold
	case "mood":
		return c.MoodThreshold
	default:
		return c.SleepThreshold
	}
}
