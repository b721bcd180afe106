package feed

import (
	"log/slog"
	"time"

	"threatfeed/internal/pkg/config"
)

// Config holds the Feed Fetcher's concurrency and retention knobs.
type Config struct {
	// MaxConcurrency bounds the total number of feeds fetched at once.
	MaxConcurrency int

	// PerHostConcurrency bounds in-flight requests to any single host,
	// so one slow or misbehaving feed source can't starve the others.
	PerHostConcurrency int

	// FetchTimeout is the connect+read deadline applied to each feed.
	FetchTimeout time.Duration

	// CutoffDays drops entries published before this many days ago,
	// independent of the retention job's deletion window.
	CutoffDays int
}

// DefaultConfig returns the spec defaults for the Feed Fetcher.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:     16,
		PerHostConcurrency: 2,
		FetchTimeout:       25 * time.Second,
		CutoffDays:         30,
	}
}

// LoadConfigFromEnv loads FEED_* environment variables, falling back to
// DefaultConfig for anything unset or invalid. Never returns an error,
// matching the teacher's fail-open configuration strategy.
func LoadConfigFromEnv(logger *slog.Logger) Config {
	cfg := DefaultConfig()

	result := config.LoadEnvInt("FEED_MAX_CONCURRENCY", cfg.MaxConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 256)
	})
	cfg.MaxConcurrency = result.Value.(int)
	logFallback(logger, "FEED_MAX_CONCURRENCY", result)

	result = config.LoadEnvInt("FEED_PER_HOST_CONCURRENCY", cfg.PerHostConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 64)
	})
	cfg.PerHostConcurrency = result.Value.(int)
	logFallback(logger, "FEED_PER_HOST_CONCURRENCY", result)

	durResult := config.LoadEnvDuration("FEED_FETCH_TIMEOUT", cfg.FetchTimeout, config.ValidatePositiveDuration)
	cfg.FetchTimeout = durResult.Value.(time.Duration)
	logFallback(logger, "FEED_FETCH_TIMEOUT", durResult)

	result = config.LoadEnvInt("FEED_FETCH_CUTOFF_DAYS", cfg.CutoffDays, func(v int) error {
		return config.ValidateIntRange(v, 1, 3650)
	})
	cfg.CutoffDays = result.Value.(int)
	logFallback(logger, "FEED_FETCH_CUTOFF_DAYS", result)

	return cfg
}

func logFallback(logger *slog.Logger, envKey string, result config.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	for _, warning := range result.Warnings {
		logger.Warn("configuration fallback applied",
			slog.String("env_key", envKey),
			slog.String("warning", warning))
	}
}
