package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"threatfeed/internal/pkg/config"
)

// Settings holds every tunable knob for the ten-component ingestion chain:
// fetcher concurrency, filter strictness, batch queue thresholds, location
// resolver timeout cascade, circuit breaker thresholds, rate limiter caps,
// and the semantic dedup threshold. It is the single configuration surface
// the composition root (cmd/worker) loads once per process and threads down
// into each component's own Config/Options struct.
type Settings struct {
	// Feed Fetcher (C1)
	MaxConcurrency     int
	PerHostConcurrency int
	FetchTimeout       time.Duration

	// Content Filter (C2)
	FilterStrict             bool
	CooccurrenceWindowTokens int

	// Batch Queue (C4)
	BatchSizeThreshold  int
	BatchTimeThreshold  time.Duration
	BatchTimerEnabled   bool
	BatchRetryCap       int

	// Location Resolver (C3)
	LocationTotalTimeout   time.Duration
	LocationCacheTimeout   time.Duration
	LocationDetTimeout     time.Duration
	LocationReverseTimeout time.Duration

	// Circuit Breaker (C5)
	CBFailureThreshold        float64
	CBMaxConsecutiveFailures  int
	CBRecoveryTimeout         time.Duration
	CBRequestVolumeThreshold  int
	CBCallTimeout             time.Duration

	// Rate Limiter (C6)
	RateLimitWaitCap        time.Duration
	TokensPerMinuteOpenAI   int
	TokensPerMinuteClaude   int
	TokensPerMinuteGeocoder int

	// Deduplicator (C7)
	DedupSemanticThreshold float64

	// Storage (C9)
	RetentionDays int
}

// DefaultSettings returns the values spec.md's external interfaces section
// lists as the canonical defaults for every knob.
func DefaultSettings() Settings {
	return Settings{
		MaxConcurrency:     16,
		PerHostConcurrency: 2,
		FetchTimeout:       25 * time.Second,

		FilterStrict:             true,
		CooccurrenceWindowTokens: 15,

		BatchSizeThreshold: 10,
		BatchTimeThreshold: 30 * time.Second,
		BatchTimerEnabled:  true,
		BatchRetryCap:      2,

		LocationTotalTimeout:   10 * time.Second,
		LocationCacheTimeout:   1 * time.Second,
		LocationDetTimeout:     5 * time.Second,
		LocationReverseTimeout: 3 * time.Second,

		CBFailureThreshold:       0.6,
		CBMaxConsecutiveFailures: 2,
		CBRecoveryTimeout:        120 * time.Second,
		CBRequestVolumeThreshold: 3,
		CBCallTimeout:            30 * time.Second,

		RateLimitWaitCap:        15 * time.Second,
		TokensPerMinuteOpenAI:   60,
		TokensPerMinuteClaude:   60,
		TokensPerMinuteGeocoder: 60,

		DedupSemanticThreshold: 0.92,

		RetentionDays: 180,
	}
}

// Validate checks every field against the range the component that consumes
// it can actually tolerate. Errors are collected rather than returned on the
// first failure so a single bad deploy surfaces every problem at once.
func (s *Settings) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(s.MaxConcurrency, 1, 200); err != nil {
		errs = append(errs, fmt.Errorf("max concurrency: %w", err))
	}
	if err := config.ValidateIntRange(s.PerHostConcurrency, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("per host concurrency: %w", err))
	}
	if err := config.ValidateDuration(s.FetchTimeout, 1*time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("fetch timeout: %w", err))
	}

	if err := config.ValidateIntRange(s.CooccurrenceWindowTokens, 1, 500); err != nil {
		errs = append(errs, fmt.Errorf("cooccurrence window tokens: %w", err))
	}

	if err := config.ValidateIntRange(s.BatchSizeThreshold, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("batch size threshold: %w", err))
	}
	if err := config.ValidateDuration(s.BatchTimeThreshold, 1*time.Second, 10*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("batch time threshold: %w", err))
	}
	if err := config.ValidateIntRange(s.BatchRetryCap, 0, 10); err != nil {
		errs = append(errs, fmt.Errorf("batch retry cap: %w", err))
	}

	if err := config.ValidateDuration(s.LocationTotalTimeout, 1*time.Second, 2*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("location total timeout: %w", err))
	}
	if err := config.ValidateDuration(s.LocationCacheTimeout, 1*time.Millisecond, 30*time.Second); err != nil {
		errs = append(errs, fmt.Errorf("location cache timeout: %w", err))
	}
	if err := config.ValidateDuration(s.LocationDetTimeout, 1*time.Millisecond, 1*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("location deterministic timeout: %w", err))
	}
	if err := config.ValidateDuration(s.LocationReverseTimeout, 1*time.Millisecond, 1*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("location reverse timeout: %w", err))
	}

	if err := config.ValidateFloatRange(s.CBFailureThreshold, 0.01, 1.0); err != nil {
		errs = append(errs, fmt.Errorf("circuit breaker failure threshold: %w", err))
	}
	if err := config.ValidateIntRange(s.CBMaxConsecutiveFailures, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("circuit breaker max consecutive failures: %w", err))
	}
	if err := config.ValidateDuration(s.CBRecoveryTimeout, 1*time.Second, 1*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("circuit breaker recovery timeout: %w", err))
	}
	if err := config.ValidateIntRange(s.CBRequestVolumeThreshold, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("circuit breaker request volume threshold: %w", err))
	}
	if err := config.ValidateDuration(s.CBCallTimeout, 1*time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("circuit breaker call timeout: %w", err))
	}

	if err := config.ValidateDuration(s.RateLimitWaitCap, 1*time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("rate limit wait cap: %w", err))
	}
	if err := config.ValidateIntRange(s.TokensPerMinuteOpenAI, 1, 100000); err != nil {
		errs = append(errs, fmt.Errorf("tokens per minute (openai): %w", err))
	}
	if err := config.ValidateIntRange(s.TokensPerMinuteClaude, 1, 100000); err != nil {
		errs = append(errs, fmt.Errorf("tokens per minute (claude): %w", err))
	}
	if err := config.ValidateIntRange(s.TokensPerMinuteGeocoder, 1, 100000); err != nil {
		errs = append(errs, fmt.Errorf("tokens per minute (geocoder): %w", err))
	}

	if err := config.ValidateFloatRange(s.DedupSemanticThreshold, 0.0, 1.0); err != nil {
		errs = append(errs, fmt.Errorf("dedup semantic threshold: %w", err))
	}

	if err := config.ValidateIntRange(s.RetentionDays, 1, 3650); err != nil {
		errs = append(errs, fmt.Errorf("retention days: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadSettingsFromEnv loads the pipeline's configuration surface from
// environment variables, falling back field-by-field to DefaultSettings on
// any missing or invalid value. It never returns an error: an operator
// running with a half-broken .env still gets a pipeline that starts and
// enriches, rather than one that refuses to boot.
func LoadSettingsFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) Settings {
	s := DefaultSettings()
	fallbackApplied := false

	apply := func(field string, r config.ConfigLoadResult) {
		if !r.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range r.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	r := config.LoadEnvInt("MAX_CONCURRENCY", s.MaxConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 200)
	})
	s.MaxConcurrency = r.Value.(int)
	apply("max_concurrency", r)

	r = config.LoadEnvInt("PER_HOST_CONCURRENCY", s.PerHostConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	s.PerHostConcurrency = r.Value.(int)
	apply("per_host_concurrency", r)

	r = config.LoadEnvDuration("FETCH_TIMEOUT", s.FetchTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 5*time.Minute)
	})
	s.FetchTimeout = r.Value.(time.Duration)
	apply("fetch_timeout_s", r)

	r = config.LoadEnvBool("FILTER_STRICT", s.FilterStrict)
	s.FilterStrict = r.Value.(bool)
	apply("filter_strict", r)

	r = config.LoadEnvInt("COOC_WINDOW_TOKENS", s.CooccurrenceWindowTokens, func(v int) error {
		return config.ValidateIntRange(v, 1, 500)
	})
	s.CooccurrenceWindowTokens = r.Value.(int)
	apply("cooc_window_tokens", r)

	r = config.LoadEnvInt("BATCH_SIZE_THRESHOLD", s.BatchSizeThreshold, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	s.BatchSizeThreshold = r.Value.(int)
	apply("batch_size_threshold", r)

	r = config.LoadEnvDuration("BATCH_TIME_THRESHOLD", s.BatchTimeThreshold, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 10*time.Minute)
	})
	s.BatchTimeThreshold = r.Value.(time.Duration)
	apply("batch_time_threshold_s", r)

	r = config.LoadEnvBool("BATCH_TIMER_ENABLED", s.BatchTimerEnabled)
	s.BatchTimerEnabled = r.Value.(bool)
	apply("batch_timer_enabled", r)

	r = config.LoadEnvInt("BATCH_RETRY_CAP", s.BatchRetryCap, func(v int) error {
		return config.ValidateIntRange(v, 0, 10)
	})
	s.BatchRetryCap = r.Value.(int)
	apply("batch_retry_cap", r)

	r = config.LoadEnvDuration("LOCATION_TOTAL_TIMEOUT", s.LocationTotalTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 2*time.Minute)
	})
	s.LocationTotalTimeout = r.Value.(time.Duration)
	apply("location_total_timeout_s", r)

	r = config.LoadEnvDuration("LOCATION_CACHE_TIMEOUT", s.LocationCacheTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Millisecond, 30*time.Second)
	})
	s.LocationCacheTimeout = r.Value.(time.Duration)
	apply("location_cache_timeout_s", r)

	r = config.LoadEnvDuration("LOCATION_DET_TIMEOUT", s.LocationDetTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Millisecond, 1*time.Minute)
	})
	s.LocationDetTimeout = r.Value.(time.Duration)
	apply("location_det_timeout_s", r)

	r = config.LoadEnvDuration("LOCATION_REVERSE_TIMEOUT", s.LocationReverseTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Millisecond, 1*time.Minute)
	})
	s.LocationReverseTimeout = r.Value.(time.Duration)
	apply("location_reverse_timeout_s", r)

	r = config.LoadEnvFloat("CB_FAILURE_THRESHOLD", s.CBFailureThreshold, func(v float64) error {
		return config.ValidateFloatRange(v, 0.01, 1.0)
	})
	s.CBFailureThreshold = r.Value.(float64)
	apply("cb_failure_threshold", r)

	r = config.LoadEnvInt("CB_MAX_CONSECUTIVE_FAILURES", s.CBMaxConsecutiveFailures, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})
	s.CBMaxConsecutiveFailures = r.Value.(int)
	apply("cb_max_consecutive_failures", r)

	r = config.LoadEnvDuration("CB_RECOVERY_TIMEOUT", s.CBRecoveryTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 1*time.Hour)
	})
	s.CBRecoveryTimeout = r.Value.(time.Duration)
	apply("cb_recovery_timeout_s", r)

	r = config.LoadEnvInt("CB_REQUEST_VOLUME_THRESHOLD", s.CBRequestVolumeThreshold, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	s.CBRequestVolumeThreshold = r.Value.(int)
	apply("cb_request_volume_threshold", r)

	r = config.LoadEnvDuration("CB_CALL_TIMEOUT", s.CBCallTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 5*time.Minute)
	})
	s.CBCallTimeout = r.Value.(time.Duration)
	apply("cb_call_timeout_s", r)

	r = config.LoadEnvDuration("RATE_LIMIT_WAIT_CAP", s.RateLimitWaitCap, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 5*time.Minute)
	})
	s.RateLimitWaitCap = r.Value.(time.Duration)
	apply("rate_limit_wait_cap_s", r)

	r = config.LoadEnvInt("TOKENS_PER_MINUTE_OPENAI", s.TokensPerMinuteOpenAI, func(v int) error {
		return config.ValidateIntRange(v, 1, 100000)
	})
	s.TokensPerMinuteOpenAI = r.Value.(int)
	apply("tokens_per_minute_openai", r)

	r = config.LoadEnvInt("TOKENS_PER_MINUTE_CLAUDE", s.TokensPerMinuteClaude, func(v int) error {
		return config.ValidateIntRange(v, 1, 100000)
	})
	s.TokensPerMinuteClaude = r.Value.(int)
	apply("tokens_per_minute_claude", r)

	r = config.LoadEnvInt("TOKENS_PER_MINUTE_GEOCODER", s.TokensPerMinuteGeocoder, func(v int) error {
		return config.ValidateIntRange(v, 1, 100000)
	})
	s.TokensPerMinuteGeocoder = r.Value.(int)
	apply("tokens_per_minute_geocoder", r)

	r = config.LoadEnvFloat("DEDUP_SEMANTIC_THRESHOLD", s.DedupSemanticThreshold, func(v float64) error {
		return config.ValidateFloatRange(v, 0.0, 1.0)
	})
	s.DedupSemanticThreshold = r.Value.(float64)
	apply("dedup_semantic_threshold", r)

	r = config.LoadEnvInt("RETENTION_DAYS", s.RetentionDays, func(v int) error {
		return config.ValidateIntRange(v, 1, 3650)
	})
	s.RetentionDays = r.Value.(int)
	apply("retention_days", r)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return s
}
