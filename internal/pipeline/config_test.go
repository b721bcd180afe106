package pipeline

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"threatfeed/internal/pkg/config"
)

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Errorf("DefaultSettings should be valid, got error: %v", err)
	}
}

func TestDefaultSettings_Values(t *testing.T) {
	s := DefaultSettings()

	if s.MaxConcurrency != 16 {
		t.Errorf("expected MaxConcurrency 16, got %d", s.MaxConcurrency)
	}
	if s.PerHostConcurrency != 2 {
		t.Errorf("expected PerHostConcurrency 2, got %d", s.PerHostConcurrency)
	}
	if s.FetchTimeout != 25*time.Second {
		t.Errorf("expected FetchTimeout 25s, got %v", s.FetchTimeout)
	}
	if s.BatchSizeThreshold != 10 {
		t.Errorf("expected BatchSizeThreshold 10, got %d", s.BatchSizeThreshold)
	}
	if s.BatchTimeThreshold != 30*time.Second {
		t.Errorf("expected BatchTimeThreshold 30s, got %v", s.BatchTimeThreshold)
	}
	if s.CBFailureThreshold != 0.6 {
		t.Errorf("expected CBFailureThreshold 0.6, got %v", s.CBFailureThreshold)
	}
	if s.DedupSemanticThreshold != 0.92 {
		t.Errorf("expected DedupSemanticThreshold 0.92, got %v", s.DedupSemanticThreshold)
	}
	if s.RetentionDays != 180 {
		t.Errorf("expected RetentionDays 180, got %d", s.RetentionDays)
	}
}

func TestSettings_Validate_InvalidCBFailureThreshold(t *testing.T) {
	s := DefaultSettings()
	s.CBFailureThreshold = 1.5

	if err := s.Validate(); err == nil {
		t.Error("expected validation error for out-of-range CBFailureThreshold")
	}
}

func TestSettings_Validate_InvalidDedupThreshold(t *testing.T) {
	s := DefaultSettings()
	s.DedupSemanticThreshold = -0.1

	if err := s.Validate(); err == nil {
		t.Error("expected validation error for negative DedupSemanticThreshold")
	}
}

func TestSettings_Validate_InvalidMaxConcurrency(t *testing.T) {
	s := DefaultSettings()
	s.MaxConcurrency = 0

	if err := s.Validate(); err == nil {
		t.Error("expected validation error for zero MaxConcurrency")
	}
}

func TestLoadSettingsFromEnv_NoEnvUsesDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	metrics := config.NewConfigMetrics("pipeline_test_defaults")

	s := LoadSettingsFromEnv(logger, metrics)

	if s != DefaultSettings() {
		t.Errorf("expected defaults with no environment set, got %+v", s)
	}
}

func TestLoadSettingsFromEnv_ValidOverride(t *testing.T) {
	os.Setenv("MAX_CONCURRENCY", "32")
	defer os.Unsetenv("MAX_CONCURRENCY")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	metrics := config.NewConfigMetrics("pipeline_test_override")

	s := LoadSettingsFromEnv(logger, metrics)

	if s.MaxConcurrency != 32 {
		t.Errorf("expected MaxConcurrency 32 from env, got %d", s.MaxConcurrency)
	}
}

func TestLoadSettingsFromEnv_InvalidFallsBackToDefault(t *testing.T) {
	os.Setenv("CB_FAILURE_THRESHOLD", "5.0")
	defer os.Unsetenv("CB_FAILURE_THRESHOLD")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	metrics := config.NewConfigMetrics("pipeline_test_fallback")

	s := LoadSettingsFromEnv(logger, metrics)

	if s.CBFailureThreshold != DefaultSettings().CBFailureThreshold {
		t.Errorf("expected fallback to default CBFailureThreshold, got %v", s.CBFailureThreshold)
	}
	if buf.Len() == 0 {
		t.Error("expected a warning to be logged for the invalid value")
	}
}

func TestLoadSettingsFromEnv_NeverErrors(t *testing.T) {
	os.Setenv("FETCH_TIMEOUT", "not-a-duration")
	defer os.Unsetenv("FETCH_TIMEOUT")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	metrics := config.NewConfigMetrics("pipeline_test_neverfail")

	s := LoadSettingsFromEnv(logger, metrics)

	if err := s.Validate(); err != nil {
		t.Errorf("fail-open config should remain valid after bad env input, got: %v", err)
	}
}
