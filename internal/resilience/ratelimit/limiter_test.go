package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatfeed/internal/domain/entity"
)

func TestNew_AppliesDefaultsOnZeroValue(t *testing.T) {
	l := New(Config{Name: "svc"})
	assert.Equal(t, "svc", l.Name())
}

func TestWait_AllowsWithinBurst(t *testing.T) {
	l := New(Config{Name: "svc", RequestsPerSecond: 10, Burst: 1, WaitCap: time.Second})
	err := l.Wait(context.Background())
	require.NoError(t, err)
}

func TestWait_ExceedsCapReturnsSentinel(t *testing.T) {
	l := New(Config{Name: "svc", RequestsPerSecond: 0.01, Burst: 1, WaitCap: 20 * time.Millisecond})
	require.NoError(t, l.Wait(context.Background())) // consumes the single burst token

	err := l.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrRateLimitExceeded))
}

func TestWait_RespectsParentCancellation(t *testing.T) {
	l := New(Config{Name: "svc", RequestsPerSecond: 0.01, Burst: 1, WaitCap: time.Second})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("openai")
	assert.Equal(t, "openai", cfg.Name)
	assert.Equal(t, 2.0, cfg.RequestsPerSecond)
	assert.Equal(t, 5*time.Second, cfg.WaitCap)
}

func TestGeocoderConfig(t *testing.T) {
	cfg := GeocoderConfig("nominatim")
	assert.Equal(t, "nominatim", cfg.Name)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, 2*time.Second, cfg.WaitCap)
}
