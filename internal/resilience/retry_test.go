package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return eris.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return eris.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ShouldRetryStopsEarly(t *testing.T) {
	calls := 0
	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: time.Millisecond,
		ShouldRetry: func(err error) bool { return false },
	}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return eris.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, BaseBackoff: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		cancel()
		return eris.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, eris.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestComputeBackoff_Doubles(t *testing.T) {
	cfg := applyDefaults(RetryConfig{BaseBackoff: time.Second})
	assert.Equal(t, time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, computeBackoff(2, cfg))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("parse failure")))
	assert.True(t, IsTransient(NewTransientError(eris.New("http 503"), 503)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
