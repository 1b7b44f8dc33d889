package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/model"
)

func TestShouldRetryClassifiesStatusAndErrorKinds(t *testing.T) {
	assert.True(t, ShouldRetry(503, nil))
	assert.True(t, ShouldRetry(429, nil))
	assert.False(t, ShouldRetry(404, nil))
	assert.False(t, ShouldRetry(0, model.New(model.KindResponseTooLarge, "too big")))
	assert.False(t, ShouldRetry(0, model.New(model.KindBlockedByGuard, "blocked")))
	assert.True(t, ShouldRetry(0, model.New(model.KindTimeout, "timed out")))
}

func TestPolicyDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
	calls := 0
	status, err, attempts := p.Do(context.Background(), func(attempt int) (int, time.Duration, error) {
		calls++
		if calls < 3 {
			return 503, 0, nil
		}
		return 200, 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, 3, attempts)
}

func TestPolicyDoHonorsRetryAfterOverride(t *testing.T) {
	p := NewPolicy()
	p.InitialBackoff = time.Hour // would time out the test if the override were ignored
	calls := 0
	start := time.Now()
	_, _, attempts := p.Do(context.Background(), func(attempt int) (int, time.Duration, error) {
		calls++
		if calls == 1 {
			return 429, time.Millisecond, nil
		}
		return 200, 0, nil
	})
	assert.Equal(t, 2, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPolicyDoStopsOnNonRetryableStatus(t *testing.T) {
	p := NewPolicy()
	calls := 0
	status, err, attempts := p.Do(context.Background(), func(attempt int) (int, time.Duration, error) {
		calls++
		return 404, 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 404, status)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryAfterParsesSecondsAndDate(t *testing.T) {
	assert.Equal(t, 5*time.Second, RetryAfter("5"))
	assert.Equal(t, time.Duration(0), RetryAfter(""))
	assert.Equal(t, time.Duration(0), RetryAfter("not-a-value"))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker()
	b.failureThreshold = 2
	b.resetTimeout = 10 * time.Millisecond

	require.NoError(t, b.Allow("example.com"))
	b.RecordResult("example.com", false)
	require.NoError(t, b.Allow("example.com"))
	b.RecordResult("example.com", false)

	err := b.Allow("example.com")
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.KindCircuitOpen, e.Kind)
}

func TestBreakerHalfOpensAfterResetTimeoutAndCloses(t *testing.T) {
	b := NewBreaker()
	b.failureThreshold = 1
	b.resetTimeout = 5 * time.Millisecond
	b.maxHalfOpenProbes = 1

	require.NoError(t, b.Allow("example.com"))
	b.RecordResult("example.com", false)
	require.Error(t, b.Allow("example.com"))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Allow("example.com")) // half-open probe admitted
	b.RecordResult("example.com", true)
	require.NoError(t, b.Allow("example.com")) // closed again
}

func TestBreakerReopensOnFailedHalfOpenProbe(t *testing.T) {
	b := NewBreaker()
	b.failureThreshold = 1
	b.resetTimeout = 5 * time.Millisecond
	b.maxHalfOpenProbes = 1

	require.NoError(t, b.Allow("example.com"))
	b.RecordResult("example.com", false)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Allow("example.com")) // half-open probe admitted
	b.RecordResult("example.com", false)

	require.Error(t, b.Allow("example.com"))
}

func TestIsHostFailure(t *testing.T) {
	assert.True(t, IsHostFailure(0, model.New(model.KindConnectError, "boom")))
	assert.True(t, IsHostFailure(503, nil))
	assert.False(t, IsHostFailure(200, nil))
	assert.False(t, IsHostFailure(404, nil))
}
