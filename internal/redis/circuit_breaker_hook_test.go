package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHook(timeout time.Duration, m *metrics.StorageMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func failing(context.Context, goredis.Cmder) error { return errors.New("connection refused") }
func succeeding(context.Context, goredis.Cmder) error { return nil }

func TestCircuitBreakerHook_StartsClosed(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_RedisNilIsSuccess(t *testing.T) {
	hook := testHook(time.Minute, nil)
	ctx := context.Background()
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })

	for range 5 {
		err := process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_OpensAfterFailures(t *testing.T) {
	m := metrics.NewStorageMetrics(prometheus.NewRegistry())
	hook := testHook(time.Minute, m)
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 3 {
		_ = process(ctx, goredis.NewStatusCmd(ctx, "set", "key", "value"))
	}

	assert.Equal(t, gobreaker.StateOpen, hook.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("redis")))
}

func TestCircuitBreakerHook_OpenRejectsWithoutCallingRedis(t *testing.T) {
	hook := testHook(time.Minute, nil)
	ctx := context.Background()
	tripping := hook.ProcessHook(failing)
	for range 3 {
		_ = tripping(ctx, goredis.NewStatusCmd(ctx, "set", "key", "value"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	called := false
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})
	err := process(ctx, goredis.NewStatusCmd(ctx, "set", "key", "value"))

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.False(t, called)
}

func TestCircuitBreakerHook_RecoversAfterTimeout(t *testing.T) {
	hook := testHook(50*time.Millisecond, nil)
	ctx := context.Background()
	tripping := hook.ProcessHook(failing)
	for range 3 {
		_ = tripping(ctx, goredis.NewStatusCmd(ctx, "set", "key", "value"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	require.Eventually(t, func() bool {
		return hook.State() == gobreaker.StateHalfOpen
	}, time.Second, 10*time.Millisecond)

	err := hook.ProcessHook(succeeding)(ctx, goredis.NewStatusCmd(ctx, "set", "key", "value"))
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_PipelineFailuresCount(t *testing.T) {
	hook := testHook(time.Minute, nil)
	ctx := context.Background()
	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error {
		return errors.New("broken pipe")
	})

	for range 3 {
		assert.Error(t, pipeline(ctx, nil))
	}

	assert.Equal(t, gobreaker.StateOpen, hook.State())
}
