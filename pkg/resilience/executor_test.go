package resilience

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastExecutor() *Executor {
	return NewExecutor(NewBreakerRegistry(BreakerSettings{WindowSize: 4, FailureRateThreshold: 0.5}), ExecutorSettings{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		CallTimeout: time.Second,
	})
}

func TestExecute_Success(t *testing.T) {
	ex := fastExecutor()
	value, err := Execute(context.Background(), ex, "account", "GetBalance", func(ctx context.Context) (string, error) {
		return "1500.00", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", value)
}

func TestExecute_RetriesRetryableKind(t *testing.T) {
	ex := fastExecutor()
	var calls int32
	value, err := Execute(context.Background(), ex, "account", "GetBalance", func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, int32(3), calls)
}

func TestExecute_NoRetryOnValidation(t *testing.T) {
	ex := fastExecutor()
	var calls int32
	_, err := Execute(context.Background(), ex, "account", "ValidateAccount", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", NewError(KindValidation, "ValidateAccount", "", errors.New("bad account"))
	})
	require.Error(t, err)
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindValidation, adapterErr.Kind)
	assert.Equal(t, int32(1), calls)
}

func TestExecute_AttemptTimeoutClassified(t *testing.T) {
	ex := NewExecutor(NewBreakerRegistry(BreakerSettings{WindowSize: 10}), ExecutorSettings{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		CallTimeout: 10 * time.Millisecond,
	})
	var calls int32
	_, err := Execute(context.Background(), ex, "samos", "SubmitSettlement", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindTimeout, adapterErr.Kind)
	assert.Equal(t, int32(2), calls, "timeouts are retryable")
}

func TestExecute_OpenCircuitFailsFast(t *testing.T) {
	reg := NewBreakerRegistry(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5, WaitDuration: time.Hour})
	ex := NewExecutor(reg, ExecutorSettings{MaxAttempts: 1, BaseDelay: time.Millisecond, CallTimeout: time.Second})

	boom := func(ctx context.Context) (string, error) {
		return "", &net.OpError{Op: "dial", Err: errors.New("down")}
	}
	_, _ = Execute(context.Background(), ex, "bankserv", "Submit", boom)
	_, _ = Execute(context.Background(), ex, "bankserv", "Submit", boom)
	require.Equal(t, StateOpen, reg.State("bankserv"))

	var calls int32
	_, err := Execute(context.Background(), ex, "bankserv", "Submit", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "never", nil
	})
	require.Error(t, err)
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindCircuitOpen, adapterErr.Kind)
	assert.Equal(t, int32(0), calls, "no remote call while open")
}

func TestExecuteWithFallback_MarksDegraded(t *testing.T) {
	ex := NewExecutor(NewBreakerRegistry(BreakerSettings{WindowSize: 10}), ExecutorSettings{
		MaxAttempts: 2, BaseDelay: time.Millisecond, CallTimeout: time.Second,
	})
	value, degraded, err := ExecuteWithFallback(context.Background(), ex, "account", "GetBalance",
		func(ctx context.Context) (string, error) {
			return "", &net.OpError{Op: "read", Err: errors.New("reset")}
		},
		func(ctx context.Context, cause *AdapterError) (string, error) {
			assert.Equal(t, KindNetwork, cause.Kind)
			return "cached:1200.00", nil
		})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, "cached:1200.00", value)
}

func TestExecuteWithFallback_FailureStillFeedsWindow(t *testing.T) {
	reg := NewBreakerRegistry(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5, WaitDuration: time.Hour})
	ex := NewExecutor(reg, ExecutorSettings{MaxAttempts: 1, BaseDelay: time.Millisecond, CallTimeout: time.Second})

	for i := 0; i < 2; i++ {
		_, degraded, err := ExecuteWithFallback(context.Background(), ex, "account", "GetBalance",
			func(ctx context.Context) (string, error) {
				return "", &net.OpError{Op: "read", Err: errors.New("reset")}
			},
			func(ctx context.Context, cause *AdapterError) (string, error) {
				return "cached", nil
			})
		require.NoError(t, err)
		assert.True(t, degraded)
	}

	// The fallback masked both failures from callers, not from the breaker.
	assert.Equal(t, StateOpen, reg.State("account"))
}

func TestExecute_PropagatesWhenNoFallback(t *testing.T) {
	ex := fastExecutor()
	_, err := Execute(context.Background(), ex, "account", "GetBalance", func(ctx context.Context) (string, error) {
		return "", errors.New("upstream weirdness")
	})
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindUnknown, adapterErr.Kind)
	assert.Equal(t, "GetBalance", adapterErr.Operation)
}
