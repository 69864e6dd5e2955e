package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ExecutorSettings controls retry and per-attempt deadlines.
type ExecutorSettings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

func (s ExecutorSettings) withDefaults() ExecutorSettings {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 3
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = 200 * time.Millisecond
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = 5 * time.Second
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 5 * time.Second
	}
	return s
}

// Executor wraps remote calls with circuit breaking, retry, timeout and
// fallback. One instance is shared by all callers of an adapter; breaker
// state is keyed by adapter key inside the registry.
type Executor struct {
	breakers *BreakerRegistry
	settings ExecutorSettings
	tracer   trace.Tracer
}

// NewExecutor creates an executor over an explicitly constructed breaker
// registry.
func NewExecutor(breakers *BreakerRegistry, settings ExecutorSettings) *Executor {
	return &Executor{
		breakers: breakers,
		settings: settings.withDefaults(),
		tracer:   otel.Tracer("go-clearing"),
	}
}

// Breakers exposes the registry for management operations.
func (e *Executor) Breakers() *BreakerRegistry { return e.breakers }

// Call is a single remote operation bounded by the context it receives.
type Call[T any] func(ctx context.Context) (T, error)

// Fallback produces a degraded-but-valid substitute once the primary path is
// exhausted or the circuit is open.
type Fallback[T any] func(ctx context.Context, cause *AdapterError) (T, error)

// Execute runs call under the resilience policy for key. Each attempt is
// admitted by the breaker, bounded by the per-call timeout, and its outcome
// is fed into the sliding window. Retryable failures are retried with
// exponential backoff and jitter; others abort immediately.
func Execute[T any](ctx context.Context, e *Executor, key, operation string, call Call[T]) (T, error) {
	value, _, err := ExecuteWithFallback[T](ctx, e, key, operation, call, nil)
	return value, err
}

// ExecuteWithFallback is Execute plus a caller-supplied fallback. The bool
// result reports whether the returned value came from the fallback, so
// degraded responses are always distinguishable from primary ones. Outcomes
// still feed the window even when the fallback masks the failure.
func ExecuteWithFallback[T any](ctx context.Context, e *Executor, key, operation string, call Call[T], fallback Fallback[T]) (T, bool, error) {
	ctx, span := e.tracer.Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("adapter.key", key),
		attribute.String("adapter.operation", operation),
	))
	defer span.End()

	var zero T
	breaker := e.breakers.breaker(key)

	var value T
	attempt := func() error {
		if !breaker.allow() {
			return backoff.Permanent(NewError(KindCircuitOpen, operation, "", nil))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.settings.CallTimeout)
		defer cancel()

		start := time.Now()
		result, err := call(attemptCtx)
		latency := time.Since(start)

		if err != nil {
			classified := Classify(err, operation, "")
			breaker.record(CallOutcome{Success: false, Latency: latency, Kind: classified.Kind})
			if classified.Retryable() {
				return classified
			}
			return backoff.Permanent(classified)
		}

		breaker.record(CallOutcome{Success: true, Latency: latency})
		value = result
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.settings.BaseDelay
	policy.MaxInterval = e.settings.MaxDelay
	policy.MaxElapsedTime = 0

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(e.settings.MaxAttempts-1)), ctx))
	if err == nil {
		return value, false, nil
	}

	classified := Classify(err, operation, "")
	span.RecordError(classified)
	span.SetStatus(codes.Error, string(classified.Kind))

	if fallback != nil {
		degraded, fbErr := fallback(ctx, classified)
		if fbErr == nil {
			span.SetAttributes(attribute.Bool("adapter.fallback", true))
			return degraded, true, nil
		}
	}
	return zero, false, classified
}
