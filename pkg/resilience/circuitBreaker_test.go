package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBreaker(settings BreakerSettings) (*circuitBreaker, *time.Time) {
	b := newCircuitBreaker(settings)
	now := time.Now()
	b.clock = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensOnceAtThreshold(t *testing.T) {
	b, _ := testBreaker(BreakerSettings{WindowSize: 4, FailureRateThreshold: 0.5})

	// Window not yet full, breaker stays closed even with 100% failures.
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})
	assert.Equal(t, StateClosed, b.currentState())

	b.record(CallOutcome{Success: true})
	b.record(CallOutcome{Success: false})
	assert.Equal(t, StateOpen, b.currentState())

	openedAt := b.openedAt
	// Late outcomes while open must not re-open or move the timer.
	b.record(CallOutcome{Success: false})
	assert.Equal(t, StateOpen, b.currentState())
	assert.Equal(t, openedAt, b.openedAt)
}

func TestBreaker_RejectsWhileOpen(t *testing.T) {
	b, _ := testBreaker(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5, WaitDuration: 30 * time.Second})
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})

	assert.Equal(t, StateOpen, b.currentState())
	assert.False(t, b.allow())
}

func TestBreaker_HalfOpenAfterWait(t *testing.T) {
	b, now := testBreaker(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5, WaitDuration: 30 * time.Second})
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})
	assert.False(t, b.allow())

	*now = now.Add(31 * time.Second)
	assert.True(t, b.allow())
	assert.Equal(t, StateHalfOpen, b.currentState())
}

func TestBreaker_ProbeFailureReopensAndResetsTimer(t *testing.T) {
	b, now := testBreaker(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5, WaitDuration: 30 * time.Second})
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})

	*now = now.Add(31 * time.Second)
	assert.True(t, b.allow())

	reopenTime := *now
	b.record(CallOutcome{Success: false})
	assert.Equal(t, StateOpen, b.currentState())
	assert.Equal(t, reopenTime, b.openedAt)
	assert.False(t, b.allow())
}

func TestBreaker_ProbeSuccessesClose(t *testing.T) {
	b, now := testBreaker(BreakerSettings{
		WindowSize:            2,
		FailureRateThreshold:  0.5,
		WaitDuration:          time.Second,
		PermittedProbeCalls:   3,
		ProbeSuccessThreshold: 2,
	})
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})

	*now = now.Add(2 * time.Second)
	assert.True(t, b.allow())
	assert.True(t, b.allow())
	b.record(CallOutcome{Success: true})
	assert.Equal(t, StateHalfOpen, b.currentState())
	b.record(CallOutcome{Success: true})
	assert.Equal(t, StateClosed, b.currentState())

	// Window was reset on close; a single failure cannot trip it.
	b.record(CallOutcome{Success: false})
	assert.Equal(t, StateClosed, b.currentState())
}

func TestBreaker_HalfOpenProbeQuota(t *testing.T) {
	b, now := testBreaker(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5, WaitDuration: time.Second, PermittedProbeCalls: 2})
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})

	*now = now.Add(2 * time.Second)
	assert.True(t, b.allow())  // transition probe
	assert.True(t, b.allow())  // second probe
	assert.False(t, b.allow()) // beyond quota
}

func TestRegistry_IsolatesKeys(t *testing.T) {
	reg := NewBreakerRegistry(BreakerSettings{WindowSize: 2, FailureRateThreshold: 0.5})

	b := reg.breaker("bankserv")
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: false})

	assert.Equal(t, StateOpen, reg.State("bankserv"))
	assert.Equal(t, StateClosed, reg.State("samos"))

	reg.Reset("bankserv")
	assert.Equal(t, StateClosed, reg.State("bankserv"))
}

func TestRegistry_Stats(t *testing.T) {
	reg := NewBreakerRegistry(BreakerSettings{WindowSize: 4, FailureRateThreshold: 0.5})
	b := reg.breaker("account")
	b.record(CallOutcome{Success: false})
	b.record(CallOutcome{Success: true})

	stats := reg.Stats()
	assert.Len(t, stats, 1)
	assert.Equal(t, "account", stats[0].Key)
	assert.Equal(t, StateClosed, stats[0].State)
	assert.Equal(t, 2, stats[0].RecordedCalls)
	assert.InDelta(t, 0.5, stats[0].FailureRate, 0.001)
}
