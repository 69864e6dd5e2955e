package resilience

import (
	"sync"
	"time"
)

// CircuitState represents the breaker state for one adapter key.
type CircuitState string

const (
	StateClosed   CircuitState = "CLOSED"
	StateOpen     CircuitState = "OPEN"
	StateHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerSettings controls the sliding window and state transitions.
type BreakerSettings struct {
	WindowSize            int
	FailureRateThreshold  float64
	WaitDuration          time.Duration
	PermittedProbeCalls   int
	ProbeSuccessThreshold int
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.WindowSize <= 0 {
		s.WindowSize = 10
	}
	if s.FailureRateThreshold <= 0 {
		s.FailureRateThreshold = 0.5
	}
	if s.WaitDuration <= 0 {
		s.WaitDuration = 30 * time.Second
	}
	if s.PermittedProbeCalls <= 0 {
		s.PermittedProbeCalls = 3
	}
	if s.ProbeSuccessThreshold <= 0 || s.ProbeSuccessThreshold > s.PermittedProbeCalls {
		s.ProbeSuccessThreshold = s.PermittedProbeCalls
	}
	return s
}

// CallOutcome records one attempt for the sliding window.
type CallOutcome struct {
	Success bool
	Latency time.Duration
	Kind    ErrorKind
}

// BreakerStats is the per-key snapshot reported to operators.
type BreakerStats struct {
	Key            string       `json:"key"`
	State          CircuitState `json:"state"`
	WindowSize     int          `json:"window_size"`
	RecordedCalls  int          `json:"recorded_calls"`
	FailureRate    float64      `json:"failure_rate"`
	OpenedAt       time.Time    `json:"opened_at,omitempty"`
	ProbesInFlight int          `json:"probes_in_flight"`
	ProbeSuccesses int          `json:"probe_successes"`
}

// circuitBreaker is the state machine for a single adapter key. All
// transitions happen under mu so concurrent outcome reports cannot corrupt
// the window or double-transition.
type circuitBreaker struct {
	mu       sync.Mutex
	settings BreakerSettings
	state    CircuitState
	window   []bool // true = failure
	pos      int
	filled   int
	openedAt time.Time
	probes   int // in-flight probe calls while HALF_OPEN
	probeOK  int
	clock    func() time.Time
}

func newCircuitBreaker(settings BreakerSettings) *circuitBreaker {
	s := settings.withDefaults()
	return &circuitBreaker{
		settings: s,
		state:    StateClosed,
		window:   make([]bool, s.WindowSize),
		clock:    time.Now,
	}
}

// allow decides whether a call may proceed. In HALF_OPEN it also reserves a
// probe slot; the caller must report the outcome via record, which releases
// the slot.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock().Sub(b.openedAt) >= b.settings.WaitDuration {
			b.state = StateHalfOpen
			b.probes = 1
			b.probeOK = 0
			return true
		}
		return false
	case StateHalfOpen:
		if b.probes < b.settings.PermittedProbeCalls {
			b.probes++
			return true
		}
		return false
	}
	return false
}

// record feeds one outcome into the window and drives the state machine.
// CIRCUIT_OPEN rejections are synthesized before admission and must not be
// reported here.
func (b *circuitBreaker) record(outcome CallOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		if b.probes > 0 {
			b.probes--
		}
		if !outcome.Success {
			b.state = StateOpen
			b.openedAt = b.clock()
			b.resetWindow()
			return
		}
		b.probeOK++
		if b.probeOK >= b.settings.ProbeSuccessThreshold {
			b.state = StateClosed
			b.resetWindow()
		}
		return
	case StateOpen:
		// Late outcome from a call admitted before the transition; the
		// breaker is already open, nothing to decide.
		return
	}

	b.window[b.pos] = !outcome.Success
	b.pos = (b.pos + 1) % b.settings.WindowSize
	if b.filled < b.settings.WindowSize {
		b.filled++
	}
	if b.filled == b.settings.WindowSize && b.failureRate() >= b.settings.FailureRateThreshold {
		b.state = StateOpen
		b.openedAt = b.clock()
	}
}

func (b *circuitBreaker) failureRate() float64 {
	if b.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.filled)
}

func (b *circuitBreaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.pos = 0
	b.filled = 0
	b.probeOK = 0
}

func (b *circuitBreaker) currentState() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *circuitBreaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.probes = 0
	b.resetWindow()
}

func (b *circuitBreaker) stats(key string) BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Key:            key,
		State:          b.state,
		WindowSize:     b.settings.WindowSize,
		RecordedCalls:  b.filled,
		FailureRate:    b.failureRate(),
		OpenedAt:       b.openedAt,
		ProbesInFlight: b.probes,
		ProbeSuccesses: b.probeOK,
	}
}

// BreakerRegistry owns one breaker per adapter key. Instances are created
// explicitly and passed to executors; there is no package-level registry.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*circuitBreaker
	settings BreakerSettings
}

// NewBreakerRegistry creates a registry applying settings to every key.
func NewBreakerRegistry(settings BreakerSettings) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*circuitBreaker),
		settings: settings,
	}
}

func (r *BreakerRegistry) breaker(key string) *circuitBreaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[key]; ok {
		return b
	}
	b = newCircuitBreaker(r.settings)
	r.breakers[key] = b
	return b
}

// State reports the current state for a key, CLOSED for unseen keys.
func (r *BreakerRegistry) State(key string) CircuitState {
	return r.breaker(key).currentState()
}

// Reset forces the breaker for key back to CLOSED with an empty window.
func (r *BreakerRegistry) Reset(key string) {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		b.reset()
	}
}

// Stats snapshots every known breaker for the management API.
func (r *BreakerRegistry) Stats() []BreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make([]BreakerStats, 0, len(r.breakers))
	for key, b := range r.breakers {
		stats = append(stats, b.stats(key))
	}
	return stats
}
