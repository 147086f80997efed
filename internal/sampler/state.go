package sampler

import "sync"

// CycleState is the sampler's position within the poll loop.
type CycleState string

// Cycle states. The loop moves Idle → Polling → Normalizing →
// Publishing → Idle every cycle until externally stopped.
const (
	StateIdle        CycleState = "idle"
	StatePolling     CycleState = "polling"
	StateNormalizing CycleState = "normalizing"
	StatePublishing  CycleState = "publishing"
)

// allStates is used to zero the state gauge on every transition.
var allStates = []CycleState{StateIdle, StatePolling, StateNormalizing, StatePublishing}

// stateTracker holds the current cycle state behind a mutex so
// concurrent readers (health endpoints, tests) see clean transitions.
type stateTracker struct {
	mu    sync.RWMutex
	state CycleState
}

func newStateTracker() *stateTracker {
	return &stateTracker{state: StateIdle}
}

func (t *stateTracker) get() CycleState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *stateTracker) set(s CycleState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}
