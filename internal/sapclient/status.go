package sapclient

import (
	"sync"

	"github.com/kec-cse/sap-points/internal/catalog"
)

// Status is the per-category submission state.
type Status string

const (
	// StatusIdle means nothing has been sent for the category yet.
	StatusIdle Status = "idle"
	// StatusSubmitting means a delivery attempt is running.
	StatusSubmitting Status = "submitting"
	// StatusSuccess is terminal for the session.
	StatusSuccess Status = "success"
	// StatusError means the last delivery failed; the user may retry.
	StatusError Status = "error"
)

// statusTracker holds one independent state machine per category.
// A category is reserved for the whole submit call so validation and preflight
// run without changing the visible status.
type statusTracker struct {
	mu       sync.Mutex
	states   map[catalog.Key]Status
	inflight map[catalog.Key]struct{}
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		states:   make(map[catalog.Key]Status),
		inflight: make(map[catalog.Key]struct{}),
	}
}

func (t *statusTracker) get(key catalog.Key) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(key)
}

func (t *statusTracker) stateLocked(key catalog.Key) Status {
	if state, ok := t.states[key]; ok {
		return state
	}
	return StatusIdle
}

func (t *statusTracker) snapshot() map[catalog.Key]Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[catalog.Key]Status, len(t.states))
	for key, state := range t.states {
		out[key] = state
	}
	return out
}

func (t *statusTracker) reserve(key catalog.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stateLocked(key) == StatusSuccess {
		return ErrAlreadySubmitted
	}
	if _, busy := t.inflight[key]; busy {
		return ErrSubmissionInProgress
	}
	t.inflight[key] = struct{}{}
	return nil
}

func (t *statusTracker) release(key catalog.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, key)
}

// transition moves key to next; only idle/error -> submitting and submitting -> success/error are legal.
func (t *statusTracker) transition(key catalog.Key, next Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.stateLocked(key)
	switch next {
	case StatusSubmitting:
		if current != StatusIdle && current != StatusError {
			return false
		}
	case StatusSuccess, StatusError:
		if current != StatusSubmitting {
			return false
		}
	default:
		return false
	}
	t.states[key] = next
	return true
}

// forget resets a failed category to idle. Reserved and successful categories keep their state.
func (t *statusTracker) forget(key catalog.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inflight[key]; busy {
		return
	}
	if t.stateLocked(key) == StatusError {
		delete(t.states, key)
	}
}
