package health

import "sync"

// Tracker implements the healthy/unhealthy threshold state machine for a
// single replica. A replica transitions to unhealthy after FailThreshold
// consecutive probe failures, and back to healthy after RestoreThreshold
// consecutive probe successes. Single probe outcomes inside a run of the
// opposite kind reset the counter, so flapping probes do not cause
// premature transitions.
type Tracker struct {
	mu sync.Mutex

	failThreshold    int
	restoreThreshold int

	healthy   bool
	failures  int
	successes int
}

// NewTracker creates a tracker that starts in the healthy state.
// Thresholds below 1 are clamped to 1.
func NewTracker(failThreshold, restoreThreshold int) *Tracker {
	if failThreshold < 1 {
		failThreshold = 1
	}
	if restoreThreshold < 1 {
		restoreThreshold = 1
	}
	return &Tracker{
		failThreshold:    failThreshold,
		restoreThreshold: restoreThreshold,
		healthy:          true,
	}
}

// RecordSuccess records a successful probe. It returns true if the outcome
// caused a transition from unhealthy to healthy.
func (t *Tracker) RecordSuccess() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	if t.healthy {
		return false
	}

	t.successes++
	if t.successes >= t.restoreThreshold {
		t.healthy = true
		t.successes = 0
		return true
	}
	return false
}

// RecordFailure records a failed probe. It returns true if the outcome
// caused a transition from healthy to unhealthy.
func (t *Tracker) RecordFailure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.successes = 0
	if !t.healthy {
		return false
	}

	t.failures++
	if t.failures >= t.failThreshold {
		t.healthy = false
		t.failures = 0
		return true
	}
	return false
}

// Healthy returns the current state
func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.healthy
}

// Counts returns the current consecutive failure and success counts
func (t *Tracker) Counts() (failures, successes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures, t.successes
}
