// Package health provides health tracking for replicas and components,
// including the threshold state machine used by service discovery.
package health

import "time"

// Status represents the health state of a component or replica
type Status struct {
	Component string    `json:"component"`
	Healthy   bool      `json:"healthy"`
	Status    string    `json:"status"` // "healthy", "unhealthy"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	// Consecutive probe outcomes at the time this status was recorded
	ConsecutiveFailures  int `json:"consecutive_failures,omitempty"`
	ConsecutiveSuccesses int `json:"consecutive_successes,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate combines several statuses into one system-level status.
// The aggregate is healthy only when every sub-status is healthy.
func Aggregate(systemName string, statuses []Status) Status {
	healthy := true
	message := "all components healthy"
	for _, s := range statuses {
		if !s.Healthy {
			healthy = false
			message = s.Component + ": " + s.Message
			break
		}
	}

	status := NewHealthy(systemName, message)
	if !healthy {
		status = NewUnhealthy(systemName, message)
	}
	return status
}
