package bus

import "time"

// Metrics captures processor-level telemetry.
type Metrics interface {
	// ObserveDispatchDuration records the time spent dispatching one envelope.
	ObserveDispatchDuration(queue string, duration time.Duration)
	// AddCompleted increments the count of completed envelopes.
	AddCompleted(count int)
	// AddRetried increments the count of envelopes scheduled for retry.
	AddRetried(count int)
	// AddDeadLettered increments the count of dead-lettered envelopes.
	AddDeadLettered(count int)
	// SetActiveQueues updates the number of queues seen in the last scan.
	SetActiveQueues(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveDispatchDuration implements Metrics.
func (NopMetrics) ObserveDispatchDuration(string, time.Duration) {}

// AddCompleted implements Metrics.
func (NopMetrics) AddCompleted(int) {}

// AddRetried implements Metrics.
func (NopMetrics) AddRetried(int) {}

// AddDeadLettered implements Metrics.
func (NopMetrics) AddDeadLettered(int) {}

// SetActiveQueues implements Metrics.
func (NopMetrics) SetActiveQueues(int) {}
