package bus

// Status represents the lifecycle state of an envelope.
type Status string

const (
	// StatusPending indicates the envelope has not been attempted yet.
	StatusPending Status = "pending"
	// StatusProcessing marks an envelope claimed for one dispatch attempt.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates every handler finished without error.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the last attempt failed and a retry is scheduled.
	StatusFailed Status = "failed"
	// StatusDeadLettered indicates the envelope exhausted its attempts.
	StatusDeadLettered Status = "dead_lettered"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeadLettered
}
