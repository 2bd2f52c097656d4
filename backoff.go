package bus

import "time"

// BackoffSchedule is the ordered list of retry delays. Attempt n (1-based)
// waits the n-th entry before the next attempt; attempts beyond the list
// reuse the last entry.
type BackoffSchedule []time.Duration

// DefaultBackoffSchedule is the stock retry schedule.
var DefaultBackoffSchedule = BackoffSchedule{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	time.Hour,
}

// DelayFor returns the delay before the attempt following failed attempt
// number attempt (1-based). An empty schedule yields zero delay.
func (s BackoffSchedule) DelayFor(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}

	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s) {
		idx = len(s) - 1
	}

	return s[idx]
}
