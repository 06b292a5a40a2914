package state

// Status is the lifecycle state of a single execution attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

var AllStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusSuccess,
	StatusFailed,
	StatusTimeout,
	StatusCancelled,
}

// Terminal reports whether s is a record-final status. Whether a failed or
// timed-out attempt is retried is a policy decision made by the scheduler,
// not by the status itself.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Retryable reports whether a retry may follow s. Cancellation is always
// final and success never retries.
func (s Status) Retryable() bool {
	return s == StatusFailed || s == StatusTimeout
}

type Transition struct {
	From Status
	To   Status
}

var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusRunning},
	{From: StatusPending, To: StatusCancelled},
	{From: StatusRunning, To: StatusSuccess},
	{From: StatusRunning, To: StatusFailed},
	{From: StatusRunning, To: StatusTimeout},
	{From: StatusRunning, To: StatusCancelled},
	// A retryable outcome re-arms a fresh pending attempt.
	{From: StatusFailed, To: StatusPending},
	{From: StatusTimeout, To: StatusPending},
}

func IsValidTransition(from, to Status) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
