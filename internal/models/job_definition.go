package models

import (
	"encoding/json"
	"time"

	"taskfire/internal/state"
)

// JobDefinition is the persisted configuration of a recurring job: its
// schedule, concurrency and retry policy, and the payload handed to the
// task factory on every run.
type JobDefinition struct {
	ID             int64
	Name           string
	TaskType       string
	CronExpression string
	Enabled        bool

	AllowConcurrent bool
	// MaxConcurrent caps simultaneous runs when AllowConcurrent is true.
	// Nil means unlimited.
	MaxConcurrent *int

	MaxRetries             int
	RetryDelaySeconds      int
	RetryBackoffMultiplier float64

	TimeoutSeconds int

	Payload     json.RawMessage
	Description *string
	CreatedBy   *string

	LastRunAt     *time.Time
	LastRunStatus *state.Status
	NextRunAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timeout returns the per-attempt deadline as a duration.
func (d *JobDefinition) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (d *JobDefinition) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelaySeconds) * time.Second
}
