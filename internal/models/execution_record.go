package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"taskfire/internal/state"
)

// ExecutionRecord is one immutable attempt of a JobDefinition. JobName is
// denormalized so the audit trail survives a rename or delete of the
// owning definition.
type ExecutionRecord struct {
	ID          int64
	JobID       int64
	JobName     string
	ExecutionID uuid.UUID

	StartedAt   time.Time
	CompletedAt *time.Time
	DurationMS  *int64

	Status       state.Status
	RetryAttempt int

	ErrorMessage *string
	ErrorDetails json.RawMessage
	Result       json.RawMessage
}
