package task

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"taskfire/internal/store"
)

// Task is one executable unit built by the registry from a job's task type
// and payload. Execute must observe ctx cancellation cooperatively: the
// executor abandons, never kills, a task that overruns its deadline.
type Task interface {
	Execute(ctx context.Context, tc Context) (json.RawMessage, error)
}

// Context identifies the attempt a task is running under and carries the
// shared resources a task body may need.
type Context struct {
	ExecutionID  uuid.UUID
	JobID        int64
	JobName      string
	RetryAttempt int
	Env          *Env
}

// Env holds the process resources shared by all tasks.
type Env struct {
	Log        zerolog.Logger
	DB         *sql.DB
	Executions store.ExecutionStore
}
