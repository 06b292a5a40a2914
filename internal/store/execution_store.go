package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"taskfire/internal/models"
	"taskfire/internal/state"
)

// ExecutionStore is the append-only audit trail of execution attempts. A
// record is mutated exactly once: filling completion fields when it moves
// from running to a terminal status.
type ExecutionStore interface {
	// Create inserts a running record for a new attempt and returns its id.
	Create(ctx context.Context, rec *models.ExecutionRecord) (int64, error)

	// Complete fills the terminal status and completion fields of a record.
	Complete(ctx context.Context, id int64, status state.Status, durationMS int64, errMsg *string, errDetails, result json.RawMessage) error

	// CancelRunning force-marks every record still in running status as
	// cancelled. Called once after the shutdown grace period elapses.
	CancelRunning(ctx context.Context) (int64, error)

	FindByExecutionID(ctx context.Context, executionID uuid.UUID) (*models.ExecutionRecord, error)

	ListByJob(ctx context.Context, jobID int64, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error)

	ListByStatus(ctx context.Context, status state.Status, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error)

	// CountRunning returns how many records for the named job are currently
	// in running status.
	CountRunning(ctx context.Context, jobName string) (int, error)

	// DeleteOlderThan removes records whose started_at predates the cutoff
	// and returns how many were deleted. Backs the retention cleanup task.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
