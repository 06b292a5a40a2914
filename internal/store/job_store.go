package store

import (
	"context"
	"errors"
	"time"

	"taskfire/internal/models"
	"taskfire/internal/state"
)

var (
	// ErrNotFound is returned when a definition or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a definition insert collides with
	// the unique job_name constraint.
	ErrDuplicateName = errors.New("job name already exists")
)

// JobStore is the durable repository of job definitions.
type JobStore interface {
	// Create persists a new definition and returns it with identity and
	// audit fields filled.
	Create(ctx context.Context, def *models.JobDefinition) (*models.JobDefinition, error)

	// Update rewrites the mutable fields of an existing definition.
	Update(ctx context.Context, def *models.JobDefinition) error

	// Delete removes a definition; its execution records cascade.
	Delete(ctx context.Context, jobID int64) error

	FindByID(ctx context.Context, jobID int64) (*models.JobDefinition, error)

	FindByName(ctx context.Context, name string) (*models.JobDefinition, error)

	List(ctx context.Context, page, pageSize int, enabledOnly bool) (*models.PaginationResult[models.JobDefinition], error)

	// FetchDue returns enabled definitions with next_run_at <= now,
	// ordered by next_run_at.
	FetchDue(ctx context.Context, now time.Time, page, pageSize int) (*models.PaginationResult[models.JobDefinition], error)

	// FindEnabledMissingNextRun returns enabled definitions that have never
	// been scheduled. Used once at startup to arm fresh jobs.
	FindEnabledMissingNextRun(ctx context.Context) ([]models.JobDefinition, error)

	// ClaimNextRun advances next_run_at. The scheduler calls this before
	// dispatching so a slow tick cannot re-fire the same occurrence.
	ClaimNextRun(ctx context.Context, jobID int64, nextRunAt time.Time) error

	// UpdateLastRun records the terminal outcome of the latest chain.
	UpdateLastRun(ctx context.Context, jobID int64, lastRunAt time.Time, status state.Status) error

	// SetEnabled flips the enabled flag; used to park jobs whose cron
	// expression no longer parses.
	SetEnabled(ctx context.Context, jobID int64, enabled bool) error

	Close() error
}
