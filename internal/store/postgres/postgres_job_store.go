package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	"taskfire/internal/models"
	"taskfire/internal/state"
	"taskfire/internal/store"
)

const jobColumns = `
	id, job_name, task_type, cron_expression, enabled,
	allow_concurrent, max_concurrent,
	max_retries, retry_delay_seconds, retry_backoff_multiplier,
	timeout_seconds, payload, description, created_by,
	last_run_at, last_run_status, next_run_at,
	created_at, updated_at`

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

func (s *PostgresJobStore) Create(ctx context.Context, def *models.JobDefinition) (*models.JobDefinition, error) {
	query := `
		INSERT INTO taskfire_schema.scheduled_jobs
			(job_name, task_type, cron_expression, enabled,
			 allow_concurrent, max_concurrent,
			 max_retries, retry_delay_seconds, retry_backoff_multiplier,
			 timeout_seconds, payload, description, created_by, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	created := *def
	err := s.db.QueryRowContext(ctx, query,
		def.Name, def.TaskType, def.CronExpression, def.Enabled,
		def.AllowConcurrent, def.MaxConcurrent,
		def.MaxRetries, def.RetryDelaySeconds, def.RetryBackoffMultiplier,
		def.TimeoutSeconds, nullableJSON(def.Payload), def.Description, def.CreatedBy, def.NextRunAt,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q", store.ErrDuplicateName, def.Name)
		}
		return nil, fmt.Errorf("insert scheduled job: %w", err)
	}

	return &created, nil
}

func (s *PostgresJobStore) Update(ctx context.Context, def *models.JobDefinition) error {
	query := `
		UPDATE taskfire_schema.scheduled_jobs
		SET job_name = $1,
		    task_type = $2,
		    cron_expression = $3,
		    enabled = $4,
		    allow_concurrent = $5,
		    max_concurrent = $6,
		    max_retries = $7,
		    retry_delay_seconds = $8,
		    retry_backoff_multiplier = $9,
		    timeout_seconds = $10,
		    payload = $11,
		    description = $12,
		    next_run_at = $13,
		    updated_at = now()
		WHERE id = $14
	`

	res, err := s.db.ExecContext(ctx, query,
		def.Name, def.TaskType, def.CronExpression, def.Enabled,
		def.AllowConcurrent, def.MaxConcurrent,
		def.MaxRetries, def.RetryDelaySeconds, def.RetryBackoffMultiplier,
		def.TimeoutSeconds, nullableJSON(def.Payload), def.Description, def.NextRunAt,
		def.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", store.ErrDuplicateName, def.Name)
		}
		return fmt.Errorf("update scheduled job: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresJobStore) Delete(ctx context.Context, jobID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM taskfire_schema.scheduled_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresJobStore) FindByID(ctx context.Context, jobID int64) (*models.JobDefinition, error) {
	query := `SELECT ` + jobColumns + ` FROM taskfire_schema.scheduled_jobs WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, jobID))
}

func (s *PostgresJobStore) FindByName(ctx context.Context, name string) (*models.JobDefinition, error) {
	query := `SELECT ` + jobColumns + ` FROM taskfire_schema.scheduled_jobs WHERE job_name = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, name))
}

func (s *PostgresJobStore) List(ctx context.Context, page, pageSize int, enabledOnly bool) (*models.PaginationResult[models.JobDefinition], error) {
	where := "TRUE"
	if enabledOnly {
		where = "enabled = TRUE"
	}

	countQuery := `SELECT COUNT(*) FROM taskfire_schema.scheduled_jobs WHERE ` + where
	selectQuery := `SELECT ` + jobColumns + `
		FROM taskfire_schema.scheduled_jobs
		WHERE ` + where + `
		ORDER BY job_name ASC
		LIMIT $1 OFFSET $2`

	return s.paginate(ctx, countQuery, nil, selectQuery, page, pageSize)
}

func (s *PostgresJobStore) FetchDue(ctx context.Context, now time.Time, page, pageSize int) (*models.PaginationResult[models.JobDefinition], error) {
	where := `enabled = TRUE AND next_run_at IS NOT NULL AND next_run_at <= $1`

	countQuery := `SELECT COUNT(*) FROM taskfire_schema.scheduled_jobs WHERE ` + where
	selectQuery := `SELECT ` + jobColumns + `
		FROM taskfire_schema.scheduled_jobs
		WHERE ` + where + `
		ORDER BY next_run_at ASC
		LIMIT $2 OFFSET $3`

	return s.paginate(ctx, countQuery, []any{now}, selectQuery, page, pageSize)
}

func (s *PostgresJobStore) FindEnabledMissingNextRun(ctx context.Context) ([]models.JobDefinition, error) {
	query := `SELECT ` + jobColumns + `
		FROM taskfire_schema.scheduled_jobs
		WHERE enabled = TRUE AND next_run_at IS NULL`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch unscheduled jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (s *PostgresJobStore) ClaimNextRun(ctx context.Context, jobID int64, nextRunAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE taskfire_schema.scheduled_jobs
		SET next_run_at = $1, updated_at = now()
		WHERE id = $2
	`, nextRunAt, jobID)
	if err != nil {
		return fmt.Errorf("claim next run: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) UpdateLastRun(ctx context.Context, jobID int64, lastRunAt time.Time, status state.Status) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE taskfire_schema.scheduled_jobs
		SET last_run_at = $1, last_run_status = $2, updated_at = now()
		WHERE id = $3
	`, lastRunAt, status, jobID)
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) SetEnabled(ctx context.Context, jobID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE taskfire_schema.scheduled_jobs
		SET enabled = $1, updated_at = now()
		WHERE id = $2
	`, enabled, jobID)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

func (s *PostgresJobStore) paginate(ctx context.Context, countQuery string, countArgs []any, selectQuery string, page, pageSize int) (*models.PaginationResult[models.JobDefinition], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var totalItems int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("count scheduled jobs: %w", err)
	}

	args := append(append([]any{}, countArgs...), pageSize, offset)
	rows, err := s.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch scheduled jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return &models.PaginationResult[models.JobDefinition]{
		Items:           jobs,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (s *PostgresJobStore) scanOne(row *sql.Row) (*models.JobDefinition, error) {
	def, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch scheduled job: %w", err)
	}
	return def, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.JobDefinition, error) {
	var def models.JobDefinition
	var lastRunStatus sql.NullString

	err := row.Scan(
		&def.ID, &def.Name, &def.TaskType, &def.CronExpression, &def.Enabled,
		&def.AllowConcurrent, &def.MaxConcurrent,
		&def.MaxRetries, &def.RetryDelaySeconds, &def.RetryBackoffMultiplier,
		&def.TimeoutSeconds, &def.Payload, &def.Description, &def.CreatedBy,
		&def.LastRunAt, &lastRunStatus, &def.NextRunAt,
		&def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastRunStatus.Valid {
		status := state.Status(lastRunStatus.String)
		def.LastRunStatus = &status
	}
	return &def, nil
}

func scanJobs(rows *sql.Rows) ([]models.JobDefinition, error) {
	var jobs []models.JobDefinition
	for rows.Next() {
		def, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled job: %w", err)
		}
		jobs = append(jobs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled jobs: %w", err)
	}
	return jobs, nil
}

// nullableJSON maps an empty raw message to SQL NULL instead of the invalid
// empty jsonb literal.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
