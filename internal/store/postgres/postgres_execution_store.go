package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"taskfire/internal/models"
	"taskfire/internal/state"
	"taskfire/internal/store"
)

const executionColumns = `
	id, job_id, job_name, execution_id,
	started_at, completed_at, duration_ms,
	status, retry_attempt,
	error_message, error_details, result`

type PostgresExecutionStore struct {
	db *sql.DB
}

func NewPostgresExecutionStore(db *sql.DB) *PostgresExecutionStore {
	return &PostgresExecutionStore{db: db}
}

func (s *PostgresExecutionStore) Create(ctx context.Context, rec *models.ExecutionRecord) (int64, error) {
	query := `
		INSERT INTO taskfire_schema.job_executions
			(job_id, job_name, execution_id, started_at, status, retry_attempt)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		rec.JobID, rec.JobName, rec.ExecutionID, rec.StartedAt, rec.Status, rec.RetryAttempt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert job execution: %w", err)
	}
	return id, nil
}

func (s *PostgresExecutionStore) Complete(ctx context.Context, id int64, status state.Status, durationMS int64, errMsg *string, errDetails, result json.RawMessage) error {
	query := `
		UPDATE taskfire_schema.job_executions
		SET status = $1,
		    completed_at = now(),
		    duration_ms = $2,
		    error_message = $3,
		    error_details = $4,
		    result = $5
		WHERE id = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		status, durationMS, errMsg, nullableJSON(errDetails), nullableJSON(result), id)
	if err != nil {
		return fmt.Errorf("complete job execution: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresExecutionStore) CancelRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE taskfire_schema.job_executions
		SET status = $1, completed_at = now()
		WHERE status = $2
	`, state.StatusCancelled, state.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("cancel running executions: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *PostgresExecutionStore) FindByExecutionID(ctx context.Context, executionID uuid.UUID) (*models.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + `
		FROM taskfire_schema.job_executions
		WHERE execution_id = $1`

	rec, err := scanExecution(s.db.QueryRowContext(ctx, query, executionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job execution: %w", err)
	}
	return rec, nil
}

func (s *PostgresExecutionStore) ListByJob(ctx context.Context, jobID int64, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error) {
	where := `job_id = $1`
	countQuery := `SELECT COUNT(*) FROM taskfire_schema.job_executions WHERE ` + where
	selectQuery := `SELECT ` + executionColumns + `
		FROM taskfire_schema.job_executions
		WHERE ` + where + `
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`

	return s.paginate(ctx, countQuery, []any{jobID}, selectQuery, page, pageSize)
}

func (s *PostgresExecutionStore) ListByStatus(ctx context.Context, status state.Status, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error) {
	where := `status = $1`
	countQuery := `SELECT COUNT(*) FROM taskfire_schema.job_executions WHERE ` + where
	selectQuery := `SELECT ` + executionColumns + `
		FROM taskfire_schema.job_executions
		WHERE ` + where + `
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`

	return s.paginate(ctx, countQuery, []any{status}, selectQuery, page, pageSize)
}

func (s *PostgresExecutionStore) CountRunning(ctx context.Context, jobName string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM taskfire_schema.job_executions
		WHERE job_name = $1 AND status = $2
	`, jobName, state.StatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count running executions: %w", err)
	}
	return count, nil
}

func (s *PostgresExecutionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM taskfire_schema.job_executions
		WHERE started_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old executions: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *PostgresExecutionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresExecutionStore) paginate(ctx context.Context, countQuery string, countArgs []any, selectQuery string, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var totalItems int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("count job executions: %w", err)
	}

	args := append(append([]any{}, countArgs...), pageSize, offset)
	rows, err := s.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch job executions: %w", err)
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job execution: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job executions: %w", err)
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return &models.PaginationResult[models.ExecutionRecord]{
		Items:           records,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func scanExecution(row rowScanner) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	var status string

	err := row.Scan(
		&rec.ID, &rec.JobID, &rec.JobName, &rec.ExecutionID,
		&rec.StartedAt, &rec.CompletedAt, &rec.DurationMS,
		&status, &rec.RetryAttempt,
		&rec.ErrorMessage, (*[]byte)(&rec.ErrorDetails), (*[]byte)(&rec.Result),
	)
	if err != nil {
		return nil, err
	}

	rec.Status = state.Status(status)
	return &rec, nil
}
