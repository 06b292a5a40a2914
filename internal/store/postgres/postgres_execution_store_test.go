package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskfire/internal/models"
	"taskfire/internal/state"
	"taskfire/internal/store"
)

var executionColumnNames = []string{
	"id", "job_id", "job_name", "execution_id",
	"started_at", "completed_at", "duration_ms",
	"status", "retry_attempt",
	"error_message", "error_details", "result",
}

func TestPostgresExecutionStore_Create(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)
	execID := uuid.New()
	startedAt := time.Now()

	mock.ExpectQuery("INSERT INTO taskfire_schema.job_executions").
		WithArgs(int64(1), "nightly-cleanup", execID, startedAt, state.StatusRunning, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := s.Create(context.Background(), &models.ExecutionRecord{
		JobID:       1,
		JobName:     "nightly-cleanup",
		ExecutionID: execID,
		StartedAt:   startedAt,
		Status:      state.StatusRunning,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecutionStore_Complete(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)
	errMsg := "connection refused"

	mock.ExpectExec("UPDATE taskfire_schema.job_executions").
		WithArgs(state.StatusFailed, int64(1500), &errMsg, nil, nil, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Complete(context.Background(), 11, state.StatusFailed, 1500, &errMsg, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecutionStore_Complete_NotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)

	mock.ExpectExec("UPDATE taskfire_schema.job_executions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.Complete(context.Background(), 99, state.StatusSuccess, 10, nil, nil, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresExecutionStore_CancelRunning(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)

	mock.ExpectExec("UPDATE taskfire_schema.job_executions").
		WithArgs(state.StatusCancelled, state.StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.CancelRunning(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecutionStore_FindByExecutionID(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)
	execID := uuid.New()
	startedAt := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM taskfire_schema.job_executions").
		WithArgs(execID).
		WillReturnRows(sqlmock.NewRows(executionColumnNames).AddRow(
			int64(11), int64(1), "nightly-cleanup", execID.String(),
			startedAt, nil, nil,
			"running", 0,
			nil, nil, nil,
		))

	rec, err := s.FindByExecutionID(context.Background(), execID)
	require.NoError(t, err)
	assert.Equal(t, execID, rec.ExecutionID)
	assert.Equal(t, state.StatusRunning, rec.Status)
	assert.Nil(t, rec.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecutionStore_FindByExecutionID_NotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)
	execID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM taskfire_schema.job_executions").
		WithArgs(execID).
		WillReturnRows(sqlmock.NewRows(executionColumnNames))

	_, err = s.FindByExecutionID(context.Background(), execID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresExecutionStore_ListByJob(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)
	execID := uuid.New()
	startedAt := time.Now()
	completedAt := startedAt.Add(2 * time.Second)
	durationMS := int64(2000)

	mock.ExpectQuery("SELECT COUNT(.+) FROM taskfire_schema.job_executions").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM taskfire_schema.job_executions").
		WithArgs(int64(1), 20, 0).
		WillReturnRows(sqlmock.NewRows(executionColumnNames).AddRow(
			int64(11), int64(1), "nightly-cleanup", execID.String(),
			startedAt, completedAt, durationMS,
			"success", 0,
			nil, nil, []byte(`{"deleted_count":4}`),
		))

	result, err := s.ListByJob(context.Background(), 1, 1, 20)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, state.StatusSuccess, result.Items[0].Status)
	require.NotNil(t, result.Items[0].DurationMS)
	assert.Equal(t, durationMS, *result.Items[0].DurationMS)
	assert.Equal(t, 1, result.TotalItems)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecutionStore_CountRunning(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)

	mock.ExpectQuery("SELECT COUNT(.+) FROM taskfire_schema.job_executions").
		WithArgs("nightly-cleanup", state.StatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountRunning(context.Background(), "nightly-cleanup")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecutionStore_DeleteOlderThan(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := NewPostgresExecutionStore(sqlDB)
	cutoff := time.Now().AddDate(0, 0, -30)

	mock.ExpectExec("DELETE FROM taskfire_schema.job_executions").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := s.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
