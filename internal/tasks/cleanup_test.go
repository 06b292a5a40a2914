package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskfire/internal/models"
	"taskfire/internal/state"
	"taskfire/internal/store"
	"taskfire/internal/task"
)

// stubExecStore implements store.ExecutionStore for the delete path only.
type stubExecStore struct {
	mu            sync.Mutex
	deletedCutoff time.Time
	deleteCount   int64
}

func (s *stubExecStore) Create(ctx context.Context, rec *models.ExecutionRecord) (int64, error) {
	return 0, nil
}

func (s *stubExecStore) Complete(ctx context.Context, id int64, status state.Status, durationMS int64, errMsg *string, errDetails, result json.RawMessage) error {
	return nil
}

func (s *stubExecStore) CancelRunning(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubExecStore) FindByExecutionID(ctx context.Context, executionID uuid.UUID) (*models.ExecutionRecord, error) {
	return nil, store.ErrNotFound
}

func (s *stubExecStore) ListByJob(ctx context.Context, jobID int64, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error) {
	return nil, nil
}

func (s *stubExecStore) ListByStatus(ctx context.Context, status state.Status, page, pageSize int) (*models.PaginationResult[models.ExecutionRecord], error) {
	return nil, nil
}

func (s *stubExecStore) CountRunning(ctx context.Context, jobName string) (int, error) {
	return 0, nil
}

func (s *stubExecStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedCutoff = cutoff
	return s.deleteCount, nil
}

func (s *stubExecStore) Close() error { return nil }

func testEnv(execs store.ExecutionStore) *task.Env {
	return &task.Env{Log: zerolog.Nop(), Executions: execs}
}

func TestCleanupTask_DeletesOldExecutions(t *testing.T) {
	execs := &stubExecStore{deleteCount: 12}

	built, err := NewCleanupTask(json.RawMessage(`{"retention_days": 7}`))
	require.NoError(t, err)

	result, err := built.Execute(context.Background(), task.Context{
		JobName: "cleanup-job",
		Env:     testEnv(execs),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"deleted_count":12,"retention_days":7}`, string(result))

	wantCutoff := time.Now().AddDate(0, 0, -7)
	assert.WithinDuration(t, wantCutoff, execs.deletedCutoff, time.Minute)
}

func TestCleanupTask_DefaultRetention(t *testing.T) {
	built, err := NewCleanupTask(json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 30, built.(*CleanupTask).RetentionDays)
}

func TestCleanupTask_RejectsNonPositiveRetention(t *testing.T) {
	_, err := NewCleanupTask(json.RawMessage(`{"retention_days": 0}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention_days")

	_, err = NewCleanupTask(json.RawMessage(`{"retention_days": -3}`))
	assert.Error(t, err)
}

func TestHeartbeatTask(t *testing.T) {
	built, err := NewHeartbeatTask(json.RawMessage(`{"message":"still here"}`))
	require.NoError(t, err)

	result, err := built.Execute(context.Background(), task.Context{
		JobName: "heartbeat-job",
		Env:     testEnv(&stubExecStore{}),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"still here"}`, string(result))
}

func TestRegisterBuiltins(t *testing.T) {
	registry := task.NewRegistry()
	require.NoError(t, RegisterBuiltins(registry))
	assert.Equal(t, []string{CleanupTaskType, HeartbeatTaskType}, registry.Types())

	// Double registration must fail loudly.
	assert.Error(t, RegisterBuiltins(registry))
}
