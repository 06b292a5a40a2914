package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskfire/internal/task"
)

// CleanupTaskType is the registry key for the execution-history retention
// task. The cleanup job is a plain JobDefinition like any other; the
// scheduler does not special-case it.
const CleanupTaskType = "data_cleanup"

const defaultRetentionDays = 30

// CleanupTask deletes execution records older than the retention window.
type CleanupTask struct {
	RetentionDays int `json:"retention_days"`
}

func NewCleanupTask(payload json.RawMessage) (task.Task, error) {
	t := &CleanupTask{RetentionDays: defaultRetentionDays}
	if err := json.Unmarshal(payload, t); err != nil {
		return nil, err
	}
	if t.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention_days must be positive, got %d", t.RetentionDays)
	}
	return t, nil
}

func (t *CleanupTask) Execute(ctx context.Context, tc task.Context) (json.RawMessage, error) {
	cutoff := time.Now().AddDate(0, 0, -t.RetentionDays)

	deleted, err := tc.Env.Executions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup old executions: %w", err)
	}

	tc.Env.Log.Info().
		Int64("deleted_count", deleted).
		Int("retention_days", t.RetentionDays).
		Str("job", tc.JobName).
		Msg("execution history cleanup completed")

	return json.Marshal(map[string]any{
		"deleted_count":  deleted,
		"retention_days": t.RetentionDays,
	})
}
