package tasks

import (
	"context"
	"encoding/json"

	"taskfire/internal/task"
)

// HeartbeatTaskType is the registry key for the liveness heartbeat task.
const HeartbeatTaskType = "heartbeat"

// HeartbeatTask logs a liveness line. Useful as a scheduled smoke test for
// the whole dispatch path.
type HeartbeatTask struct {
	Message string `json:"message"`
}

func NewHeartbeatTask(payload json.RawMessage) (task.Task, error) {
	t := &HeartbeatTask{Message: "alive"}
	if err := json.Unmarshal(payload, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *HeartbeatTask) Execute(ctx context.Context, tc task.Context) (json.RawMessage, error) {
	tc.Env.Log.Info().
		Str("job", tc.JobName).
		Str("execution_id", tc.ExecutionID.String()).
		Str("message", t.Message).
		Msg("heartbeat")

	return json.Marshal(map[string]string{"message": t.Message})
}

// RegisterBuiltins adds every built-in task factory to the registry.
func RegisterBuiltins(registry *task.Registry) error {
	if err := registry.Register(CleanupTaskType, NewCleanupTask); err != nil {
		return err
	}
	return registry.Register(HeartbeatTaskType, NewHeartbeatTask)
}
