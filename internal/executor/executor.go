package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"taskfire/internal/state"
	"taskfire/internal/task"
)

// Outcome is the structured result of one attempt.
type Outcome struct {
	Status   state.Status
	Err      error
	Result   json.RawMessage
	Duration time.Duration
	Panicked bool
	Stack    string
}

type Executor struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Executor {
	return &Executor{log: log}
}

type taskResult struct {
	result   json.RawMessage
	err      error
	panicked bool
	stack    string
}

// Run executes one task attempt under a deadline. The attempt goroutine is
// never killed: on timeout or cancellation the executor stops waiting and
// returns, and the task is expected to observe ctx and exit on its own. A
// panic inside the task is converted to a failed outcome; it must never
// reach the scheduler loop.
func (e *Executor) Run(ctx context.Context, t task.Task, tc task.Context, timeout time.Duration) Outcome {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan taskResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- taskResult{
					err:      fmt.Errorf("task panicked: %v", r),
					panicked: true,
					stack:    string(debug.Stack()),
				}
			}
		}()

		result, err := t.Execute(runCtx, tc)
		done <- taskResult{result: result, err: err}
	}()

	select {
	case r := <-done:
		outcome := Outcome{
			Result:   r.result,
			Err:      r.err,
			Duration: time.Since(start),
			Panicked: r.panicked,
			Stack:    r.stack,
		}
		if r.err != nil {
			outcome.Status = state.StatusFailed
			return outcome
		}
		outcome.Status = state.StatusSuccess
		return outcome

	case <-runCtx.Done():
		duration := time.Since(start)

		if ctx.Err() != nil {
			// Parent cancellation: shutdown interrupted the attempt.
			return Outcome{
				Status:   state.StatusCancelled,
				Err:      fmt.Errorf("execution cancelled: %w", ctx.Err()),
				Duration: duration,
			}
		}

		e.log.Warn().
			Str("job", tc.JobName).
			Str("execution_id", tc.ExecutionID.String()).
			Dur("timeout", timeout).
			Msg("task overran its deadline, abandoning")

		return Outcome{
			Status:   state.StatusTimeout,
			Err:      fmt.Errorf("execution timed out after %s", timeout),
			Duration: duration,
		}
	}
}
