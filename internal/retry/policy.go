package retry

import (
	"math"
	"time"

	"taskfire/internal/models"
	"taskfire/internal/state"
)

// Decision is the outcome of consulting the retry policy after an attempt.
type Decision struct {
	Retry bool
	After time.Duration
}

var terminal = Decision{}

// Decide returns whether the attempt with the given 0-based retry count
// should be retried, and after what delay. Only failed and timed-out
// attempts retry; success and cancellation are always terminal. The delay
// grows as retry_delay * multiplier^attempt.
func Decide(def *models.JobDefinition, attempt int, status state.Status) Decision {
	if !status.Retryable() {
		return terminal
	}
	if attempt >= def.MaxRetries {
		return terminal
	}
	return Decision{Retry: true, After: Delay(def, attempt)}
}

// Delay computes the backoff before the retry following the given 0-based
// attempt. Truncated to whole seconds.
func Delay(def *models.JobDefinition, attempt int) time.Duration {
	multiplier := def.RetryBackoffMultiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	seconds := float64(def.RetryDelaySeconds) * math.Pow(multiplier, float64(attempt))
	return time.Duration(seconds) * time.Second
}
