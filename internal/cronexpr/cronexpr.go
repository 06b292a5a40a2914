package cronexpr

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression marks a cron expression that cannot be parsed. A job
// carrying one is disabled rather than scheduled on a guessed interval.
var ErrInvalidExpression = errors.New("invalid cron expression")

// standard 5-field syntax: minute, hour, day-of-month, month, day-of-week.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Next computes the first occurrence of expr strictly after the given
// instant. Occurrences missed while the scheduler was offline are skipped,
// never replayed.
func Next(expr string, after time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidExpression, expr, err)
	}
	return schedule.Next(after), nil
}

// Validate reports whether expr parses as a 5-field cron expression. The
// management layer calls this before persisting a definition; the scheduler
// calls it again defensively before every scheduling decision.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidExpression, expr, err)
	}
	return nil
}
