package cronexpr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		after   time.Time
		expects time.Time
	}{
		{
			name:    "daily midnight rolls to next day",
			expr:    "0 0 * * *",
			after:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			expects: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "next quarter-hour mark",
			expr:    "*/15 * * * *",
			after:   time.Date(2024, 1, 1, 10, 7, 0, 0, time.UTC),
			expects: time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC),
		},
		{
			name:    "strictly after an exact hit",
			expr:    "0 0 * * *",
			after:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			expects: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "yearly boundary",
			expr:    "0 0 1 1 *",
			after:   time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC),
			expects: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "next monday morning",
			expr:    "0 9 * * 1",
			after:   time.Date(2025, 6, 20, 8, 59, 0, 0, time.UTC),
			expects: time.Date(2025, 6, 23, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Next(tt.expr, tt.after)
			require.NoError(t, err)
			assert.True(t, next.Equal(tt.expects), "Next(%q, %v) = %v; want %v", tt.expr, tt.after, next, tt.expects)
			assert.True(t, next.After(tt.after), "next fire must be strictly after the reference instant")
		})
	}
}

func TestNext_InvalidExpression(t *testing.T) {
	tests := []string{
		"not a cron",
		"* * * *",
		"61 * * * *",
		"* * * * * *",
		"",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Next(expr, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidExpression))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.NoError(t, Validate("0 3 * * 0"))
	assert.NoError(t, Validate("30 8 1,15 * 1-5"))

	err := Validate("99 * * * *")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidExpression))
}
