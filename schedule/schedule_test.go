package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/schedule"
)

func TestNew_InvalidExpression(t *testing.T) {
	_, err := schedule.New("* * * *")
	require.ErrorIs(t, err, schedule.ErrInvalidExpression)

	_, err = schedule.New("")
	require.ErrorIs(t, err, schedule.ErrEmptyExpression)
}

func TestCron_Next_EveryMinute(t *testing.T) {
	c, err := schedule.New("* * * * *", schedule.WithLocation(time.UTC))
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 10, 30, 15, 0, time.UTC)
	next := c.Next(context.Background(), now)

	assert.Equal(t, time.Date(2026, 1, 1, 10, 31, 0, 0, time.UTC), next)
}

func TestCron_Next_FixedHourAndMinute(t *testing.T) {
	c, err := schedule.New("30 4 * * *", schedule.WithLocation(time.UTC))
	require.NoError(t, err)

	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	next := c.Next(context.Background(), now)

	assert.Equal(t, time.Date(2026, 3, 6, 4, 30, 0, 0, time.UTC), next)
}

func TestCron_Next_Weekday(t *testing.T) {
	// every Monday at 09:00
	c, err := schedule.New("0 9 * * 1", schedule.WithLocation(time.UTC))
	require.NoError(t, err)

	// 2026-01-01 is a Thursday
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := c.Next(context.Background(), now)

	assert.Equal(t, time.Monday, next.Weekday())
	assert.True(t, next.After(now))
}

func TestCron_Next_StepAndRange(t *testing.T) {
	c, err := schedule.New("*/15 9-17 * * *", schedule.WithLocation(time.UTC))
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 9, 1, 0, 0, time.UTC)
	next := c.Next(context.Background(), now)

	assert.Equal(t, time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC), next)
}
