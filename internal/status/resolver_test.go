package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func simpleCheck(timeout, grace int) *models.Check {
	return &models.Check{
		Kind:    models.KindSimple,
		Timeout: timeout,
		Grace:   grace,
		Status:  models.StatusUp,
		NPings:  1,
	}
}

func at(offset time.Duration) *time.Time {
	ts := t0.Add(offset)
	return &ts
}

func TestResolveTable(t *testing.T) {
	tests := []struct {
		name           string
		check          *models.Check
		now            time.Time
		wantLabel      string
		wantStorage    string
		wantAlertAfter *time.Time
	}{
		{
			name:      "paused stays paused",
			check:     &models.Check{Status: models.StatusPaused, NPings: 5},
			now:       t0,
			wantLabel: models.StatusPaused, wantStorage: models.StatusPaused,
		},
		{
			name:      "no pings yet",
			check:     &models.Check{Status: models.StatusNew},
			now:       t0,
			wantLabel: models.StatusNew, wantStorage: models.StatusNew,
		},
		{
			name: "down stays down until pinged",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				c.Status = models.StatusDown
				c.LastPing = at(-time.Hour)
				return c
			}(),
			now:       t0,
			wantLabel: models.StatusDown, wantStorage: models.StatusDown,
		},
		{
			name: "on time",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				c.LastPing = at(0)
				return c
			}(),
			now:       t0.Add(30 * time.Second),
			wantLabel: models.StatusUp, wantStorage: models.StatusUp,
			wantAlertAfter: at(90 * time.Second),
		},
		{
			name: "inside grace",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				c.LastPing = at(0)
				return c
			}(),
			now:       t0.Add(75 * time.Second),
			wantLabel: LabelGrace, wantStorage: models.StatusUp,
			wantAlertAfter: at(90 * time.Second),
		},
		{
			name: "past deadline",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				c.LastPing = at(0)
				return c
			}(),
			now:       t0.Add(91 * time.Second),
			wantLabel: models.StatusDown, wantStorage: models.StatusDown,
		},
		{
			name: "running reports started",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				c.LastPing = at(-time.Hour)
				c.LastStart = at(0)
				return c
			}(),
			now:       t0.Add(10 * time.Second),
			wantLabel: LabelStarted, wantStorage: models.StatusUp,
			wantAlertAfter: at(90 * time.Second),
		},
		{
			name: "running uses last_start not last_ping",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				// last_ping is ancient; the running deadline still governs
				c.LastPing = at(-24 * time.Hour)
				c.LastStart = at(0)
				return c
			}(),
			now:       t0.Add(80 * time.Second),
			wantLabel: LabelStarted, wantStorage: models.StatusUp,
			wantAlertAfter: at(90 * time.Second),
		},
		{
			name: "running past deadline",
			check: func() *models.Check {
				c := simpleCheck(60, 30)
				c.LastPing = at(-time.Hour)
				c.LastStart = at(0)
				return c
			}(),
			now:       t0.Add(2 * time.Minute),
			wantLabel: models.StatusDown, wantStorage: models.StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := Resolve(tt.check, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, state.Label)
			assert.Equal(t, tt.wantStorage, state.Storage())
			if tt.wantAlertAfter == nil {
				assert.Nil(t, state.AlertAfter)
			} else {
				require.NotNil(t, state.AlertAfter)
				assert.True(t, tt.wantAlertAfter.Equal(*state.AlertAfter),
					"want %s, got %s", tt.wantAlertAfter, state.AlertAfter)
			}
		})
	}
}

func TestResolveTimeoutScenario(t *testing.T) {
	// timeout=60s grace=30s, one success ping at t=0
	check := simpleCheck(60, 30)
	check.LastPing = at(0)

	// At t=89s the check is in grace, deadline 90s
	state, err := Resolve(check, t0.Add(89*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, state.Storage())
	require.NotNil(t, state.AlertAfter)
	assert.True(t, t0.Add(90*time.Second).Equal(*state.AlertAfter))

	// At t=91s it is down with no further deadline
	state, err = Resolve(check, t0.Add(91*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, state.Label)
	assert.Nil(t, state.AlertAfter)
}

func TestResolveCronCheck(t *testing.T) {
	check := &models.Check{
		Kind:     models.KindCron,
		Schedule: "0 * * * *", // top of every hour
		TZ:       "UTC",
		Grace:    300,
		Status:   models.StatusUp,
		NPings:   1,
		LastPing: at(0), // 12:00
	}

	// Next expected 13:00, deadline 13:05
	state, err := Resolve(check, t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, state.Label)
	require.NotNil(t, state.AlertAfter)
	assert.True(t, t0.Add(65*time.Minute).Equal(*state.AlertAfter))

	state, err = Resolve(check, t0.Add(66*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, state.Label)
}

func TestResolveBadSchedule(t *testing.T) {
	check := &models.Check{
		Kind:     models.KindCron,
		Schedule: "* * *",
		TZ:       "UTC",
		Status:   models.StatusUp,
		NPings:   1,
		LastPing: at(0),
	}
	_, err := Resolve(check, t0)
	assert.Error(t, err)
}

func TestDownAfterMatchesDeadline(t *testing.T) {
	check := simpleCheck(60, 30)
	check.LastPing = at(0)

	deadline, err := DownAfter(check)
	require.NoError(t, err)
	assert.True(t, t0.Add(90*time.Second).Equal(deadline))

	// For a running check the deadline follows the start.
	check.LastStart = at(10 * time.Second)
	deadline, err = DownAfter(check)
	require.NoError(t, err)
	assert.True(t, t0.Add(100*time.Second).Equal(deadline))
}
