package status

import (
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/schedule"
)

// Derived labels reported to API consumers on top of the stored statuses.
const (
	LabelStarted = "started"
	LabelGrace   = "grace"
)

// State is the result of resolving a check at an instant: the presentation
// label plus the instant at which the alerting loop must look again.
// AlertAfter is nil when no further transition is scheduled.
type State struct {
	Label      string
	AlertAfter *time.Time
}

// Storage collapses the label to the value stored in the status column.
// "started" and "grace" are both stored as "up".
func (s State) Storage() string {
	switch s.Label {
	case LabelStarted, LabelGrace:
		return models.StatusUp
	default:
		return s.Label
	}
}

// Resolve computes the current state of a check from its fields and the
// given instant. It consults neither the clock nor the store; the whole
// monitoring semantics is a function of its two arguments.
func Resolve(check *models.Check, now time.Time) (State, error) {
	if check.Status == models.StatusPaused {
		return State{Label: models.StatusPaused}, nil
	}
	if check.NPings == 0 {
		return State{Label: models.StatusNew}, nil
	}
	if check.Status == models.StatusDown {
		// Already down: the nag loop owns it until a ping or an operator
		// brings it back.
		return State{Label: models.StatusDown}, nil
	}

	ref := check.LastPing
	running := check.Running()
	if running {
		ref = check.LastStart
	}
	if ref == nil {
		return State{Label: models.StatusNew}, nil
	}

	expected, err := schedule.NextExpected(check, *ref)
	if err != nil {
		return State{}, err
	}
	deadline := expected.Add(check.GraceDuration())

	switch {
	case now.Before(expected):
		label := models.StatusUp
		if running {
			label = LabelStarted
		}
		return State{Label: label, AlertAfter: &deadline}, nil
	case now.Before(deadline):
		label := LabelGrace
		if running {
			label = LabelStarted
		}
		return State{Label: label, AlertAfter: &deadline}, nil
	default:
		return State{Label: models.StatusDown}, nil
	}
}

// DownAfter returns the instant at which the check flips down, for use as
// the creation time of timeout flips. It is the deadline belonging to the
// current run or idle period.
func DownAfter(check *models.Check) (time.Time, error) {
	ref := check.LastPing
	if check.Running() {
		ref = check.LastStart
	}
	if ref == nil {
		return time.Time{}, nil
	}
	expected, err := schedule.NextExpected(check, *ref)
	if err != nil {
		return time.Time{}, err
	}
	return expected.Add(check.GraceDuration()), nil
}
