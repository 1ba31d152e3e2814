package alerting

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/dispatch"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/status"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

const (
	// tickInterval is how long an idle cycle sleeps.
	tickInterval = 2 * time.Second

	// Storage outage backoff bounds.
	backoffInitial = 100 * time.Millisecond
	backoffMax     = 30 * time.Second

	// NagInterval is how often a check that stays down is re-alerted.
	NagInterval = time.Hour
)

// Loop is the alerting engine: it turns expired deadlines into flips,
// re-alerts checks that stay down, and drains flips into the dispatcher.
type Loop struct {
	db         *gorm.DB
	dispatcher *dispatch.Dispatcher
}

// New creates an alerting loop
func New(db *gorm.DB, dispatcher *dispatch.Dispatcher) *Loop {
	return &Loop{db: db, dispatcher: dispatcher}
}

// Run executes cycles until the context is cancelled. Storage errors back
// off exponentially instead of crash-looping.
func (l *Loop) Run(ctx context.Context) error {
	log.Println("sendalerts is now running")
	backoff := backoffInitial

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := l.Cycle(ctx); err != nil {
			log.Printf("Alerting cycle failed: %v (retrying in %s)", err, backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
			continue
		}
		backoff = backoffInitial

		if !sleep(ctx, tickInterval) {
			return nil
		}
	}
}

// Cycle runs one pass: create flips for checks going down, create nag
// flips, then drain unprocessed flips into the dispatcher.
func (l *Loop) Cycle(ctx context.Context) error {
	// Create flips for any checks going down
	for {
		busy, err := l.HandleGoingDown(time.Now().UTC())
		if err != nil {
			return err
		}
		if !busy || ctx.Err() != nil {
			break
		}
	}

	// Create repeat flips for checks that have been down for a while
	if err := l.HandleNags(time.Now().UTC()); err != nil {
		return err
	}

	return l.dispatcher.Drain(ctx)
}

// HandleGoingDown processes a single check whose deadline has expired.
// Returns true when the main loop should continue right away, false when
// there was no work.
func (l *Loop) HandleGoingDown(now time.Time) (bool, error) {
	handled := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var checks []models.Check
		q := database.WithRowLock(
			tx.Where("alert_after < ?", now).
				Where("status NOT IN ?", []string{models.StatusDown, models.StatusPaused, models.StatusNew}).
				Order("alert_after").
				Limit(1),
		)
		if err := q.Find(&checks).Error; err != nil {
			return err
		}
		if len(checks) == 0 {
			return nil
		}
		check := &checks[0]
		handled = true

		oldStatus := check.Status
		state, err := status.Resolve(check, now)
		if err != nil {
			// The schedule no longer parses. Clear the deadline so the
			// loop stops tripping on this check; the next successful ping
			// recomputes it once the operator fixes the expression.
			log.Printf("Cannot resolve %s: %v", check.Code, err)
			return store.UpdateAlertAfter(tx, check, oldStatus, nil)
		}

		if state.Storage() != models.StatusDown {
			// Not down yet: refresh the deadline and move on.
			return store.UpdateAlertAfter(tx, check, oldStatus, state.AlertAfter)
		}

		flipTime, err := status.DownAfter(check)
		if err != nil {
			return err
		}

		flipped, err := store.TransitionStatus(tx, check, oldStatus, models.StatusDown,
			models.ReasonTimeout, flipTime, nil)
		if err != nil {
			return err
		}
		if flipped {
			metrics.FlipsCreated.WithLabelValues(models.ReasonTimeout).Inc()
		}
		// If nothing got updated, another worker got there first; either
		// way this cycle made progress.
		return nil
	})
	return handled, err
}

// HandleNags inserts a down→down repeat flip for every check that has
// been down for an hour since the event that started the current spell or
// the last nag. The gate reads flips, never notifications: a nag produces
// a down notification, so gating on notifications would block itself.
func (l *Loop) HandleNags(now time.Time) error {
	checks, err := store.DownChecks(l.db)
	if err != nil {
		return err
	}
	metrics.DownChecks.Set(float64(len(checks)))

	for i := range checks {
		check := &checks[i]
		event, err := store.LatestDownEvent(l.db, check.ID)
		if err != nil {
			return err
		}
		if event == nil {
			// No recorded start of this down spell; nothing to pace from.
			continue
		}
		if now.Sub(event.Created) < NagInterval {
			continue
		}
		if err := store.InsertNagFlip(l.db, check, now); err != nil {
			return err
		}
		metrics.FlipsCreated.WithLabelValues(models.ReasonNag).Inc()
		log.Printf("%s is still down, nagging", check.Code)
	}
	return nil
}

// sleep waits for d unless the context ends first. Returns false when the
// context was cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
