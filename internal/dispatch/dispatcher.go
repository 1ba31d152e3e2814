package dispatch

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/transport"
)

// NotifyTimeout bounds a single transport call.
const NotifyTimeout = 15 * time.Second

// Dispatcher drains unprocessed flips and fans each one out to the
// channels attached to its check.
type Dispatcher struct {
	db         *gorm.DB
	numWorkers int
}

// New creates a dispatcher with the given fan-out pool size
func New(db *gorm.DB, numWorkers int) *Dispatcher {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Dispatcher{db: db, numWorkers: numWorkers}
}

// ProcessOne claims and dispatches a single unprocessed flip. Returns true
// when a flip was handled and the caller should continue right away, false
// when there is currently no work.
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	flips, err := store.UnprocessedFlips(d.db, 1)
	if err != nil {
		return false, err
	}
	if len(flips) == 0 {
		return false, nil
	}

	flip := &flips[0]

	// Claiming first makes dispatch at-most-once per flip: a peer worker
	// that loses the update moves on, and a flip is never re-dispatched.
	claimed, err := store.ClaimFlip(d.db, flip, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if !claimed {
		// Another sendalerts process got there first.
		return true, nil
	}

	d.dispatch(ctx, flip)
	return true, nil
}

// Drain processes flips until none remain or the context is cancelled.
func (d *Dispatcher) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		busy, err := d.ProcessOne(ctx)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
	}
}

// dispatch fans one flip out to its selected channels concurrently. Each
// channel is independent; one transport's failure never affects another's.
func (d *Dispatcher) dispatch(ctx context.Context, flip *models.Flip) {
	check := &flip.Check
	log.Printf("%s goes %s", check.Code, flip.StatusText())

	channels, err := store.ChannelsForCheck(d.db, flip.CheckID)
	if err != nil {
		log.Printf("Failed to load channels for %s: %v", check.Code, err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.numWorkers)

	for i := range channels {
		channel := &channels[i]

		t, err := transport.New(d.db, channel)
		if err != nil {
			log.Printf("  %.8s (%s) skipped: %v", channel.Code, channel.Kind, err)
			continue
		}
		if t.IsNoop(flip.NewStatus) {
			continue
		}

		g.Go(func() error {
			d.notifyChannel(gctx, flip, channel, t)
			return nil
		})
	}

	g.Wait()
}

// notifyChannel performs one delivery attempt and records its outcome.
// The notification row is written before the transport call so a crashed
// dispatcher still leaves an audit trail.
func (d *Dispatcher) notifyChannel(ctx context.Context, flip *models.Flip, channel *models.Channel, t transport.Transport) {
	notification := models.Notification{
		CheckID:     flip.CheckID,
		ChannelID:   channel.ID,
		CheckStatus: flip.NewStatus,
		Created:     time.Now().UTC(),
	}
	if err := d.db.Create(&notification).Error; err != nil {
		log.Printf("  %.8s (%s) failed to create notification: %v", channel.Code, channel.Kind, err)
		return
	}

	// The call survives loop shutdown for up to the per-call timeout, so
	// an alert that is already on the wire can finish.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifyTimeout)
	defer cancel()

	start := time.Now()
	err := t.Notify(callCtx, flip, &notification)
	took := time.Since(start)
	metrics.NotifySeconds.WithLabelValues(channel.Kind).Observe(took.Seconds())

	if err == nil {
		metrics.Notifications.WithLabelValues(channel.Kind, "ok").Inc()
		if derr := store.RecordChannelSuccess(d.db, channel, time.Now().UTC(), took); derr != nil {
			log.Printf("  %.8s (%s) failed to record success: %v", channel.Code, channel.Kind, derr)
		}
		log.Printf("  %.8s (%s) OK in %.1fs", channel.Code, channel.Kind, took.Seconds())
		return
	}

	permanent := transport.IsPermanent(err)
	outcome := "error"
	if permanent {
		outcome = "disabled"
	}
	metrics.Notifications.WithLabelValues(channel.Kind, outcome).Inc()

	if derr := d.db.Model(&models.Notification{}).
		Where("id = ?", notification.ID).
		Update("error", err.Error()).Error; derr != nil {
		log.Printf("  %.8s (%s) failed to record error: %v", channel.Code, channel.Kind, derr)
	}
	if derr := store.RecordChannelError(d.db, channel, err.Error(), permanent); derr != nil {
		log.Printf("  %.8s (%s) failed to update channel: %v", channel.Code, channel.Kind, derr)
	}

	log.Printf("  %.8s (%s) Error in %.1fs: %v", channel.Code, channel.Kind, took.Seconds(), err)
}
