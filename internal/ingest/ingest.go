package ingest

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/objects"
	"github.com/pulsewatch/pulsewatch/internal/status"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Options carries the raw material of one incoming ping.
type Options struct {
	Kind       string // requested kind: "", "start", "fail", "log"
	Scheme     string // http, https or email
	RemoteAddr string
	Method     string
	UserAgent  string
	Subject    string // email subject, filter input
	ExitStatus *int
	RID        string
	Body       []byte
	Now        time.Time // zero means time.Now
}

// RecordPing appends a ping, updates the check's status cache and
// recomputes its alert deadline. Implements the transition rules the
// status resolver assumes: success clears a pending start and revives the
// check unless it is held down by manual_resume; fail drops it immediately
// and appends a flip; log and ign record history only.
func RecordPing(db *gorm.DB, objectStore *objects.Store, check *models.Check, opts Options) (*models.Ping, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.Truncate(time.Second)

	kind := effectiveKind(check, opts)

	// A duplicate delivery of the most recent ping must not create a
	// second ping or a second flip.
	if last, err := store.LatestPing(db, check.ID); err != nil {
		return nil, err
	} else if last != nil && isDuplicate(last, kind, opts, now) {
		return last, nil
	}

	var ping *models.Ping
	err := db.Transaction(func(tx *gorm.DB) error {
		var fresh models.Check
		if err := database.WithRowLock(tx).First(&fresh, check.ID).Error; err != nil {
			return err
		}

		fresh.NPings++
		p := models.Ping{
			CheckID:    fresh.ID,
			N:          fresh.NPings,
			Kind:       kind,
			Created:    now,
			Scheme:     opts.Scheme,
			RemoteAddr: opts.RemoteAddr,
			Method:     opts.Method,
			UserAgent:  opts.UserAgent,
			ExitStatus: opts.ExitStatus,
			RID:        opts.RID,
		}

		if len(opts.Body) > models.InlineBodyLimit && objectStore != nil {
			if err := objectStore.PutPingBody(context.Background(), fresh.Code, p.N, opts.Body); err != nil {
				// Body storage must not lose the ping itself.
				log.Printf("Failed to store ping body for %s: %v", fresh.Code, err)
			} else {
				p.ObjectSize = int64(len(opts.Body))
			}
		} else {
			p.Body = string(opts.Body)
		}

		oldStatus := fresh.Status
		var flip *models.Flip

		switch kind {
		case models.PingSuccess:
			fresh.LastPing = &now
			if fresh.LastStart != nil {
				fresh.LastDuration = now.Sub(*fresh.LastStart).Milliseconds()
				fresh.LastStart = nil
			}
			if oldStatus == models.StatusDown && fresh.ManualResume {
				// Held down until the operator resumes it explicitly.
			} else if oldStatus != models.StatusUp {
				fresh.Status = models.StatusUp
				if oldStatus == models.StatusDown {
					flip = &models.Flip{
						CheckID:   fresh.ID,
						Created:   now,
						OldStatus: oldStatus,
						NewStatus: models.StatusUp,
					}
				}
			}
		case models.PingStart:
			fresh.LastStart = &now
			if fresh.Status == models.StatusNew {
				fresh.Status = models.StatusUp
			}
		case models.PingFail:
			fresh.LastPing = &now
			fresh.LastStart = nil
			if oldStatus != models.StatusDown {
				fresh.Status = models.StatusDown
				flip = &models.Flip{
					CheckID:   fresh.ID,
					Created:   now,
					OldStatus: oldStatus,
					NewStatus: models.StatusDown,
					Reason:    models.ReasonFail,
				}
			}
		case models.PingLog, models.PingIgn:
			// History only.
		}

		if fresh.Status == models.StatusNew {
			fresh.Status = models.StatusUp
		}

		// Any ping recomputes the alert deadline.
		state, rerr := status.Resolve(&fresh, now)
		if rerr != nil {
			log.Printf("Cannot resolve %s: %v", fresh.Code, rerr)
			fresh.AlertAfter = nil
		} else {
			fresh.AlertAfter = state.AlertAfter
		}

		updates := map[string]interface{}{
			"n_pings":       fresh.NPings,
			"status":        fresh.Status,
			"last_ping":     fresh.LastPing,
			"last_start":    fresh.LastStart,
			"last_duration": fresh.LastDuration,
			"alert_after":   fresh.AlertAfter,
		}
		if err := tx.Model(&models.Check{}).Where("id = ?", fresh.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		if flip != nil {
			if err := tx.Create(flip).Error; err != nil {
				return err
			}
			if flip.Reason != "" {
				metrics.FlipsCreated.WithLabelValues(flip.Reason).Inc()
			}
		}

		*check = fresh
		ping = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PingsReceived.WithLabelValues(kindLabel(kind)).Inc()

	if _, err := PruneCheckPings(db, objectStore, check); err != nil {
		log.Printf("Failed to prune pings for %s: %v", check.Code, err)
	}

	return ping, nil
}

// PruneCheckPings drops pings beyond the check's retention window,
// removing their offloaded bodies from object storage first so the bucket
// does not accumulate orphans. Returns the number of rows removed.
func PruneCheckPings(db *gorm.DB, objectStore *objects.Store, check *models.Check) (int64, error) {
	if check.NPings <= store.PingRetention {
		return 0, nil
	}

	if objectStore != nil {
		var doomed []models.Ping
		err := db.Select("n").
			Where("check_id = ? AND n <= ? AND object_size > 0",
				check.ID, check.NPings-store.PingRetention).
			Find(&doomed).Error
		if err != nil {
			return 0, err
		}
		for _, p := range doomed {
			if err := objectStore.DeletePingBody(context.Background(), check.Code, p.N); err != nil {
				log.Printf("Failed to delete ping body %s/%d: %v", check.Code, p.N, err)
			}
		}
	}

	return store.PrunePings(db, check)
}

func isDuplicate(last *models.Ping, kind string, opts Options, now time.Time) bool {
	return last.Created.Equal(now) &&
		last.Kind == kind &&
		last.RID == opts.RID &&
		last.RemoteAddr == opts.RemoteAddr
}

func kindLabel(kind string) string {
	if kind == models.PingSuccess {
		return "success"
	}
	return kind
}
