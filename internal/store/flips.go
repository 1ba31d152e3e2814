package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// UnprocessedFlips returns flips awaiting dispatch, oldest first, with the
// owning check preloaded.
func UnprocessedFlips(db *gorm.DB, limit int) ([]models.Flip, error) {
	var flips []models.Flip
	err := db.Preload("Check").
		Where("processed IS NULL").
		Order("created").
		Limit(limit).
		Find(&flips).Error
	return flips, err
}

// ClaimFlip marks the flip as processed if nobody else got there first.
// Returns false when a peer worker already claimed it.
func ClaimFlip(db *gorm.DB, flip *models.Flip, now time.Time) (bool, error) {
	res := db.Model(&models.Flip{}).
		Where("id = ? AND processed IS NULL", flip.ID).
		Update("processed", now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	flip.Processed = &now
	return true, nil
}

// FlipHistory returns the most recent flips of a check, newest first.
func FlipHistory(db *gorm.DB, checkID uint, limit int) ([]models.Flip, error) {
	var flips []models.Flip
	err := db.Where("owner_id = ?", checkID).
		Order("created DESC").
		Limit(limit).
		Find(&flips).Error
	return flips, err
}

// LatestDownEvent returns the event that started the check's current down
// spell or the most recent nag, whichever is newer. The predicate runs over
// flips only; gating nags on down notifications would be self-referential,
// since every nag produces one.
func LatestDownEvent(db *gorm.DB, checkID uint) (*models.Flip, error) {
	var flip models.Flip
	err := db.Where("owner_id = ?", checkID).
		Where("reason = ? OR (old_status <> ? AND new_status = ?)",
			models.ReasonNag, models.StatusDown, models.StatusDown).
		Order("created DESC").
		First(&flip).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flip, nil
}

// TransitionStatus atomically moves the check from oldStatus to newStatus
// and appends the matching flip in one transaction. The compare-and-set on
// the status column makes concurrent workers lose cleanly: only the one
// that flips the row inserts a flip. Returns false when the row was gone
// or already transitioned.
func TransitionStatus(db *gorm.DB, check *models.Check, oldStatus, newStatus, reason string, flipTime time.Time, alertAfter *time.Time) (bool, error) {
	flipped := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Check{}).
			Where("id = ? AND status = ?", check.ID, oldStatus).
			Updates(map[string]interface{}{
				"status":      newStatus,
				"alert_after": alertAfter,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		flip := models.Flip{
			CheckID:   check.ID,
			Created:   flipTime,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Reason:    reason,
		}
		if err := tx.Create(&flip).Error; err != nil {
			return err
		}
		flipped = true
		return nil
	})
	if flipped {
		check.Status = newStatus
		check.AlertAfter = alertAfter
	}
	return flipped, err
}

// InsertNagFlip appends a down→down repeat-notification flip.
func InsertNagFlip(db *gorm.DB, check *models.Check, now time.Time) error {
	flip := models.Flip{
		CheckID:   check.ID,
		Created:   now,
		OldStatus: models.StatusDown,
		NewStatus: models.StatusDown,
		Reason:    models.ReasonNag,
	}
	return db.Create(&flip).Error
}

// PruneFlips removes flips past the retention window. Returns the number
// of rows removed.
func PruneFlips(db *gorm.DB, now time.Time) (int64, error) {
	cutoff := now.Add(-models.FlipRetention)
	res := db.Where("created < ?", cutoff).Delete(&models.Flip{})
	return res.RowsAffected, res.Error
}
