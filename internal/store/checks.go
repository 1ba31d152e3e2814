package store

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/status"
)

// DownChecks returns all checks currently down.
func DownChecks(db *gorm.DB) ([]models.Check, error) {
	var checks []models.Check
	err := db.Where("status = ?", models.StatusDown).Find(&checks).Error
	return checks, err
}

// OtherDownChecks returns down checks other than the given one, for
// transports that enrich payloads with a summary.
func OtherDownChecks(db *gorm.DB, except uint) ([]models.Check, error) {
	var checks []models.Check
	err := db.Where("status = ? AND id <> ?", models.StatusDown, except).Find(&checks).Error
	return checks, err
}

// CheckByCode looks a check up by its public UUID.
func CheckByCode(db *gorm.DB, code string) (*models.Check, error) {
	var check models.Check
	err := db.Where("code = ?", code).First(&check).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &check, nil
}

// CheckByFingerprint looks a check up by its badge fingerprint.
func CheckByFingerprint(db *gorm.DB, fingerprint string) (*models.Check, error) {
	var check models.Check
	err := db.Where("fingerprint = ?", fingerprint).First(&check).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &check, nil
}

// ResumeCheck brings a down check back up by operator action, recording
// the transition. This is the only way out of a manual_resume hold. The
// deadline is recomputed against the check's schedule; leaving it empty
// would hide the check from the going-down scan until the next ping.
func ResumeCheck(db *gorm.DB, check *models.Check, now time.Time) (bool, error) {
	if check.Status != models.StatusDown {
		return false, nil
	}

	resumed := *check
	resumed.Status = models.StatusUp
	var alertAfter *time.Time
	if state, err := status.Resolve(&resumed, now); err == nil {
		alertAfter = state.AlertAfter
		if state.Storage() == models.StatusDown {
			// The deadline already passed while the check was held down.
			// Stamping the expired deadline hands the check straight back
			// to the going-down scan instead of parking it unmonitored.
			if deadline, derr := status.DownAfter(&resumed); derr == nil {
				alertAfter = &deadline
			}
		}
	} else {
		log.Printf("Cannot resolve %s: %v", check.Code, err)
	}

	return TransitionStatus(db, check, models.StatusDown, models.StatusUp, "", now, alertAfter)
}

// PauseCheck suspends monitoring for a check. Paused checks carry no
// deadline and never alert.
func PauseCheck(db *gorm.DB, check *models.Check) error {
	err := db.Model(&models.Check{}).
		Where("id = ?", check.ID).
		Updates(map[string]interface{}{
			"status":      models.StatusPaused,
			"alert_after": nil,
		}).Error
	if err != nil {
		return err
	}
	check.Status = models.StatusPaused
	check.AlertAfter = nil
	return nil
}

// DeleteCheck removes a check and everything it owns: pings, flips,
// notifications and join rows. Channels are shared and stay in place.
func DeleteCheck(db *gorm.DB, check *models.Check) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("check_id = ?", check.ID).Delete(&models.Ping{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", check.ID).Delete(&models.Flip{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", check.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("check_id = ?", check.ID).Delete(&models.CheckChannel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Check{}, check.ID).Error
	})
}

// UpdateAlertAfter refreshes the deadline of a check that did not change
// status, guarded by the same compare-and-set as transitions.
func UpdateAlertAfter(db *gorm.DB, check *models.Check, status string, alertAfter *time.Time) error {
	return db.Model(&models.Check{}).
		Where("id = ? AND status = ?", check.ID, status).
		Update("alert_after", alertAfter).Error
}
