package store

import (
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// PingRetention is how many pings are kept per check. Older pings are
// pruned opportunistically on ping writes.
const PingRetention = 100

// LatestPing returns the most recent ping of a check, or nil.
func LatestPing(db *gorm.DB, checkID uint) (*models.Ping, error) {
	var ping models.Ping
	err := db.Where("check_id = ?", checkID).
		Order("n DESC").
		First(&ping).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ping, nil
}

// PrunePings drops pings that have fallen out of the check's retention
// window. Returns the number of rows removed.
func PrunePings(db *gorm.DB, check *models.Check) (int64, error) {
	if check.NPings <= PingRetention {
		return 0, nil
	}
	res := db.Where("check_id = ? AND n <= ?", check.ID, check.NPings-PingRetention).
		Delete(&models.Ping{})
	return res.RowsAffected, res.Error
}
