package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// ChannelsForCheck returns the enabled channels attached to a check,
// fastest responders first so slow integrations cannot delay fast ones.
// Channels that have never been notified sort ahead of the rest.
func ChannelsForCheck(db *gorm.DB, checkID uint) ([]models.Channel, error) {
	var channels []models.Channel
	err := db.
		Joins("INNER JOIN check_channels cc ON cc.channel_id = channels.id").
		Where("cc.check_id = ? AND channels.disabled = ?", checkID, false).
		Order("channels.last_notify_duration").
		Find(&channels).Error
	return channels, err
}

// RecordChannelSuccess updates the delivery cache after a successful send.
func RecordChannelSuccess(db *gorm.DB, channel *models.Channel, sentAt time.Time, took time.Duration) error {
	return db.Model(&models.Channel{}).
		Where("id = ?", channel.ID).
		Updates(map[string]interface{}{
			"last_notify":          sentAt,
			"last_notify_duration": took.Milliseconds(),
			"last_error":           "",
		}).Error
}

// RecordChannelError records a failed send. Permanent errors disable the
// channel so later flips skip it.
func RecordChannelError(db *gorm.DB, channel *models.Channel, message string, permanent bool) error {
	updates := map[string]interface{}{"last_error": message}
	if permanent {
		updates["disabled"] = true
	}
	return db.Model(&models.Channel{}).
		Where("id = ?", channel.ID).
		Updates(updates).Error
}
