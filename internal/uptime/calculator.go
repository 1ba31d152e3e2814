package uptime

import (
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Stats represents availability statistics for a check over a period,
// reconstructed from its flip history.
type Stats struct {
	CheckCode        string  `json:"check_code"`
	UptimePercentage float64 `json:"uptime_percentage"`
	DownEvents       int     `json:"down_events"`
	TotalDownSeconds float64 `json:"total_down_seconds"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
}

// Calculate reconstructs the share of the period the check spent up by
// replaying its status transitions. New and paused stretches count as up,
// so a freshly created check starts at 100%.
func Calculate(db *gorm.DB, check *models.Check, period time.Duration) (*Stats, error) {
	endTime := time.Now().UTC()
	startTime := endTime.Add(-period)

	var flips []models.Flip
	err := db.Where("owner_id = ? AND created >= ?", check.ID, startTime).
		Order("created").
		Find(&flips).Error
	if err != nil {
		return nil, err
	}

	// Status at the window start is the outcome of the last flip before it.
	var before models.Flip
	statusAtStart := check.Status
	err = db.Where("owner_id = ? AND created < ?", check.ID, startTime).
		Order("created DESC").
		First(&before).Error
	switch err {
	case nil:
		statusAtStart = before.NewStatus
	case gorm.ErrRecordNotFound:
		if len(flips) > 0 {
			statusAtStart = flips[0].OldStatus
		}
	default:
		return nil, err
	}

	var totalDown time.Duration
	downEvents := 0
	cursor := startTime
	current := statusAtStart

	for i := range flips {
		flip := &flips[i]
		if current == models.StatusDown {
			totalDown += flip.Created.Sub(cursor)
		}
		if flip.NewStatus == models.StatusDown && flip.OldStatus != models.StatusDown {
			downEvents++
		}
		cursor = flip.Created
		current = flip.NewStatus
	}
	if current == models.StatusDown {
		totalDown += endTime.Sub(cursor)
	}

	uptimePercentage := 100.0
	if period > 0 {
		uptimePercentage = (1 - totalDown.Seconds()/period.Seconds()) * 100
	}

	return &Stats{
		CheckCode:        check.Code,
		UptimePercentage: uptimePercentage,
		DownEvents:       downEvents,
		TotalDownSeconds: totalDown.Seconds(),
		StartTime:        startTime.Format(time.RFC3339),
		EndTime:          endTime.Format(time.RFC3339),
	}, nil
}
