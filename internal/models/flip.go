package models

import "time"

// Flip reasons. Recovery flips carry an empty reason.
const (
	ReasonTimeout = "timeout"
	ReasonFail    = "fail"
	ReasonNag     = "nag"
)

// FlipRetention is how long flips are kept before pruning.
const FlipRetention = 93 * 24 * time.Hour

// Flip is an immutable status-transition event. Flips are appended by the
// alerting loop and the ping writer, and consumed once by the dispatcher.
type Flip struct {
	ID        uint       `json:"-" gorm:"primaryKey;autoIncrement"`
	CheckID   uint       `json:"-" gorm:"column:owner_id;not null;index:idx_flip_check_created,priority:1"`
	Created   time.Time  `json:"created" gorm:"not null;index:idx_flip_check_created,priority:2"`
	Processed *time.Time `json:"processed" gorm:"index"`
	OldStatus string     `json:"old_status" gorm:"not null"`
	NewStatus string     `json:"new_status" gorm:"not null"`
	Reason    string     `json:"reason"`

	Check Check `json:"-" gorm:"foreignKey:CheckID"`
}

// TableName specifies the table name for Flip
func (Flip) TableName() string {
	return "flips"
}

// IsNag reports whether this flip is a repeat notification for a check
// that is still down.
func (f *Flip) IsNag() bool {
	return f.Reason == ReasonNag
}

// StatusText returns the status line rendered into notification payloads.
func (f *Flip) StatusText() string {
	if f.IsNag() {
		return f.NewStatus + " (repeat notification)"
	}
	return f.NewStatus
}
