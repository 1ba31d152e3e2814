package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel is a notification target. Value is an opaque configuration blob
// interpreted by the transport registered for Kind.
type Channel struct {
	ID    uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	Code  string `json:"code" gorm:"uniqueIndex;size:36;not null"`
	Name  string `json:"name"`
	Kind  string `json:"kind" gorm:"not null;index"`
	Value string `json:"-" gorm:"type:text"`

	// Delivery status cache
	LastNotify         *time.Time `json:"last_notify"`
	LastNotifyDuration int64      `json:"last_notify_duration"` // milliseconds
	LastError          string     `json:"last_error"`
	Disabled           bool       `json:"disabled" gorm:"default:false"`
	EmailVerified      bool       `json:"email_verified" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Checks []Check `json:"-" gorm:"many2many:check_channels"`
}

// TableName specifies the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// BeforeCreate assigns the public identifier (GORM hook)
func (ch *Channel) BeforeCreate(tx *gorm.DB) error {
	if ch.Code == "" {
		ch.Code = uuid.NewString()
	}
	return nil
}

// CheckChannel links checks to channels. Neither side owns the other:
// deleting a check removes its join rows but leaves the channel in place.
type CheckChannel struct {
	CheckID   uint `gorm:"primaryKey"`
	ChannelID uint `gorm:"primaryKey"`
}

// TableName specifies the table name for CheckChannel
func (CheckChannel) TableName() string {
	return "check_channels"
}

// Notification is the receipt of one delivery attempt to one channel.
// The row is written before the transport call so a crashed dispatcher
// still leaves an audit trail.
type Notification struct {
	ID          uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Code        string    `json:"code" gorm:"column:code_uuid;uniqueIndex;size:36;not null"`
	CheckID     uint      `json:"-" gorm:"column:owner_id;not null;index"`
	CheckStatus string    `json:"check_status" gorm:"not null"`
	ChannelID   uint      `json:"-" gorm:"not null;index"`
	Created     time.Time `json:"created" gorm:"not null"`
	Error       string    `json:"error"`

	Check   Check   `json:"-" gorm:"foreignKey:CheckID"`
	Channel Channel `json:"-" gorm:"foreignKey:ChannelID"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns the public identifier (GORM hook)
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.Code == "" {
		n.Code = uuid.NewString()
	}
	if n.Created.IsZero() {
		n.Created = time.Now().UTC()
	}
	return nil
}
