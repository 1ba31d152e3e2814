package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Check statuses. "started" and "grace" are derived labels only and are
// never stored in the status column.
const (
	StatusNew    = "new"
	StatusUp     = "up"
	StatusDown   = "down"
	StatusPaused = "paused"
)

// Schedule kinds
const (
	KindSimple     = "simple"
	KindCron       = "cron"
	KindOnCalendar = "oncalendar"
)

// Check represents a monitored schedule
type Check struct {
	ID          uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	Code        string `json:"code" gorm:"uniqueIndex;size:36;not null"`
	Fingerprint string `json:"fingerprint" gorm:"uniqueIndex;size:20;not null"`
	Name        string `json:"name"`

	Kind     string `json:"kind" gorm:"default:'simple'"`
	Timeout  int    `json:"timeout" gorm:"default:86400"` // seconds, simple kind only
	Grace    int    `json:"grace" gorm:"default:3600"`    // seconds
	Schedule string `json:"schedule"`                     // cron or OnCalendar expression
	TZ       string `json:"tz" gorm:"default:'UTC'"`

	Status       string     `json:"status" gorm:"default:'new';index:idx_alert_after_status,priority:2"`
	LastPing     *time.Time `json:"last_ping"`
	LastStart    *time.Time `json:"last_start"`
	LastDuration int64      `json:"last_duration"` // milliseconds
	AlertAfter   *time.Time `json:"alert_after" gorm:"index:idx_alert_after_status,priority:1"`
	NPings       int        `json:"n_pings" gorm:"default:0"`
	ManualResume bool       `json:"manual_resume" gorm:"default:false"`

	// Ping filter policy
	Methods       string `json:"methods"`        // comma list of allowed HTTP methods, empty = any
	Subject       string `json:"subject"`        // regex applied to email subjects
	FilterSubject bool   `json:"filter_subject"` // apply keyword lists to email subject
	FilterBody    bool   `json:"filter_body"`    // apply keyword lists to body
	StartKw       string `json:"start_kw"`       // comma keyword list
	SuccessKw     string `json:"success_kw"`
	FailureKw     string `json:"failure_kw"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Pings         []Ping         `json:"-" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE"`
	Flips         []Flip         `json:"-" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE"`
	Notifications []Notification `json:"-" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE"`
	Channels      []Channel      `json:"-" gorm:"many2many:check_channels"`
}

// TableName specifies the table name for Check
func (Check) TableName() string {
	return "checks"
}

// BeforeCreate assigns the public identifiers (GORM hook)
func (c *Check) BeforeCreate(tx *gorm.DB) error {
	if c.Code == "" {
		c.Code = uuid.NewString()
	}
	if c.Fingerprint == "" {
		c.Fingerprint = NewFingerprint()
	}
	if c.Status == "" {
		c.Status = StatusNew
	}
	return nil
}

// Running reports whether a start ping is awaiting its matching
// success or fail ping.
func (c *Check) Running() bool {
	return c.LastStart != nil
}

// TimeoutDuration returns the simple-kind period as a duration.
func (c *Check) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GraceDuration returns the grace tolerance as a duration.
func (c *Check) GraceDuration() time.Duration {
	return time.Duration(c.Grace) * time.Second
}

// AllowsMethod reports whether the filter policy accepts the given
// HTTP method. An empty policy accepts everything.
func (c *Check) AllowsMethod(method string) bool {
	if c.Methods == "" {
		return true
	}
	for _, m := range strings.Split(c.Methods, ",") {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}

// NewFingerprint returns a short random identifier for badge URLs.
func NewFingerprint() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
