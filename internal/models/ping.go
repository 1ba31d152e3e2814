package models

import "time"

// Ping kinds. The empty string marks a plain success ping, matching the
// wire format used by badge and API consumers.
const (
	PingSuccess = ""
	PingStart   = "start"
	PingFail    = "fail"
	PingLog     = "log"
	PingIgn     = "ign"
)

// InlineBodyLimit is the largest ping body stored in the database.
// Bigger bodies go to object storage.
const InlineBodyLimit = 100

// Ping represents one heartbeat event received for a check
type Ping struct {
	ID      uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	CheckID uint      `json:"-" gorm:"not null;index:idx_ping_check_created,priority:1"`
	N       int       `json:"n" gorm:"not null"`
	Kind    string    `json:"kind"`
	Created time.Time `json:"created" gorm:"not null;index:idx_ping_check_created,priority:2"`

	Scheme     string `json:"scheme" gorm:"default:'http'"` // http, https or email
	RemoteAddr string `json:"remote_addr"`
	Method     string `json:"method"`
	UserAgent  string `json:"ua"`
	ExitStatus *int   `json:"exit_status"`
	RID        string `json:"rid" gorm:"size:36"` // client-supplied run id

	Body       string `json:"-" gorm:"type:text"`
	ObjectSize int64  `json:"object_size"` // set when the body lives in object storage

	Check Check `json:"-" gorm:"foreignKey:CheckID"`
}

// TableName specifies the table name for Ping
func (Ping) TableName() string {
	return "pings"
}

// HasBody reports whether any body was captured, inline or offloaded.
func (p *Ping) HasBody() bool {
	return p.Body != "" || p.ObjectSize > 0
}
