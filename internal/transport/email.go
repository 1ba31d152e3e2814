package transport

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Email delivers alerts over SMTP. The channel config carries the server
// settings and per-direction opt-in flags; an unverified address never
// sends. Down alerts include the other currently-down checks so the
// recipient sees the whole picture in one mail.
type Email struct {
	db       *gorm.DB
	verified bool

	host     string
	port     int
	username string
	password string
	from     string
	to       string
	notifyUp bool
	notifyDn bool
}

func init() {
	Register("email", NewEmail)
}

// NewEmail builds an email transport from the channel config
func NewEmail(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	e := &Email{
		db:       db,
		verified: channel.EmailVerified,
		notifyUp: statusEnabled(config, models.StatusUp),
		notifyDn: statusEnabled(config, models.StatusDown),
	}

	e.host, _ = config["smtp_host"].(string)
	if e.host == "" {
		e.host = "localhost"
	}
	if port, _ := config["smtp_port"].(float64); port > 0 {
		e.port = int(port)
	} else {
		e.port = 25
	}
	e.username, _ = config["smtp_username"].(string)
	e.password, _ = config["smtp_password"].(string)
	e.from, _ = config["from_email"].(string)
	e.to, _ = config["to_email"].(string)

	if e.to == "" {
		return nil, fmt.Errorf("to_email is required")
	}
	if e.from == "" {
		e.from = "alerts@localhost"
	}

	return e, nil
}

func (e *Email) IsNoop(status string) bool {
	if !e.verified {
		return true
	}
	if status == models.StatusUp {
		return !e.notifyUp
	}
	return !e.notifyDn
}

// DownChecks returns the other checks currently down, for the summary
// section of down alerts.
func (e *Email) DownChecks(check *models.Check) ([]models.Check, error) {
	return store.OtherDownChecks(e.db, check.ID)
}

// LastPing returns the most recent ping of the flip's check, whose body is
// quoted in the mail.
func (e *Email) LastPing(flip *models.Flip) (*models.Ping, error) {
	return store.LatestPing(e.db, flip.CheckID)
}

// pingBody returns the ping's body text, reading it back from object
// storage when it was too big to store inline. A fetch failure drops the
// quote but never the alert.
func (e *Email) pingBody(ctx context.Context, flip *models.Flip, ping *models.Ping) string {
	if ping.Body != "" {
		return ping.Body
	}
	if ping.ObjectSize == 0 || Objects == nil {
		return ""
	}
	body, err := Objects.GetPingBody(ctx, flip.Check.Code, ping.N)
	if err != nil {
		log.Printf("Failed to fetch ping body %s/%d: %v", flip.Check.Code, ping.N, err)
		return ""
	}
	return string(body)
}

func (e *Email) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)
	body := FormatMessage(msg)

	if flip.NewStatus == models.StatusDown {
		if others, err := e.DownChecks(&flip.Check); err == nil && len(others) > 0 {
			body += "\nAlso currently down:\n"
			for _, c := range others {
				name := c.Name
				if name == "" {
					name = c.Code
				}
				body += fmt.Sprintf("  - %s\n", name)
			}
		}
		if ping, err := e.LastPing(flip); err == nil && ping != nil {
			if text := e.pingBody(ctx, flip, ping); text != "" {
				body += "\nLast ping body:\n" + text + "\n"
			}
		}
	}

	mail := fmt.Sprintf("From: %s\r\n", e.from)
	mail += fmt.Sprintf("To: %s\r\n", e.to)
	mail += fmt.Sprintf("Subject: %s\r\n", msg.Title)
	mail += "MIME-Version: 1.0\r\n"
	mail += "Content-Type: text/plain; charset=UTF-8\r\n"
	mail += "\r\n"
	mail += body

	recipients := strings.Split(e.to, ",")
	for i, r := range recipients {
		recipients[i] = strings.TrimSpace(r)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" && e.password != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := smtp.SendMail(addr, auth, e.from, recipients, []byte(mail)); err != nil {
		return Transient("failed to send email: %v", err)
	}

	return nil
}
