package reports

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/status"
)

// Sender mails periodic status summaries. It shares the status resolver
// with the alerting loop so the report shows the same labels the API
// would.
type Sender struct {
	db   *gorm.DB
	smtp config.SMTPConfig
	to   string
}

// New creates a report sender. Reports go to the address configured on
// the sender; per-check recipients stay on their notification channels.
func New(db *gorm.DB, smtpCfg config.SMTPConfig, to string) *Sender {
	return &Sender{db: db, smtp: smtpCfg, to: to}
}

// RunLoop sends a report every interval until the context is cancelled.
func (s *Sender) RunLoop(ctx context.Context, interval time.Duration) error {
	log.Printf("sendreports is now running (interval %s)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SendOnce(); err != nil {
				log.Printf("Failed to send report: %v", err)
			}
		}
	}
}

// SendOnce composes and mails a single summary of all checks.
func (s *Sender) SendOnce() error {
	body, anyDown, err := s.compose(time.Now().UTC())
	if err != nil {
		return err
	}

	subject := "Pulsewatch report: all checks up"
	if anyDown {
		subject = "Pulsewatch report: some checks are DOWN"
	}

	return s.mail(subject, body)
}

// compose renders the report body and reports whether any check is down.
func (s *Sender) compose(now time.Time) (string, bool, error) {
	var checks []models.Check
	if err := s.db.Order("name").Find(&checks).Error; err != nil {
		return "", false, err
	}

	body := fmt.Sprintf("Status of %d checks as of %s:\n\n", len(checks), now.Format(time.RFC1123))
	anyDown := false

	for i := range checks {
		check := &checks[i]
		label := check.Status
		if state, err := status.Resolve(check, now); err == nil {
			label = state.Label
		}
		if label == models.StatusDown {
			anyDown = true
		}

		name := check.Name
		if name == "" {
			name = check.Code
		}
		line := fmt.Sprintf("  %-40s %s", name, label)
		if check.LastPing != nil {
			line += fmt.Sprintf(" (last ping %s ago)", now.Sub(*check.LastPing).Round(time.Minute))
		}
		body += line + "\n"
	}

	return body, anyDown, nil
}

func (s *Sender) mail(subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\n", s.smtp.From)
	msg += fmt.Sprintf("To: %s\r\n", s.to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/plain; charset=UTF-8\r\n"
	msg += "\r\n"
	msg += body

	addr := fmt.Sprintf("%s:%d", s.smtp.Host, s.smtp.Port)

	var auth smtp.Auth
	if s.smtp.Username != "" && s.smtp.Password != "" {
		auth = smtp.PlainAuth("", s.smtp.Username, s.smtp.Password, s.smtp.Host)
	}

	if err := smtp.SendMail(addr, auth, s.smtp.From, []string{s.to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	return nil
}
