package transport

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// PagerDuty sends Events API v2 events: down transitions trigger an
// incident, up transitions resolve it. The check code doubles as the
// dedup key so repeats land on the same incident.
type PagerDuty struct {
	integrationKey string
	severity       string
}

func init() {
	Register("pagerduty", NewPagerDuty)
}

// NewPagerDuty builds a PagerDuty transport from the channel config
func NewPagerDuty(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	p := &PagerDuty{}
	p.integrationKey, _ = config["integration_key"].(string)
	p.severity, _ = config["severity"].(string)

	if p.integrationKey == "" {
		return nil, fmt.Errorf("integration_key is required")
	}

	return p, nil
}

func (p *PagerDuty) IsNoop(status string) bool {
	return false
}

func (p *PagerDuty) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	severity := p.severity
	if severity == "" {
		if msg.Status == models.StatusDown {
			severity = "critical"
		} else {
			severity = "info"
		}
	}

	eventAction := "trigger"
	if msg.Status == models.StatusUp {
		eventAction = "resolve"
	}

	payload := map[string]interface{}{
		"routing_key":  p.integrationKey,
		"event_action": eventAction,
		"dedup_key":    fmt.Sprintf("pulsewatch-%s", flip.Check.Code),
		"payload": map[string]interface{}{
			"summary":   msg.Title,
			"source":    "Pulsewatch",
			"severity":  severity,
			"timestamp": msg.Time,
			"custom_details": map[string]interface{}{
				"check":  msg.CheckName,
				"status": flip.StatusText(),
				"url":    msg.CheckURL,
			},
		},
	}

	return postJSON(ctx, "https://events.pagerduty.com/v2/enqueue", payload, nil)
}
