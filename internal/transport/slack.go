package transport

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Slack posts alerts to a Slack incoming webhook
type Slack struct {
	webhookURL string
	channel    string
	username   string
}

func init() {
	Register("slack", NewSlack)
}

// NewSlack builds a Slack transport from the channel config
func NewSlack(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	s := &Slack{}
	s.webhookURL, _ = config["webhook_url"].(string)
	s.channel, _ = config["channel"].(string)
	s.username, _ = config["username"].(string)

	if s.webhookURL == "" {
		return nil, fmt.Errorf("webhook_url is required")
	}
	if s.username == "" {
		s.username = "Pulsewatch"
	}

	return s, nil
}

func (s *Slack) IsNoop(status string) bool {
	return false
}

func (s *Slack) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	var color, iconEmoji string
	switch msg.Status {
	case models.StatusUp:
		color = "good"
		iconEmoji = ":white_check_mark:"
	case models.StatusDown:
		color = "danger"
		iconEmoji = ":x:"
	default:
		color = "#808080"
		iconEmoji = ":information_source:"
	}

	fields := []map[string]interface{}{
		{"title": "Check", "value": msg.CheckName, "short": true},
		{"title": "Status", "value": flip.StatusText(), "short": true},
	}
	if msg.CheckURL != "" {
		fields = append(fields, map[string]interface{}{
			"title": "Details", "value": msg.CheckURL, "short": false,
		})
	}

	attachment := map[string]interface{}{
		"color":  color,
		"title":  msg.Title,
		"text":   msg.Body,
		"ts":     time.Now().Unix(),
		"footer": "Pulsewatch",
		"fields": fields,
	}

	payload := map[string]interface{}{
		"username":    s.username,
		"icon_emoji":  iconEmoji,
		"attachments": []interface{}{attachment},
	}
	if s.channel != "" {
		payload["channel"] = s.channel
	}

	return postJSON(ctx, s.webhookURL, payload, nil)
}
