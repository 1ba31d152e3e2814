package transport

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Discord posts alerts to a Discord webhook
type Discord struct {
	webhookURL string
	username   string
}

func init() {
	Register("discord", NewDiscord)
}

// NewDiscord builds a Discord transport from the channel config
func NewDiscord(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	d := &Discord{}
	d.webhookURL, _ = config["webhook_url"].(string)
	d.username, _ = config["username"].(string)

	if d.webhookURL == "" {
		return nil, fmt.Errorf("webhook_url is required")
	}
	if d.username == "" {
		d.username = "Pulsewatch"
	}

	return d, nil
}

func (d *Discord) IsNoop(status string) bool {
	return false
}

func (d *Discord) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	var color int
	switch msg.Status {
	case models.StatusUp:
		color = 0x00FF00
	case models.StatusDown:
		color = 0xFF0000
	default:
		color = 0x808080
	}

	embed := map[string]interface{}{
		"title":       msg.Title,
		"description": msg.Body,
		"color":       color,
		"timestamp":   msg.Time,
		"fields": []map[string]interface{}{
			{"name": "Check", "value": msg.CheckName, "inline": true},
			{"name": "Status", "value": flip.StatusText(), "inline": true},
		},
	}
	if msg.CheckURL != "" {
		embed["url"] = msg.CheckURL
	}

	payload := map[string]interface{}{
		"username": d.username,
		"embeds":   []interface{}{embed},
	}

	return postJSON(ctx, d.webhookURL, payload, nil)
}
