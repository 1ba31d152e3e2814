package transport

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Teams posts MessageCard payloads to a Microsoft Teams incoming webhook
type Teams struct {
	webhookURL string
}

func init() {
	Register("teams", NewTeams)
}

// NewTeams builds a Teams transport from the channel config
func NewTeams(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	t := &Teams{}
	t.webhookURL, _ = config["webhook_url"].(string)

	if t.webhookURL == "" {
		return nil, fmt.Errorf("webhook_url is required")
	}

	return t, nil
}

func (t *Teams) IsNoop(status string) bool {
	return false
}

func (t *Teams) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	themeColor := "00FF00"
	if msg.Status == models.StatusDown {
		themeColor = "FF0000"
	}

	facts := []map[string]string{
		{"name": "Check", "value": msg.CheckName},
		{"name": "Status", "value": flip.StatusText()},
		{"name": "Time", "value": msg.Time},
	}

	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": themeColor,
		"summary":    msg.Title,
		"sections": []map[string]interface{}{
			{
				"activityTitle": msg.Title,
				"text":          msg.Body,
				"facts":         facts,
			},
		},
		"potentialAction": []map[string]interface{}{
			{
				"@type":   "OpenUri",
				"name":    "View Check",
				"targets": []map[string]string{{"os": "default", "uri": msg.CheckURL}},
			},
		},
	}

	return postJSON(ctx, t.webhookURL, payload, nil)
}
