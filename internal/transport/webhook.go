package transport

import (
	"context"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Webhook posts alert payloads to user-configured URLs. Separate URLs may
// be set per direction; a missing URL makes the transition a no-op.
type Webhook struct {
	urlDown string
	urlUp   string
	headers map[string]string
}

func init() {
	Register("webhook", NewWebhook)
}

// NewWebhook builds a webhook transport from the channel config
func NewWebhook(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	w := &Webhook{headers: make(map[string]string)}

	// A single webhook_url applies to both directions
	if url, _ := config["webhook_url"].(string); url != "" {
		w.urlDown = url
		w.urlUp = url
	}
	if url, _ := config["url_down"].(string); url != "" {
		w.urlDown = url
	}
	if url, _ := config["url_up"].(string); url != "" {
		w.urlUp = url
	}

	if custom, _ := config["headers"].(map[string]interface{}); custom != nil {
		for key, value := range custom {
			if strValue, ok := value.(string); ok {
				w.headers[key] = strValue
			}
		}
	}

	return w, nil
}

func (w *Webhook) urlFor(status string) string {
	if status == models.StatusUp {
		return w.urlUp
	}
	return w.urlDown
}

func (w *Webhook) IsNoop(status string) bool {
	return w.urlFor(status) == ""
}

func (w *Webhook) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	payload := map[string]interface{}{
		"title":      msg.Title,
		"body":       msg.Body,
		"check_name": msg.CheckName,
		"check_url":  msg.CheckURL,
		"status":     msg.Status,
		"repeat":     msg.Repeat,
		"time":       msg.Time,
	}

	return postJSON(ctx, w.urlFor(flip.NewStatus), payload, w.headers)
}
