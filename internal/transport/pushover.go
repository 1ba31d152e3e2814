package transport

import (
	"context"
	"fmt"
	"net/url"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Pushover sends alerts through the Pushover message API
type Pushover struct {
	userKey  string
	apiToken string
	priority int
	sound    string
	device   string
}

func init() {
	Register("pushover", NewPushover)
}

// NewPushover builds a Pushover transport from the channel config
func NewPushover(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	p := &Pushover{}
	p.userKey, _ = config["user_key"].(string)
	p.apiToken, _ = config["api_token"].(string)
	if priority, _ := config["priority"].(float64); priority != 0 {
		p.priority = int(priority)
	}
	p.sound, _ = config["sound"].(string)
	p.device, _ = config["device"].(string)

	if p.userKey == "" {
		return nil, fmt.Errorf("user_key is required")
	}
	if p.apiToken == "" {
		return nil, fmt.Errorf("api_token is required")
	}

	return p, nil
}

func (p *Pushover) IsNoop(status string) bool {
	return false
}

func (p *Pushover) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	priority := p.priority
	if priority == 0 && msg.Status == models.StatusDown {
		priority = 1
	}

	data := url.Values{}
	data.Set("token", p.apiToken)
	data.Set("user", p.userKey)
	data.Set("title", msg.Title)
	data.Set("message", FormatMessage(msg))
	data.Set("priority", fmt.Sprintf("%d", priority))

	if p.sound != "" {
		data.Set("sound", p.sound)
	}
	if p.device != "" {
		data.Set("device", p.device)
	}
	if msg.CheckURL != "" {
		data.Set("url", msg.CheckURL)
		data.Set("url_title", "View Check")
	}

	return postForm(ctx, "https://api.pushover.net/1/messages.json", data.Encode(), nil)
}
