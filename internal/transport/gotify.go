package transport

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Gotify pushes alerts to a self-hosted Gotify server
type Gotify struct {
	serverURL string
	appToken  string
	priority  int
}

func init() {
	Register("gotify", NewGotify)
}

// NewGotify builds a Gotify transport from the channel config
func NewGotify(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	g := &Gotify{}
	g.serverURL, _ = config["server_url"].(string)
	g.appToken, _ = config["app_token"].(string)
	if priority, _ := config["priority"].(float64); priority != 0 {
		g.priority = int(priority)
	}

	if g.serverURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	if g.appToken == "" {
		return nil, fmt.Errorf("app_token is required")
	}

	return g, nil
}

func (g *Gotify) IsNoop(status string) bool {
	return false
}

func (g *Gotify) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	priority := g.priority
	if priority == 0 {
		if msg.Status == models.StatusDown {
			priority = 8
		} else {
			priority = 5
		}
	}

	payload := map[string]interface{}{
		"title":    msg.Title,
		"message":  FormatMessage(msg),
		"priority": priority,
	}

	url := fmt.Sprintf("%s/message?token=%s", strings.TrimRight(g.serverURL, "/"), g.appToken)
	return postJSON(ctx, url, payload, nil)
}
