package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Ntfy publishes alerts to an ntfy topic (self-hosted or ntfy.sh)
type Ntfy struct {
	serverURL string
	topic     string
	priority  int
	username  string
	password  string
}

func init() {
	Register("ntfy", NewNtfy)
}

// NewNtfy builds an ntfy transport from the channel config
func NewNtfy(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	n := &Ntfy{}
	n.serverURL, _ = config["server_url"].(string)
	n.topic, _ = config["topic"].(string)
	if priority, _ := config["priority"].(float64); priority != 0 {
		n.priority = int(priority)
	}
	n.username, _ = config["username"].(string)
	n.password, _ = config["password"].(string)

	if n.serverURL == "" {
		n.serverURL = "https://ntfy.sh"
	}
	if n.topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	return n, nil
}

func (n *Ntfy) IsNoop(status string) bool {
	return false
}

func (n *Ntfy) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	priority := n.priority
	if priority == 0 {
		if msg.Status == models.StatusDown {
			priority = 4
		} else {
			priority = 3
		}
	}

	tags := "white_check_mark"
	if msg.Status == models.StatusDown {
		tags = "x,warning"
	}

	url := fmt.Sprintf("%s/%s", n.serverURL, n.topic)
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(FormatMessage(msg)))
	if err != nil {
		return Transient("failed to create request: %v", err)
	}

	req.Header.Set("Title", msg.Title)
	req.Header.Set("Priority", fmt.Sprintf("%d", priority))
	req.Header.Set("Tags", tags)
	if n.username != "" && n.password != "" {
		req.SetBasicAuth(n.username, n.password)
	}
	if msg.CheckURL != "" {
		req.Header.Set("Actions", fmt.Sprintf("view, View Check, %s", msg.CheckURL))
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Transient("request failed: %v", err)
	}
	defer resp.Body.Close()

	return statusToError(resp.StatusCode)
}
