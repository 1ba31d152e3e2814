package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Telegram sends alerts via the Telegram Bot API. A 403 from the API means
// the user blocked the bot, which is treated as permanent.
type Telegram struct {
	botToken string
	chatID   string
	silent   bool
}

func init() {
	Register("telegram", NewTelegram)
}

// NewTelegram builds a Telegram transport from the channel config
func NewTelegram(db *gorm.DB, channel *models.Channel) (Transport, error) {
	config, err := parseValue(channel)
	if err != nil {
		return nil, err
	}

	t := &Telegram{}
	t.botToken, _ = config["bot_token"].(string)
	t.chatID, _ = config["chat_id"].(string)
	t.silent, _ = config["disable_notification"].(bool)

	if t.botToken == "" {
		return nil, fmt.Errorf("bot_token is required")
	}
	if t.chatID == "" {
		return nil, fmt.Errorf("chat_id is required")
	}

	return t, nil
}

func (t *Telegram) IsNoop(status string) bool {
	return false
}

func (t *Telegram) Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error {
	msg := BuildMessage(flip)

	var statusEmoji string
	switch msg.Status {
	case models.StatusUp:
		statusEmoji = "✅"
	case models.StatusDown:
		statusEmoji = "❌"
	default:
		statusEmoji = "ℹ️"
	}

	text := fmt.Sprintf("<b>%s %s</b>\n\n", statusEmoji, msg.Title)
	text += fmt.Sprintf("%s\n\n", msg.Body)
	text += fmt.Sprintf("<b>Check:</b> %s\n", msg.CheckName)
	text += fmt.Sprintf("<b>Status:</b> %s\n", flip.StatusText())
	text += fmt.Sprintf("<b>Time:</b> %s", msg.Time)

	payload := map[string]interface{}{
		"chat_id":              t.chatID,
		"text":                 text,
		"parse_mode":           "HTML",
		"disable_notification": t.silent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Transient("failed to marshal payload: %v", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(body)))
	if err != nil {
		return Transient("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Transient("request failed: %v", err)
	}
	defer resp.Body.Close()

	// A blocked bot cannot ever deliver again
	if resp.StatusCode == http.StatusForbidden {
		return Permanent("bot blocked by the user")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusToError(resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Transient("failed to decode response: %v", err)
	}
	if !result.OK {
		return Transient("telegram API error: %s", result.Description)
	}

	return nil
}
