package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/objects"
)

// Transport delivers notifications for one channel kind
type Transport interface {
	// Notify delivers the alert for the flip. The notification row already
	// exists; implementations report failures through the returned error.
	Notify(ctx context.Context, flip *models.Flip, notification *models.Notification) error

	// IsNoop reports whether this channel ignores transitions to the given
	// status. Deterministic, no side effects.
	IsNoop(status string) bool
}

// Error is a typed transport failure. Permanent errors mean the provider
// revoked the integration (gone endpoint, revoked token) and the channel
// must be disabled.
type Error struct {
	Message   string
	Permanent bool
}

func (e *Error) Error() string {
	return e.Message
}

// Transient returns a retriable transport error.
func Transient(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Permanent returns a transport error that disables the channel.
func Permanent(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Permanent: true}
}

// IsPermanent reports whether the error carries the permanent flag.
func IsPermanent(err error) bool {
	if terr, ok := err.(*Error); ok {
		return terr.Permanent
	}
	return false
}

// Message is the rendered payload handed to providers
type Message struct {
	Title     string
	Body      string
	CheckName string
	CheckURL  string
	Status    string
	Time      string
	Repeat    bool // nag flips render "(repeat notification)"
}

// Factory builds a transport from a channel's configuration blob. The db
// handle lets summary-style transports enrich payloads with other down
// checks from the store.
type Factory func(db *gorm.DB, channel *models.Channel) (Transport, error)

// Registry maps channel kinds to factories
var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register registers a transport factory for a channel kind
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[kind] = factory
}

// New builds the transport for a channel, dispatching on its kind
func New(db *gorm.DB, channel *models.Channel) (Transport, error) {
	mu.RLock()
	factory, ok := registry[channel.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown channel kind: %s", channel.Kind)
	}
	return factory(db, channel)
}

// Kinds returns the registered channel kinds
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// SiteRoot is rendered into check detail links in payloads. Set once at
// startup from the configuration.
var SiteRoot = "http://localhost:8000"

// Objects resolves offloaded ping bodies for transports that quote ping
// content. Set once at startup; nil means bodies are inline-only.
var Objects *objects.Store

// BuildMessage renders the common payload for a flip. The owning check
// must be preloaded on the flip.
func BuildMessage(flip *models.Flip) *Message {
	check := &flip.Check
	name := check.Name
	if name == "" {
		name = check.Code
	}

	title := fmt.Sprintf("%s is %s", name, strings.ToUpper(flip.NewStatus))
	body := fmt.Sprintf("The check %q went %s.", name, flip.StatusText())

	return &Message{
		Title:     title,
		Body:      body,
		CheckName: name,
		CheckURL:  fmt.Sprintf("%s/checks/%s", SiteRoot, check.Code),
		Status:    flip.NewStatus,
		Time:      flip.Created.UTC().Format(time.RFC3339),
		Repeat:    flip.IsNag(),
	}
}

// FormatMessage renders a plain-text body with common details
func FormatMessage(msg *Message) string {
	body := msg.Body + "\n\n"
	body += fmt.Sprintf("Check: %s\n", msg.CheckName)
	body += fmt.Sprintf("Status: %s\n", msg.Status)
	if msg.Repeat {
		body += "This is a repeat notification.\n"
	}
	if msg.CheckURL != "" {
		body += fmt.Sprintf("Details: %s\n", msg.CheckURL)
	}
	body += fmt.Sprintf("Time: %s\n", msg.Time)
	return body
}

// parseValue decodes a channel's configuration blob. An empty blob yields
// an empty map, so providers fall back to their defaults.
func parseValue(channel *models.Channel) (map[string]interface{}, error) {
	if channel.Value == "" {
		return map[string]interface{}{}, nil
	}
	var config map[string]interface{}
	if err := json.Unmarshal([]byte(channel.Value), &config); err != nil {
		return nil, fmt.Errorf("bad channel config for %s: %w", channel.Code, err)
	}
	return config, nil
}

// statusEnabled reads the per-status opt-in flags ("up", "down") from a
// channel config. Missing flags default to enabled.
func statusEnabled(config map[string]interface{}, status string) bool {
	v, present := config[status]
	if !present {
		return true
	}
	enabled, ok := v.(bool)
	return !ok || enabled
}
