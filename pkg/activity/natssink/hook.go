// Package natssink publishes settings activity as JSON messages on NATS.
package natssink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when Hook.SubjectPrefix is empty.
const DefaultSubjectPrefix = "settings.activity"

// Publisher is the subset of *nats.Conn the hook needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Hook publishes each event to "<prefix>.<verb>".
type Hook struct {
	Publisher     Publisher
	SubjectPrefix string
}

// Message is the JSON payload written to NATS.
type Message struct {
	Verb       string         `json:"verb"`
	ActorID    string         `json:"actor_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Connect dials url and returns a hook publishing on the connection. The
// caller owns closing the returned connection.
func Connect(url, subjectPrefix string, opts ...nats.Option) (Hook, *nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("go-settings"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return Hook{}, nil, fmt.Errorf("natssink: connecting to %s: %w", url, err)
	}
	return Hook{Publisher: nc, SubjectPrefix: subjectPrefix}, nc, nil
}

// Subject returns the subject event is published on.
func (h Hook) Subject(event activity.Event) string {
	prefix := strings.Trim(strings.TrimSpace(h.SubjectPrefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + strings.TrimSpace(event.Verb)
}

// Notify implements activity.ActivityHook.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Publisher == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	data, err := json.Marshal(Message{
		Verb:       normalized.Verb,
		ActorID:    normalized.ActorID,
		UserID:     normalized.UserID,
		TenantID:   normalized.TenantID,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Metadata:   normalized.Metadata,
		OccurredAt: normalized.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("natssink: marshaling event: %w", err)
	}
	if err := h.Publisher.Publish(h.Subject(normalized), data); err != nil {
		return fmt.Errorf("natssink: publish: %w", err)
	}
	return nil
}
