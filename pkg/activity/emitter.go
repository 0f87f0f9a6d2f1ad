package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "settings"

// Config controls emission. It is usually filled from application config.
type Config struct {
	Enabled bool
	Channel string
	// OnError receives hook failures. Emit still returns them.
	OnError func(Event, error)
}

// Emitter applies defaults and forwards events to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	onError func(Event, error)
}

// NewEmitter drops nil hooks and is disabled when none remain.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	kept := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   kept,
		enabled: cfg.Enabled && len(kept) > 0,
		channel: channel,
		onError: cfg.OnError,
	}
}

// Enabled reports whether Emit will reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit delivers event. A nil or disabled emitter is a no-op.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	err := e.hooks.Notify(ctx, event)
	if err != nil && e.onError != nil {
		e.onError(event, err)
	}
	return err
}
