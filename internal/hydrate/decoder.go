// Package hydrate turns loosely typed schema documents into typed structs.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the document a payload was read from.
type Context struct {
	// Source is the file path or name of the document.
	Source string
	// Format is the document syntax, such as yaml, toml or json.
	Format string
}

// PreHook rewrites the raw payload before it is decoded, e.g. to expand
// shorthand notation. A nil result keeps the payload it was given.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook checks or completes the decoded document.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder maps a payload onto T through its JSON field tags.
type Decoder[T any] struct {
	pre    []PreHook
	post   []PostHook[T]
	strict bool
}

// WithPreHook runs hook before decoding, in registration order.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

// WithPostHook runs hook on the decoded value, in registration order.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithDisallowUnknownFields rejects payload keys T has no field for.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// NewDecoder builds a Decoder.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode runs the pre-hooks on a copy of payload, decodes it into T and
// runs the post-hooks. payload itself is never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %q", ctx.Source)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: encode %q: %w", ctx.Source, err)
	}
	if len(d.pre) > 0 {
		var current map[string]any
		if err := json.Unmarshal(raw, &current); err != nil {
			return zero, fmt.Errorf("hydrate: copy %q: %w", ctx.Source, err)
		}
		for _, hook := range d.pre {
			next, err := hook(ctx, current)
			if err != nil {
				return zero, fmt.Errorf("hydrate: pre-hook for %q failed: %w", ctx.Source, err)
			}
			if next != nil {
				current = next
			}
		}
		if raw, err = json.Marshal(current); err != nil {
			return zero, fmt.Errorf("hydrate: encode %q: %w", ctx.Source, err)
		}
	}

	var result T
	dec := json.NewDecoder(bytes.NewReader(raw))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %q: %w", ctx.Source, err)
	}

	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %q failed: %w", ctx.Source, err)
		}
	}
	return result, nil
}
