package state

import (
	"context"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/idgen"
	"github.com/goliatone/go-settings/pkg/activity"
)

// AnyLocation registers an UpdateFilter for every location.
const AnyLocation = "*"

// UpdateFilter rewrites sanitized values before they are written. values
// is keyed by storage key and only holds the location's saved fields.
type UpdateFilter func(ctx context.Context, location string, fields []settings.Field, values settings.Values) (settings.Values, error)

// SaveEvent is passed to SaveListeners after a successful write.
type SaveEvent struct {
	Op       string
	Location string
	ItemID   string
	// Values are the effective values of the location after the write.
	Values  settings.Values
	Changed []string
	Meta    Meta
}

// SaveListener observes completed writes. It runs synchronously after the
// store has accepted the write and cannot fail the operation.
type SaveListener func(ctx context.Context, event SaveEvent)

// IDSource produces snapshot IDs and ETags for written records.
type IDSource = idgen.Source

// Option configures a Controller.
type Option func(*Controller)

// WithItemStore enables the metabox operations.
func WithItemStore(items ItemStore[settings.Values]) Option {
	return func(c *Controller) {
		c.items = items
	}
}

// WithScope sets the scope records are written to. It defaults to the
// site scope.
func WithScope(scope settings.Scope) Option {
	return func(c *Controller) {
		if scope.Name != "" {
			c.scope = scope
		}
	}
}

// WithFallbackScope adds a read-only scope consulted below the write scope,
// for example the site record beneath a tenant record.
func WithFallbackScope(scope settings.Scope) Option {
	return func(c *Controller) {
		if scope.Name != "" {
			c.fallbacks = append(c.fallbacks, scope)
		}
	}
}

// WithRecord places the module inside a shared record. Without it the
// module owns the record named by Registry.OptionName.
func WithRecord(record Record) Option {
	return func(c *Controller) {
		c.record = record
	}
}

// WithSanitizer replaces the default sanitizer.
func WithSanitizer(sanitizer *settings.Sanitizer) Option {
	return func(c *Controller) {
		if sanitizer != nil {
			c.sanitizer = sanitizer
		}
	}
}

// WithRules enables validate rules on save.
func WithRules(rules *settings.Rules) Option {
	return func(c *Controller) {
		c.rules = rules
	}
}

// WithUpdateFilter appends filter to the chain run for location. Use
// AnyLocation to run it everywhere.
func WithUpdateFilter(location string, filter UpdateFilter) Option {
	return func(c *Controller) {
		if filter == nil {
			return
		}
		if c.filters == nil {
			c.filters = map[string][]UpdateFilter{}
		}
		c.filters[location] = append(c.filters[location], filter)
	}
}

// WithSaveListener registers a listener for completed writes.
func WithSaveListener(listener SaveListener) Option {
	return func(c *Controller) {
		if listener != nil {
			c.listeners = append(c.listeners, listener)
		}
	}
}

// WithEmitter publishes activity events for completed writes.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(c *Controller) {
		c.emitter = emitter
	}
}

// WithLogger reports every operation.
func WithLogger(logger settings.OperationLogger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUnslash strips backslash escaping from submitted values before they
// are processed.
func WithUnslash(enabled bool) Option {
	return func(c *Controller) {
		c.unslash = enabled
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDs overrides snapshot ID and ETag generation.
func WithIDs(ids IDSource) Option {
	return func(c *Controller) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// SaveOption configures one write.
type SaveOption func(*saveConfig)

type saveConfig struct {
	ifMatch string
	actorID string
}

// IfMatch makes the write fail with ErrETagMismatch unless the stored
// record still carries etag.
func IfMatch(etag string) SaveOption {
	return func(cfg *saveConfig) {
		cfg.ifMatch = etag
	}
}

// AsActor records who made the change in emitted activity.
func AsActor(actorID string) SaveOption {
	return func(cfg *saveConfig) {
		cfg.actorID = actorID
	}
}

func applySaveOptions(opts []SaveOption) saveConfig {
	cfg := saveConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
