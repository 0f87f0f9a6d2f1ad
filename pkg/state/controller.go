package state

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/idgen"
	"github.com/goliatone/go-settings/layering"
	"github.com/goliatone/go-settings/pkg/activity"
)

// Controller runs the load, save and reset cycle of one settings module
// against a Store. It trusts its caller: request authorization is checked
// before any method is invoked.
type Controller struct {
	registry  atomic.Pointer[settings.Registry]
	store     Store[settings.Values]
	items     ItemStore[settings.Values]
	scope     settings.Scope
	fallbacks []settings.Scope
	record    Record
	sanitizer *settings.Sanitizer
	rules     *settings.Rules
	filters   map[string][]UpdateFilter
	listeners []SaveListener
	emitter   *activity.Emitter
	logger    settings.OperationLogger
	unslash   bool
	now       func() time.Time
	ids       IDSource
}

// NewController binds registry to store. Records are written to the site
// scope unless WithScope says otherwise.
func NewController(registry *settings.Registry, store Store[settings.Values], opts ...Option) (*Controller, error) {
	if registry == nil {
		return nil, fmt.Errorf("state: registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	c := &Controller{
		store:     store,
		scope:     settings.SiteScope(),
		sanitizer: settings.NewSanitizer(),
		logger:    settings.NoopOperationLogger{},
		now:       time.Now,
		ids:       idgen.Default,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	layers := []settings.Layer{settings.NewLayer(settings.DefaultsScope(), nil, "")}
	for _, scope := range c.readScopes() {
		layers = append(layers, settings.NewLayer(scope, nil, ""))
	}
	if _, err := settings.NewStack(layers...); err != nil {
		return nil, fmt.Errorf("state: scopes: %w", err)
	}
	c.registry.Store(registry)
	return c, nil
}

// Registry returns the registry currently in use.
func (c *Controller) Registry() *settings.Registry {
	return c.registry.Load()
}

// SetRegistry swaps the schema. Calls already running keep the old one.
func (c *Controller) SetRegistry(registry *settings.Registry) {
	if registry != nil {
		c.registry.Store(registry)
	}
}

// Record returns where the module's values are stored.
func (c *Controller) Record() Record {
	return c.recordFor(c.Registry())
}

// Meta returns the metadata of the record the controller writes to.
func (c *Controller) Meta(ctx context.Context) (Meta, bool, error) {
	_, meta, ok, err := c.store.Load(ctx, c.ref(c.Record()))
	return meta, ok, err
}

// Load returns the stored values of location laid over its defaults.
// Only the location's saved fields are returned, so an unknown location
// yields an empty map.
func (c *Controller) Load(ctx context.Context, location string) (settings.Values, error) {
	start := time.Now()
	var values settings.Values
	resolved, err := c.Resolve(ctx, location)
	if err == nil {
		values = resolved.Values()
	}
	c.log(settings.OpLoad, location, "", len(values), start, err)
	return values, err
}

// Resolve is Load with provenance: the result records which scope supplied
// every value.
func (c *Controller) Resolve(ctx context.Context, location string) (*settings.Resolved, error) {
	registry := c.Registry()
	if registry.Kind(location) == settings.LocationMetabox {
		return nil, fmt.Errorf("%w: %s", ErrMetaboxLocation, location)
	}
	defaults := registry.DefaultOptions(location)
	keys := sortedKeys(defaults)
	record := c.recordFor(registry)

	layers := []settings.Layer{settings.NewLayer(settings.DefaultsScope(), defaults, "")}
	for _, scope := range c.readScopes() {
		ref := Ref{Key: record.Key(), Scope: scope}
		blob, meta, ok, err := c.store.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", ref.Key, scope.Name, err)
		}
		if !ok {
			continue
		}
		layers = append(layers, settings.NewLayer(scope, layering.Only(record.Extract(blob), keys...), meta.SnapshotID))
	}
	stack, err := settings.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	return stack.Merge(), nil
}

// Save writes a settings page submission. Saved fields missing from
// submitted are stored as "" the way an unchecked box posts nothing.
// Values are validated, sanitized and filtered, then merged into the
// module record without touching keys of other locations or modules.
// An unknown location is a no-op.
func (c *Controller) Save(ctx context.Context, location string, submitted settings.Values, opts ...SaveOption) (settings.Values, error) {
	start := time.Now()
	values, changed, err := c.save(ctx, location, submitted, applySaveOptions(opts))
	c.log(settings.OpSave, location, "", len(changed), start, err)
	return values, err
}

func (c *Controller) save(ctx context.Context, location string, submitted settings.Values, cfg saveConfig) (settings.Values, []string, error) {
	registry := c.Registry()
	if !registry.Known(location) {
		return settings.Values{}, nil, nil
	}
	if registry.Kind(location) == settings.LocationMetabox {
		return nil, nil, fmt.Errorf("%w: %s", ErrMetaboxLocation, location)
	}
	fields := registry.Fields(location)
	defaults := registry.DefaultOptions(location)
	keys := sortedKeys(defaults)

	incoming := c.receive(submitted)
	for _, key := range keys {
		if _, ok := incoming[key]; !ok {
			incoming[key] = ""
		}
	}
	clean, err := c.clean(ctx, location, fields, keys, incoming)
	if err != nil {
		return nil, nil, err
	}

	record := c.recordFor(registry)
	next, err := c.nextMeta()
	if err != nil {
		return nil, nil, err
	}
	var changed []string
	blob, meta, err := Mutate(ctx, c.store, c.ref(record), cfg.ifMatch, next, func(current settings.Values, _ bool) (settings.Values, error) {
		existing := record.Extract(current)
		changed = changedKeys(existing, clean)
		return record.Inject(current, layering.Merge(clean, existing)), nil
	})
	if err != nil {
		return nil, nil, err
	}

	effective := layering.Merge(layering.Only(record.Extract(blob), keys...), defaults)
	input := c.eventInput(record, location, changed, meta, cfg)
	c.notify(ctx,
		SaveEvent{Op: settings.OpSave, Location: location, Values: effective, Changed: changed, Meta: meta},
		activity.BuildSettingsUpdatedEvent(input),
	)
	return effective, changed, nil
}

// Reset restores location to its defaults. With deleteAll the module's
// whole record is erased first, dropping the keys of every other location
// too; sibling modules in a shared record are kept.
func (c *Controller) Reset(ctx context.Context, location string, deleteAll bool, opts ...SaveOption) (settings.Values, error) {
	start := time.Now()
	op := settings.OpReset
	if deleteAll {
		op = settings.OpResetAll
	}
	values, err := c.reset(ctx, op, location, deleteAll, applySaveOptions(opts))
	c.log(op, location, "", len(values), start, err)
	return values, err
}

func (c *Controller) reset(ctx context.Context, op, location string, deleteAll bool, cfg saveConfig) (settings.Values, error) {
	registry := c.Registry()
	if !registry.Known(location) {
		return settings.Values{}, nil
	}
	if registry.Kind(location) == settings.LocationMetabox {
		return nil, fmt.Errorf("%w: %s", ErrMetaboxLocation, location)
	}
	defaults := registry.DefaultOptions(location)
	record := c.recordFor(registry)
	ref := c.ref(record)

	ifMatch := cfg.ifMatch
	if deleteAll {
		if err := c.erase(ctx, ref, record, ifMatch); err != nil {
			return nil, err
		}
		ifMatch = ""
	}
	next, err := c.nextMeta()
	if err != nil {
		return nil, err
	}
	var changed []string
	blob, meta, err := Mutate(ctx, c.store, ref, ifMatch, next, func(current settings.Values, _ bool) (settings.Values, error) {
		existing := record.Extract(current)
		changed = changedKeys(existing, defaults)
		return record.Inject(current, layering.Merge(defaults, existing)), nil
	})
	if err != nil {
		return nil, err
	}

	effective := layering.Merge(layering.Only(record.Extract(blob), sortedKeys(defaults)...), defaults)
	input := c.eventInput(record, location, changed, meta, cfg)
	input.DeleteAll = deleteAll
	c.notify(ctx,
		SaveEvent{Op: op, Location: location, Values: effective, Changed: changed, Meta: meta},
		activity.BuildSettingsResetEvent(input),
	)
	return effective, nil
}

// erase removes the module's values from its record, deleting the record
// once nothing else lives in it.
func (c *Controller) erase(ctx context.Context, ref Ref, record Record, ifMatch string) error {
	current, meta, ok, err := c.store.Load(ctx, ref)
	if err != nil {
		return fmt.Errorf("state: load %q for scope %q: %w", ref.Key, ref.Scope.Name, err)
	}
	if err := checkETag(ifMatch, meta, ok); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rest, empty := record.Remove(current)
	if empty {
		if _, err := c.store.Delete(ctx, ref); err != nil {
			return fmt.Errorf("state: delete %q for scope %q: %w", ref.Key, ref.Scope.Name, err)
		}
		return nil
	}
	if _, err := c.store.Save(ctx, ref, rest, meta); err != nil {
		return fmt.Errorf("state: save %q for scope %q: %w", ref.Key, ref.Scope.Name, err)
	}
	return nil
}

// LoadItem returns the metabox values stored on one item laid over the
// location's defaults.
func (c *Controller) LoadItem(ctx context.Context, itemID, location string) (settings.Values, error) {
	start := time.Now()
	values, err := c.loadItem(ctx, itemID, location)
	c.log(settings.OpLoadItem, location, itemID, len(values), start, err)
	return values, err
}

func (c *Controller) loadItem(ctx context.Context, itemID, location string) (settings.Values, error) {
	registry := c.Registry()
	if !registry.Known(location) {
		return settings.Values{}, nil
	}
	if err := c.checkItemLocation(registry, location); err != nil {
		return nil, err
	}
	defaults := registry.DefaultOptions(location)
	ref := ItemRef{ItemID: itemID, Key: registry.MetaKey(location)}
	stored, _, ok, err := c.items.LoadItem(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("state: load item %q meta %q: %w", ref.ItemID, ref.Key, err)
	}
	if !ok {
		return defaults, nil
	}
	return layering.Merge(layering.Only(stored, sortedKeys(defaults)...), defaults), nil
}

// SaveItem writes a metabox submission for one item. The saved fields
// present in submitted replace the item's record; when none are present
// nothing is written.
func (c *Controller) SaveItem(ctx context.Context, itemID, location string, submitted settings.Values, opts ...SaveOption) (settings.Values, error) {
	start := time.Now()
	values, changed, err := c.saveItem(ctx, itemID, location, submitted, applySaveOptions(opts))
	c.log(settings.OpSaveItem, location, itemID, len(changed), start, err)
	return values, err
}

func (c *Controller) saveItem(ctx context.Context, itemID, location string, submitted settings.Values, cfg saveConfig) (settings.Values, []string, error) {
	registry := c.Registry()
	if !registry.Known(location) {
		return settings.Values{}, nil, nil
	}
	if err := c.checkItemLocation(registry, location); err != nil {
		return nil, nil, err
	}
	fields := registry.Fields(location)
	defaults := registry.DefaultOptions(location)
	keys := sortedKeys(defaults)

	incoming := layering.Only(c.receive(submitted), keys...)
	if len(incoming) == 0 {
		values, err := c.loadItem(ctx, itemID, location)
		return values, nil, err
	}
	clean, err := c.clean(ctx, location, fields, keys, incoming)
	if err != nil {
		return nil, nil, err
	}

	ref := ItemRef{ItemID: itemID, Key: registry.MetaKey(location)}
	current, loaded, found, err := c.items.LoadItem(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("state: load item %q meta %q: %w", ref.ItemID, ref.Key, err)
	}
	if !found {
		current = settings.Values{}
		loaded = Meta{}
	}
	if err := checkETag(cfg.ifMatch, loaded, found); err != nil {
		return nil, nil, err
	}
	next, err := c.nextMeta()
	if err != nil {
		return nil, nil, err
	}
	changed := changedKeys(current, clean)
	for key := range current {
		if _, kept := clean[key]; !kept {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	// The submission replaces the record: a field not posted, such as an
	// unchecked checkbox, falls back to its default.
	meta, err := c.items.SaveItem(ctx, ref, clean, mergeMeta(loaded, next))
	if err != nil {
		return nil, nil, fmt.Errorf("state: save item %q meta %q: %w", ref.ItemID, ref.Key, err)
	}

	effective := layering.Merge(clean, defaults)
	input := c.eventInput(c.recordFor(registry), location, changed, meta, cfg)
	input.ItemID = itemID
	input.MetaKey = ref.Key
	input.Scope = activity.ScopeContext{Name: settings.ScopeNameItem, Priority: settings.ScopePriorityItem, SnapshotID: meta.SnapshotID}
	c.notify(ctx,
		SaveEvent{Op: settings.OpSaveItem, Location: location, ItemID: itemID, Values: effective, Changed: changed, Meta: meta},
		activity.BuildItemSettingsUpdatedEvent(input),
	)
	return effective, changed, nil
}

// ResetItem deletes the item's metabox record and returns the defaults.
func (c *Controller) ResetItem(ctx context.Context, itemID, location string, opts ...SaveOption) (settings.Values, error) {
	start := time.Now()
	values, err := c.resetItem(ctx, itemID, location, applySaveOptions(opts))
	c.log(settings.OpResetItem, location, itemID, len(values), start, err)
	return values, err
}

func (c *Controller) resetItem(ctx context.Context, itemID, location string, cfg saveConfig) (settings.Values, error) {
	registry := c.Registry()
	if !registry.Known(location) {
		return settings.Values{}, nil
	}
	if err := c.checkItemLocation(registry, location); err != nil {
		return nil, err
	}
	ref := ItemRef{ItemID: itemID, Key: registry.MetaKey(location)}
	existed, err := c.items.DeleteItem(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("state: delete item %q meta %q: %w", ref.ItemID, ref.Key, err)
	}
	defaults := registry.DefaultOptions(location)
	if existed {
		input := c.eventInput(c.recordFor(registry), location, nil, Meta{UpdatedAt: c.now().UTC()}, cfg)
		input.ItemID = itemID
		input.MetaKey = ref.Key
		input.Scope = activity.ScopeContext{Name: settings.ScopeNameItem, Priority: settings.ScopePriorityItem}
		c.notify(ctx,
			SaveEvent{Op: settings.OpResetItem, Location: location, ItemID: itemID, Values: defaults},
			activity.BuildItemSettingsResetEvent(input),
		)
	}
	return defaults, nil
}

func (c *Controller) checkItemLocation(registry *settings.Registry, location string) error {
	if registry.Kind(location) != settings.LocationMetabox {
		return fmt.Errorf("%w: %q", ErrSettingsLocation, location)
	}
	if c.items == nil {
		return ErrNoItemStore
	}
	return nil
}

// clean validates, sanitizes and filters incoming. The result only holds
// keys listed in allowed.
func (c *Controller) clean(ctx context.Context, location string, fields []settings.Field, allowed []string, incoming settings.Values) (settings.Values, error) {
	if c.rules != nil {
		if failures := c.rules.Check(fields, incoming); len(failures) > 0 {
			return nil, &settings.ValidationError{Location: location, Fields: failures}
		}
	}
	clean := layering.Only(c.sanitizer.Sanitize(fields, incoming), allowed...)
	for _, filter := range c.filtersFor(location) {
		out, err := filter(ctx, location, fields, clean)
		if err != nil {
			return nil, fmt.Errorf("state: update filter for %q: %w", location, err)
		}
		if out != nil {
			clean = layering.Only(out, allowed...)
		}
	}
	return clean, nil
}

func (c *Controller) filtersFor(location string) []UpdateFilter {
	filters := append([]UpdateFilter(nil), c.filters[location]...)
	if location != AnyLocation {
		filters = append(filters, c.filters[AnyLocation]...)
	}
	return filters
}

func (c *Controller) receive(submitted settings.Values) settings.Values {
	out := make(settings.Values, len(submitted))
	for key, value := range submitted {
		if c.unslash {
			value = settings.Unslash(value)
		}
		out[key] = layering.Clone(value)
	}
	return out
}

func (c *Controller) notify(ctx context.Context, event SaveEvent, activityEvent activity.Event) {
	for _, listener := range c.listeners {
		listener(ctx, event)
	}
	if err := c.emitter.Emit(ctx, activityEvent); err != nil {
		c.logger.LogOperation(settings.OperationLogEvent{
			Op:       event.Op,
			Location: event.Location,
			ItemID:   event.ItemID,
			Err:      fmt.Errorf("state: activity: %w", err),
		})
	}
}

func (c *Controller) eventInput(record Record, location string, changed []string, meta Meta, cfg saveConfig) activity.SettingsEventInput {
	return activity.SettingsEventInput{
		ActorID:     cfg.actorID,
		OptionName:  record.Name,
		Location:    location,
		ChangedKeys: changed,
		Scope: activity.ScopeContext{
			Name:       c.scope.Name,
			Priority:   c.scope.Priority,
			Metadata:   c.scope.Metadata,
			SnapshotID: meta.SnapshotID,
		},
		OccurredAt: meta.UpdatedAt,
	}
}

func (c *Controller) log(op, location, itemID string, keys int, start time.Time, err error) {
	c.logger.LogOperation(settings.OperationLogEvent{
		Op:       op,
		Location: location,
		ItemID:   itemID,
		Keys:     keys,
		Duration: time.Since(start),
		Err:      err,
	})
}

func (c *Controller) readScopes() []settings.Scope {
	return append([]settings.Scope{c.scope}, c.fallbacks...)
}

func (c *Controller) recordFor(registry *settings.Registry) Record {
	record := c.record
	if record.Name == "" {
		record.Name = registry.OptionName()
	}
	return record
}

func (c *Controller) ref(record Record) Ref {
	return Ref{Key: record.Key(), Scope: c.scope}
}

func (c *Controller) nextMeta() (Meta, error) {
	etag, err := c.ids.ETag()
	if err != nil {
		return Meta{}, fmt.Errorf("state: etag: %w", err)
	}
	return Meta{SnapshotID: c.ids.SnapshotID(), ETag: etag, UpdatedAt: c.now().UTC()}, nil
}

func changedKeys(before, after settings.Values) []string {
	var changed []string
	for key, value := range after {
		previous, ok := before[key]
		if !ok || !reflect.DeepEqual(previous, value) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

func sortedKeys(values settings.Values) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
