package settings

import (
	"fmt"
	"sort"
	"strings"

	layering "github.com/goliatone/go-settings/layering"
)

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithOptionName overrides the option record name. It defaults to
// prefix + "options".
func WithOptionName(name string) RegistryOption {
	return func(r *Registry) {
		r.optionName = strings.TrimSpace(name)
	}
}

// WithLocation registers a settings page or metabox.
func WithLocation(location Location) RegistryOption {
	return func(r *Registry) {
		r.pending = append(r.pending, cloneLocation(location))
	}
}

// WithTabs sets the module level tab strip.
func WithTabs(tabs ...Tab) RegistryOption {
	return func(r *Registry) {
		r.tabs = append([]Tab(nil), tabs...)
	}
}

// Registry holds the field schema of one settings module. It is immutable
// once built and safe for concurrent reads.
type Registry struct {
	prefix     string
	optionName string
	defaults   []Definition
	locations  map[string]Location
	order      []string
	tabs       []Tab

	pending []Location
}

// NewRegistry builds a registry for the module identified by prefix.
func NewRegistry(prefix string, defaults []Definition, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		prefix:    prefix,
		defaults:  append([]Definition(nil), defaults...),
		locations: map[string]Location{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if err := checkDefinitions("", r.defaults); err != nil {
		return nil, err
	}
	for _, location := range r.pending {
		name := strings.TrimSpace(location.Name)
		if name == "" {
			return nil, fmt.Errorf("settings: location name is required")
		}
		if _, exists := r.locations[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLocation, name)
		}
		if err := checkDefinitions(name, location.Defaults); err != nil {
			return nil, err
		}
		location.Name = name
		r.locations[name] = location
		r.order = append(r.order, name)
	}
	r.pending = nil
	if r.optionName == "" {
		r.optionName = prefix + "options"
	}
	return r, nil
}

func checkDefinitions(location string, defs []Definition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if strings.TrimSpace(def.Key) == "" {
			return fmt.Errorf("%w (location %q)", ErrKeyRequired, location)
		}
		if _, ok := seen[def.Key]; ok {
			return fmt.Errorf("%w: %s (location %q)", ErrDuplicateKey, def.Key, location)
		}
		seen[def.Key] = struct{}{}
	}
	return nil
}

// ModulePrefix returns the module prefix.
func (r *Registry) ModulePrefix() string {
	if r == nil {
		return ""
	}
	return r.prefix
}

// OptionName returns the name of the module option record.
func (r *Registry) OptionName() string {
	if r == nil {
		return ""
	}
	return r.optionName
}

// Prefix returns the prefix used by location, which is the location override
// when set and the module prefix otherwise.
func (r *Registry) Prefix(location string) string {
	if r == nil {
		return ""
	}
	if loc, ok := r.locations[location]; ok && loc.Prefix != "" {
		return loc.Prefix
	}
	return r.prefix
}

// MetaKey returns the item meta key a metabox location persists under.
func (r *Registry) MetaKey(location string) string {
	return "_" + r.Prefix(location) + location
}

// Location returns the named location.
func (r *Registry) Location(name string) (Location, error) {
	if r == nil {
		return Location{}, fmt.Errorf("%w: %s", ErrUnknownLocation, name)
	}
	loc, ok := r.locations[name]
	if !ok {
		return Location{}, fmt.Errorf("%w: %s", ErrUnknownLocation, name)
	}
	return cloneLocation(loc), nil
}

// Known reports whether location resolves to a field set. The global
// location is always known.
func (r *Registry) Known(location string) bool {
	if r == nil {
		return false
	}
	if location == "" {
		return true
	}
	_, ok := r.locations[location]
	return ok
}

// Kind reports where location persists. The global location and unknown
// locations are settings.
func (r *Registry) Kind(location string) LocationKind {
	if r == nil {
		return LocationSettings
	}
	if loc, ok := r.locations[location]; ok {
		return loc.kind()
	}
	return LocationSettings
}

// Locations returns registered locations in registration order.
func (r *Registry) Locations() []Location {
	if r == nil {
		return nil
	}
	out := make([]Location, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, cloneLocation(r.locations[name]))
	}
	return out
}

// Tabs returns the tab strip for location, falling back to module tabs.
func (r *Registry) Tabs(location string) []Tab {
	if r == nil {
		return nil
	}
	if loc, ok := r.locations[location]; ok && len(loc.Tabs) > 0 {
		return append([]Tab(nil), loc.Tabs...)
	}
	return append([]Tab(nil), r.tabs...)
}

// Fields returns the resolved field set for location in declaration order.
// Unknown locations yield an empty set.
func (r *Registry) Fields(location string) []Field {
	if r == nil {
		return nil
	}
	if location == "" {
		return resolveAll(r.defaults, "", r.prefix)
	}
	loc, ok := r.locations[location]
	if !ok {
		return nil
	}
	prefix := r.Prefix(location)
	if loc.inherits() {
		return resolveAll(r.defaults, location, prefix)
	}

	defs := make([]Definition, 0, len(loc.Defaults)+len(loc.Options))
	seen := make(map[string]struct{}, cap(defs))
	for _, def := range loc.Defaults {
		seen[def.Key] = struct{}{}
		defs = append(defs, def)
	}
	for _, key := range loc.Options {
		if _, ok := seen[key]; ok {
			continue
		}
		global, ok := r.global(key)
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		defs = append(defs, global)
	}
	return resolveAll(defs, location, prefix+location+"_")
}

// Field looks up a resolved field by storage key.
func (r *Registry) Field(location, storageKey string) (Field, bool) {
	for _, field := range r.Fields(location) {
		if field.StorageKey == storageKey {
			return field, true
		}
	}
	return Field{}, false
}

// DefaultOptions maps the storage key of every saved field to its default.
// Fields declared with save=false are excluded.
func (r *Registry) DefaultOptions(location string) Values {
	fields := r.Fields(location)
	out := make(Values, len(fields))
	for _, field := range fields {
		if !field.Saves {
			continue
		}
		out[field.StorageKey] = layering.Clone(field.Default)
	}
	return out
}

func (r *Registry) global(key string) (Definition, bool) {
	for _, def := range r.defaults {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

func resolveAll(defs []Definition, location, prefix string) []Field {
	if len(defs) == 0 {
		return nil
	}
	fields := make([]Field, 0, len(defs))
	for _, def := range defs {
		def.Choices = append([]Choice(nil), def.Choices...)
		fields = append(fields, resolveDefinition(def, location, prefix))
	}
	return fields
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
