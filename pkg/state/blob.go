package state

import (
	"sort"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/layering"
)

// ModulesKey is the record key sibling modules are nested under.
const ModulesKey = "modules"

// Modules is the set of module values nested in a shared record, keyed by
// module option name.
type Modules map[string]settings.Values

// ModulesOf returns a copy of the modules nested in blob. Entries that are
// not maps are ignored.
func ModulesOf(blob settings.Values) Modules {
	raw, ok := blob[ModulesKey].(map[string]any)
	if !ok {
		return Modules{}
	}
	out := make(Modules, len(raw))
	for name, entry := range raw {
		values, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		out[name] = layering.Clone(values)
	}
	return out
}

// Names returns the module names in sorted order.
func (m Modules) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m Modules) toValue() map[string]any {
	out := make(map[string]any, len(m))
	for name, values := range m {
		out[name] = layering.Clone(values)
	}
	return out
}

// WithModule returns a copy of blob with module name set to values. Other
// keys and sibling modules are kept.
func WithModule(blob settings.Values, name string, values settings.Values) settings.Values {
	out := layering.Clone(blob)
	if out == nil {
		out = settings.Values{}
	}
	modules := ModulesOf(blob)
	modules[name] = layering.Clone(values)
	out[ModulesKey] = modules.toValue()
	return out
}

// WithoutModule returns a copy of blob with module name removed. The
// modules key is dropped once it is empty.
func WithoutModule(blob settings.Values, name string) settings.Values {
	out := layering.Clone(blob)
	if out == nil {
		return settings.Values{}
	}
	modules := ModulesOf(blob)
	delete(modules, name)
	if len(modules) == 0 {
		delete(out, ModulesKey)
		return out
	}
	out[ModulesKey] = modules.toValue()
	return out
}

// Record locates one module's values in the option store.
//
// With Parent empty, or equal to Name, the module owns its record's top
// level keys. Otherwise its values are nested under the parent record's
// modules key.
type Record struct {
	Name   string
	Parent string
}

// Key returns the store key holding the module's values.
func (r Record) Key() string {
	if r.Parent != "" {
		return r.Parent
	}
	return r.Name
}

// Nested reports whether the module lives inside another module's record.
func (r Record) Nested() bool {
	return r.Parent != "" && r.Parent != r.Name
}

// Extract returns a copy of the module's values held in blob.
func (r Record) Extract(blob settings.Values) settings.Values {
	if r.Nested() {
		values, ok := ModulesOf(blob)[r.Name]
		if !ok {
			return settings.Values{}
		}
		return values
	}
	out := make(settings.Values, len(blob))
	for key, value := range blob {
		if key == ModulesKey {
			continue
		}
		out[key] = layering.Clone(value)
	}
	return out
}

// Inject returns blob with the module's values replaced by values.
func (r Record) Inject(blob, values settings.Values) settings.Values {
	if r.Nested() {
		return WithModule(blob, r.Name, values)
	}
	out := layering.Clone(values)
	if out == nil {
		out = settings.Values{}
	}
	delete(out, ModulesKey)
	if modules, ok := blob[ModulesKey]; ok {
		out[ModulesKey] = layering.Clone(modules)
	}
	return out
}

// Remove returns blob without the module's values. empty reports whether
// nothing is left, in which case the record can be deleted.
func (r Record) Remove(blob settings.Values) (rest settings.Values, empty bool) {
	if r.Nested() {
		rest = WithoutModule(blob, r.Name)
		return rest, len(rest) == 0
	}
	rest = settings.Values{}
	if modules, ok := blob[ModulesKey]; ok && len(ModulesOf(blob)) > 0 {
		rest[ModulesKey] = layering.Clone(modules)
	}
	return rest, len(rest) == 0
}
