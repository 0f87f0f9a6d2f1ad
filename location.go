package settings

// LocationKind selects where a location's values persist.
type LocationKind string

const (
	// LocationSettings values live in the module option record.
	LocationSettings LocationKind = "settings"
	// LocationMetabox values live in per-item meta.
	LocationMetabox LocationKind = "metabox"
)

// Tab is one entry of a settings page tab strip.
type Tab struct {
	Key  string `json:"key" yaml:"key" toml:"key"`
	Name string `json:"name" yaml:"name" toml:"name"`
}

// Location is a named settings page or metabox that renders a subset of the
// fields. A location without Options and Defaults shows every global field.
type Location struct {
	Name     string       `json:"name" yaml:"name" toml:"name"`
	Kind     LocationKind `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Prefix   string       `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Title    string       `json:"title,omitempty" yaml:"title,omitempty" toml:"title,omitempty"`
	Options  []string     `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
	Defaults []Definition `json:"default_options,omitempty" yaml:"default_options,omitempty" toml:"default_options,omitempty"`
	Tabs     []Tab        `json:"tabs,omitempty" yaml:"tabs,omitempty" toml:"tabs,omitempty"`
}

func (l Location) inherits() bool {
	return l.Options == nil && len(l.Defaults) == 0
}

func (l Location) kind() LocationKind {
	if l.Kind == "" {
		return LocationSettings
	}
	return l.Kind
}

func cloneLocation(l Location) Location {
	out := l
	if l.Options != nil {
		out.Options = append(make([]string, 0, len(l.Options)), l.Options...)
	}
	out.Defaults = append([]Definition(nil), l.Defaults...)
	out.Tabs = append([]Tab(nil), l.Tabs...)
	return out
}
