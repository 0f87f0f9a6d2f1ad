// Package loader reads declarative settings schemas from YAML, TOML or JSON
// documents.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/hydrate"
)

// Format is a schema document syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("loader: unsupported schema format")
	// ErrPrefixRequired is returned for documents without a module prefix.
	ErrPrefixRequired = errors.New("loader: prefix is required")
)

// Document is the on-disk shape of a settings module.
type Document struct {
	Prefix     string                `json:"prefix" yaml:"prefix" toml:"prefix"`
	OptionName string                `json:"option_name,omitempty" yaml:"option_name,omitempty" toml:"option_name,omitempty"`
	Tabs       []settings.Tab        `json:"tabs,omitempty" yaml:"tabs,omitempty" toml:"tabs,omitempty"`
	Fields     []settings.Definition `json:"fields" yaml:"fields" toml:"fields"`
	Locations  []settings.Location   `json:"locations,omitempty" yaml:"locations,omitempty" toml:"locations,omitempty"`
}

// Registry builds the registry the document describes.
func (d Document) Registry() (*settings.Registry, error) {
	opts := make([]settings.RegistryOption, 0, len(d.Locations)+2)
	if d.OptionName != "" {
		opts = append(opts, settings.WithOptionName(d.OptionName))
	}
	if len(d.Tabs) > 0 {
		opts = append(opts, settings.WithTabs(d.Tabs...))
	}
	for _, loc := range d.Locations {
		opts = append(opts, settings.WithLocation(loc))
	}
	return settings.NewRegistry(d.Prefix, d.Fields, opts...)
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Load reads and parses the schema at path.
func Load(path string) (*settings.Registry, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Parse(path, format, data)
}

// Parse builds a registry from data. source names the document in errors.
func Parse(source string, format Format, data []byte) (*settings.Registry, error) {
	doc, err := Decode(source, format, data)
	if err != nil {
		return nil, err
	}
	registry, err := doc.Registry()
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", source, err)
	}
	return registry, nil
}

// Decode parses data into a Document. Choice lists written as a
// "value,label,..." line and map defaults are expanded into choices.
func Decode(source string, format Format, data []byte) (Document, error) {
	payload := map[string]any{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &payload)
	case FormatTOML:
		err = toml.Unmarshal(data, &payload)
	case FormatJSON:
		err = json.Unmarshal(data, &payload)
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Document{}, fmt.Errorf("loader: parse %s: %w", source, err)
	}
	normalized, _ := normalize(payload).(map[string]any)

	decoder := hydrate.NewDecoder[Document](
		hydrate.WithPreHook[Document](expandChoices),
		hydrate.WithDisallowUnknownFields[Document](),
		hydrate.WithPostHook[Document](validate),
	)
	doc, err := decoder.Decode(hydrate.Context{Source: source, Format: string(format)}, normalized)
	if err != nil {
		return Document{}, fmt.Errorf("loader: %w", err)
	}
	return doc, nil
}

func expandChoices(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	expandFields(payload["fields"])
	locations, _ := payload["locations"].([]any)
	for _, raw := range locations {
		if loc, ok := raw.(map[string]any); ok {
			expandFields(loc["default_options"])
		}
	}
	return payload, nil
}

func expandFields(raw any) {
	fields, _ := raw.([]any)
	for _, item := range fields {
		field, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if line, ok := field["choices"].(string); ok {
			field["choices"] = choiceList(settings.ParsePairs(line))
		}
		if labels, ok := field["default"].(map[string]any); ok {
			if _, has := field["choices"]; !has {
				keys := make([]string, 0, len(labels))
				for key := range labels {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				choices := make([]settings.Choice, 0, len(keys))
				for _, key := range keys {
					choices = append(choices, settings.Choice{Value: key, Label: fmt.Sprint(labels[key])})
				}
				field["choices"] = choiceList(choices)
			}
			delete(field, "default")
		}
	}
}

func choiceList(choices []settings.Choice) []any {
	out := make([]any, 0, len(choices))
	for _, choice := range choices {
		entry := map[string]any{"value": choice.Value}
		if choice.Label != "" {
			entry["label"] = choice.Label
		}
		if choice.Group != "" {
			entry["group"] = choice.Group
		}
		out = append(out, entry)
	}
	return out
}

func validate(_ hydrate.Context, doc *Document) error {
	if strings.TrimSpace(doc.Prefix) == "" {
		return ErrPrefixRequired
	}
	return nil
}

// normalize rewrites YAML maps with non-string keys so the payload can
// round trip through JSON.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = normalize(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, normalize(item))
		}
		return out
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return value
	}
}
