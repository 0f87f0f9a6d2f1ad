// Package openapi describes the submit operation of a settings location as
// an OpenAPI 3 document.
package openapi

import (
	"encoding/json"
	"fmt"

	settings "github.com/goliatone/go-settings"
)

// Generator builds documents for registry locations. It is safe for
// concurrent use.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Generate returns the document for location. The empty location describes
// the global fields.
func (g *Generator) Generate(registry *settings.Registry, location string) (map[string]any, error) {
	if registry == nil {
		return nil, fmt.Errorf("openapi: registry cannot be nil")
	}
	kind := settings.LocationSettings
	if location != "" {
		loc, err := registry.Location(location)
		if err != nil {
			return nil, fmt.Errorf("openapi: %s: %w", location, err)
		}
		if loc.Kind != "" {
			kind = loc.Kind
		}
	}
	builder := newDocumentBuilder(g.config, location, kind)
	return builder.build(registry.Fields(location))
}

// JSON renders the document for location as indented JSON.
func (g *Generator) JSON(registry *settings.Registry, location string) ([]byte, error) {
	document, err := g.Generate(registry, location)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(document, "", "  ")
}

// FieldSchema maps one field to its schema object. Fields that are not
// saved have no schema and report false.
func FieldSchema(field settings.Field) (map[string]any, bool) {
	if !field.Saves {
		return nil, false
	}
	schema := map[string]any{}
	switch field.Type {
	case settings.FieldCheckbox:
		checked := field.CheckedValue
		if checked == "" {
			checked = "on"
		}
		schema["type"] = "string"
		schema["enum"] = []any{checked, ""}
	case settings.FieldMultiSelect, settings.FieldMultiCheckbox:
		items := map[string]any{"type": "string"}
		if enum := choiceEnum(field.Choices); enum != nil {
			items["enum"] = enum
		}
		schema["type"] = "array"
		schema["items"] = items
	case settings.FieldSelect, settings.FieldRadio:
		schema["type"] = "string"
		if enum := choiceEnum(field.Choices); enum != nil {
			schema["enum"] = enum
		}
	case settings.FieldNumber:
		schema["type"] = "string"
		schema["format"] = "number"
	case settings.FieldURL:
		schema["type"] = "string"
		schema["format"] = "uri"
	case settings.FieldDateSelector:
		schema["type"] = "integer"
		schema["format"] = "int64"
	default:
		schema["type"] = "string"
	}

	if field.Title != "" {
		schema["title"] = field.Title
	}
	if field.HelpText != "" {
		schema["description"] = field.HelpText
	}
	if def, ok := scalarDefault(field.Default); ok {
		schema["default"] = def
	}
	if field.ReadOnly {
		schema["readOnly"] = true
	}
	schema["x-field-type"] = string(field.Type)
	if field.ShowIf != "" {
		schema["x-show-if"] = field.ShowIf
	}
	if field.Validate != "" {
		schema["x-validate"] = field.Validate
	}
	return schema, true
}

func choiceEnum(choices []settings.Choice) []any {
	if len(choices) == 0 {
		return nil
	}
	enum := make([]any, 0, len(choices))
	for _, choice := range choices {
		enum = append(enum, choice.Value)
	}
	return enum
}

func scalarDefault(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, int, int64, float64:
		return v, true
	case []string:
		out := make([]any, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
