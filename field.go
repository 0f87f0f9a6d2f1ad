package settings

import (
	"strings"
	"unicode"
)

// Values maps storage keys to setting values.
type Values = map[string]any

// FieldType selects both the render strategy and the default sanitize rule.
type FieldType string

const (
	FieldText          FieldType = "text"
	FieldTextarea      FieldType = "textarea"
	FieldCheckbox      FieldType = "checkbox"
	FieldRadio         FieldType = "radio"
	FieldSelect        FieldType = "select"
	FieldMultiSelect   FieldType = "multiselect"
	FieldMultiCheckbox FieldType = "multicheckbox"
	FieldNumber        FieldType = "number"
	FieldHidden        FieldType = "hidden"
	FieldCustom        FieldType = "custom"
	FieldSubmit        FieldType = "submit"
	FieldHTML          FieldType = "html"
	FieldImage         FieldType = "image"
	FieldFilename      FieldType = "filename"
	FieldURL           FieldType = "url"
	FieldDateSelector  FieldType = "date_selector"
)

// LabelPlacement controls where a row label renders.
type LabelPlacement string

const (
	LabelDefault LabelPlacement = ""
	LabelTop     LabelPlacement = "top"
	LabelNone    LabelPlacement = "none"
)

// Choice is one selectable value. Choices sharing a Group render together.
type Choice struct {
	Value string `json:"value" yaml:"value" toml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Group string `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
}

// Display returns the label, falling back to the value.
func (c Choice) Display() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Value
}

// Definition declares one setting. Unset fields are filled in by the
// registry when the definition is resolved into a Field.
type Definition struct {
	Key          string         `json:"key" yaml:"key" toml:"key"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Type         FieldType      `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Sanitize     FieldType      `json:"sanitize,omitempty" yaml:"sanitize,omitempty" toml:"sanitize,omitempty"`
	Default      any            `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Label        LabelPlacement `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	HelpText     string         `json:"help_text,omitempty" yaml:"help_text,omitempty" toml:"help_text,omitempty"`
	Choices      []Choice       `json:"choices,omitempty" yaml:"choices,omitempty" toml:"choices,omitempty"`
	Save         *bool          `json:"save,omitempty" yaml:"save,omitempty" toml:"save,omitempty"`
	Prefix       *bool          `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	NoWrap       *bool          `json:"nowrap,omitempty" yaml:"nowrap,omitempty" toml:"nowrap,omitempty"`
	ID           string         `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Class        string         `json:"class,omitempty" yaml:"class,omitempty" toml:"class,omitempty"`
	Style        string         `json:"style,omitempty" yaml:"style,omitempty" toml:"style,omitempty"`
	Placeholder  string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty" toml:"placeholder,omitempty"`
	ReadOnly     bool           `json:"readonly,omitempty" yaml:"readonly,omitempty" toml:"readonly,omitempty"`
	Disabled     bool           `json:"disabled,omitempty" yaml:"disabled,omitempty" toml:"disabled,omitempty"`
	Size         int            `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	Rows         int            `json:"rows,omitempty" yaml:"rows,omitempty" toml:"rows,omitempty"`
	Cols         int            `json:"cols,omitempty" yaml:"cols,omitempty" toml:"cols,omitempty"`
	Min          string         `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	Step         string         `json:"step,omitempty" yaml:"step,omitempty" toml:"step,omitempty"`
	CheckedValue string         `json:"checked_value,omitempty" yaml:"checked_value,omitempty" toml:"checked_value,omitempty"`
	Count        bool           `json:"count,omitempty" yaml:"count,omitempty" toml:"count,omitempty"`
	ShowIf       string         `json:"show_if,omitempty" yaml:"show_if,omitempty" toml:"show_if,omitempty"`
	Validate     string         `json:"validate,omitempty" yaml:"validate,omitempty" toml:"validate,omitempty"`
}

// Field is a resolved definition as seen by a single location.
type Field struct {
	Definition

	// StorageKey is the prefixed key values are stored and posted under.
	StorageKey string `json:"storage_key"`
	// Location is the owning location, empty for the global location.
	Location  string `json:"location,omitempty"`
	Title     string `json:"title"`
	Saves     bool   `json:"saves"`
	Prefixed  bool   `json:"prefixed"`
	Unwrapped bool   `json:"unwrapped"`
}

// SanitizeType reports the declared sanitize type, falling back to the
// field type.
func (f Field) SanitizeType() FieldType {
	if f.Sanitize != "" {
		return f.Sanitize
	}
	return f.Type
}

// Bool returns a pointer to v for the tri-state definition flags.
func Bool(v bool) *bool {
	return &v
}

func resolveDefinition(def Definition, location, prefix string) Field {
	field := Field{Definition: def, Location: location}

	if field.Type == "" {
		field.Type = FieldCheckbox
	}
	label := strings.TrimSpace(def.Name)
	if label == "" {
		label = TitleFromKey(def.Key)
	}
	field.Title = label
	if len(field.Choices) == 0 {
		field.Choices = choicesFromDefault(def.Default)
	}

	save := def.Save
	pre := def.Prefix
	nowrap := def.NoWrap

	switch field.Type {
	case FieldCustom:
		if nowrap == nil {
			nowrap = Bool(true)
		}
	case FieldSubmit:
		if save == nil {
			save = Bool(false)
		}
		if field.Label == LabelDefault {
			field.Label = LabelNone
		}
		if pre == nil {
			pre = Bool(false)
		}
	case FieldHidden:
		if field.Label == LabelDefault {
			field.Label = LabelNone
		}
		if pre == nil {
			pre = Bool(false)
		}
	case FieldText:
		if field.Size == 0 {
			field.Size = 57
		}
	case FieldTextarea:
		if field.Cols == 0 {
			field.Cols = 57
		}
		if field.Rows == 0 {
			field.Rows = 2
		}
	}

	field.Saves = save == nil || *save
	field.Prefixed = pre == nil || *pre
	field.Unwrapped = nowrap != nil && *nowrap
	field.Save = Bool(field.Saves)
	field.Prefix = Bool(field.Prefixed)
	field.NoWrap = Bool(field.Unwrapped)

	if field.Prefixed {
		field.StorageKey = prefix + def.Key
	} else {
		field.StorageKey = def.Key
	}
	return field
}

// TitleFromKey turns "course_points_enabled" into "Course Points Enabled".
func TitleFromKey(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func choicesFromDefault(value any) []Choice {
	switch v := value.(type) {
	case []Choice:
		return append([]Choice(nil), v...)
	case map[string]string:
		choices := make([]Choice, 0, len(v))
		for _, key := range sortedStringKeys(v) {
			choices = append(choices, Choice{Value: key, Label: v[key]})
		}
		return choices
	default:
		return nil
	}
}
