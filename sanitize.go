package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// SanitizerOption configures a Sanitizer.
type SanitizerOption func(*Sanitizer)

// WithPolicy replaces the markup policy applied to html fields.
func WithPolicy(policy *bluemonday.Policy) SanitizerOption {
	return func(s *Sanitizer) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithSanitizerLocation sets the time zone date parts are interpreted in.
func WithSanitizerLocation(loc *time.Location) SanitizerOption {
	return func(s *Sanitizer) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Sanitizer applies the per-type sanitize rules to submitted values. It never
// fails: unknown types use the attribute escape rule.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
	loc    *time.Location
}

// NewSanitizer returns a sanitizer that strips all tags from text values
// and filters html fields through the bluemonday UGC policy.
func NewSanitizer(opts ...SanitizerOption) *Sanitizer {
	s := &Sanitizer{
		policy: bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
		loc:    time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// StripTags removes every tag, dropping script and style content. Text is
// returned entity-escaped.
func (s *Sanitizer) StripTags(value string) string {
	if s == nil || s.strict == nil {
		return bluemonday.StrictPolicy().Sanitize(value)
	}
	return s.strict.Sanitize(value)
}

// SanitizeValue applies the rule for kind to value.
func (s *Sanitizer) SanitizeValue(kind FieldType, value any) any {
	switch kind {
	case FieldMultiSelect, FieldMultiCheckbox:
		return mapStrings(value, EncodeElement)
	case FieldTextarea:
		return mapStrings(value, func(v string) string {
			return EscapeAttr(s.StripTags(v))
		})
	case FieldFilename:
		return mapStrings(value, SanitizeFileName)
	case FieldText:
		return mapStrings(value, s.StripTags)
	case FieldURL:
		return mapStrings(value, EscapeURL)
	case FieldDateSelector:
		return s.dateValue(value)
	case FieldHTML:
		return mapStrings(value, s.policySafe().Sanitize)
	default:
		return mapStrings(value, EscapeAttr)
	}
}

// Sanitize returns a copy of raw with every key that belongs to fields run
// through the field's rule. Keys that match no field pass through.
func (s *Sanitizer) Sanitize(fields []Field, raw Values) Values {
	out := make(Values, len(raw))
	for key, value := range raw {
		out[key] = value
	}
	for _, field := range fields {
		value, ok := raw[field.StorageKey]
		if !ok {
			continue
		}
		out[field.StorageKey] = s.SanitizeValue(field.SanitizeType(), value)
	}
	return out
}

// SanitizeLocation sanitizes raw against the fields of location. An unknown
// location leaves every value untouched.
func (s *Sanitizer) SanitizeLocation(registry *Registry, location string, raw Values) Values {
	return s.Sanitize(registry.Fields(location), raw)
}

func (s *Sanitizer) policySafe() *bluemonday.Policy {
	if s == nil || s.policy == nil {
		return bluemonday.UGCPolicy()
	}
	return s.policy
}

func (s *Sanitizer) location() *time.Location {
	if s == nil || s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// dateValue folds {aa,mm,jj,hh,mn} date parts into unix seconds. Numbers and
// numeric strings pass through; incomplete parts yield 0.
func (s *Sanitizer) dateValue(value any) any {
	switch v := value.(type) {
	case nil:
		return int64(0)
	case int, int32, int64, float64:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return int64(0)
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
		if ts, ok := parseDateString(trimmed, s.location()); ok {
			return ts.Unix()
		}
		return int64(0)
	case map[string]any:
		parts := make(map[string]int, 5)
		for _, key := range []string{"aa", "mm", "jj", "hh", "mn"} {
			raw := strings.TrimSpace(fmt.Sprint(v[key]))
			n, err := strconv.Atoi(raw)
			if err != nil {
				if key == "hh" || key == "mn" {
					parts[key] = 0
					continue
				}
				return int64(0)
			}
			parts[key] = n
		}
		if parts["aa"] <= 0 || parts["mm"] < 1 || parts["mm"] > 12 || parts["jj"] < 1 || parts["jj"] > 31 {
			return int64(0)
		}
		ts := time.Date(parts["aa"], time.Month(parts["mm"]), parts["jj"], parts["hh"], parts["mn"], 0, 0, s.location())
		return ts.Unix()
	default:
		return int64(0)
	}
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

func parseDateString(value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// mapStrings applies fn to value when it is a string and to each string
// element of lists and maps. Other scalars are formatted first.
func mapStrings(value any, fn func(string) string) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return fn(v)
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fn(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = mapStrings(item, fn)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = mapStrings(item, fn)
		}
		return out
	case bool:
		if v {
			return fn("1")
		}
		return ""
	default:
		return fn(fmt.Sprint(v))
	}
}
