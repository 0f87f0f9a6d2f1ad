package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLocation is reported by lookups that must tell an unregistered
	// location apart from an empty one. Fields never returns it.
	ErrUnknownLocation = errors.New("settings: unknown location")
	// ErrDuplicateKey indicates two definitions share a key within one location.
	ErrDuplicateKey = errors.New("settings: duplicate field key")
	// ErrDuplicateLocation indicates a location name was registered twice.
	ErrDuplicateLocation = errors.New("settings: duplicate location")
	// ErrKeyRequired indicates a definition without a key.
	ErrKeyRequired = errors.New("settings: field key is required")
	// ErrNoEvaluator indicates a rule was evaluated without an evaluator.
	ErrNoEvaluator = errors.New("settings: evaluator not configured")
)

// FieldError describes one rejected field value.
type FieldError struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Rule    string `json:"rule"`
	Message string `json:"message,omitempty"`
}

func (e FieldError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s: failed rule %q", e.Name, e.Rule)
}

// ValidationError aggregates field errors for one location. A save that
// returns it wrote nothing.
type ValidationError struct {
	Location string
	Fields   []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Error())
	}
	location := e.Location
	if location == "" {
		location = "<global>"
	}
	return fmt.Sprintf("settings: validation failed for %s: %s", location, strings.Join(parts, "; "))
}

// Field reports the error recorded for name, if any.
func (e *ValidationError) Field(name string) (FieldError, bool) {
	if e == nil {
		return FieldError{}, false
	}
	for _, field := range e.Fields {
		if field.Name == name || field.Key == name {
			return field, true
		}
	}
	return FieldError{}, false
}
