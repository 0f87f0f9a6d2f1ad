package settings

import (
	"errors"
	"fmt"
	"sort"

	layering "github.com/goliatone/go-settings/layering"
)

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates Stack construction received multiple
	// layers with the same scope name.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrPriorityOrder indicates duplicate priorities.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
)

// Layer pairs a scope with the values captured for it.
type Layer struct {
	Scope      Scope
	Values     Values
	SnapshotID string
}

// NewLayer copies scope and values into a Layer.
func NewLayer(scope Scope, values Values, snapshotID string) Layer {
	return Layer{
		Scope:      scope.clone(),
		Values:     layering.Clone(values),
		SnapshotID: snapshotID,
	}
}

// Stack is an immutable list of layers ordered from strongest to weakest.
type Stack struct {
	layers []Layer
}

// NewStack validates the layers and sorts them by descending priority.
func NewStack(layers ...Layer) (*Stack, error) {
	seen := make(map[string]struct{}, len(layers))
	copied := make([]Layer, 0, len(layers))
	for _, layer := range layers {
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seen[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seen[layer.Scope.Name] = struct{}{}
		copied = append(copied, NewLayer(layer.Scope, layer.Values, layer.SnapshotID))
	}
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})
	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority == copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}
	return &Stack{layers: copied}, nil
}

// Len returns the number of layers.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge lays every layer over the weaker ones.
func (s *Stack) Merge() *Resolved {
	if s == nil {
		return &Resolved{values: Values{}}
	}
	maps := make([]map[string]any, len(s.layers))
	for i, layer := range s.layers {
		maps[i] = layer.Values
	}
	return &Resolved{
		values: layering.Merge(maps...),
		layers: s.layers,
	}
}

// Resolved is the effective value set plus the layers that produced it.
type Resolved struct {
	values Values
	layers []Layer
}

// Values returns a copy of the effective values.
func (r *Resolved) Values() Values {
	if r == nil {
		return Values{}
	}
	return layering.Clone(r.values)
}

// Layers returns copies of the contributing layers, strongest first.
func (r *Resolved) Layers() []Layer {
	if r == nil {
		return nil
	}
	out := make([]Layer, len(r.layers))
	for i, layer := range r.layers {
		out[i] = NewLayer(layer.Scope, layer.Values, layer.SnapshotID)
	}
	return out
}

// Trace reports, strongest first, whether each layer holds key.
func (r *Resolved) Trace(key string) Trace {
	trace := Trace{Path: key}
	if r == nil {
		return trace
	}
	for _, layer := range r.layers {
		value, found := layer.Values[key]
		trace.Layers = append(trace.Layers, Provenance{
			Scope:      layer.Scope.clone(),
			SnapshotID: layer.SnapshotID,
			Path:       key,
			Value:      layering.Clone(value),
			Found:      found,
		})
	}
	return trace
}
