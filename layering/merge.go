// Package layering composes value maps the way stored settings are laid over
// their defaults: a key present in a stronger layer wins, absent keys fall
// through to weaker layers.
package layering

import "reflect"

// Merge composes layers ordered from strongest to weakest. Presence decides
// precedence, so a stronger layer holding a nil or empty value still wins.
// The result never aliases the inputs.
func Merge(layers ...map[string]any) map[string]any {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	out := make(map[string]any, size)
	for i := len(layers) - 1; i >= 0; i-- {
		for key, value := range layers[i] {
			out[key] = Clone(value)
		}
	}
	return out
}

// Only returns the subset of values whose keys are listed.
func Only(values map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, ok := values[key]; ok {
			out[key] = Clone(value)
		}
	}
	return out
}

// Clone deep copies maps, slices, arrays and pointers reachable from value.
func Clone[T any](value T) T {
	v := reflect.ValueOf(&value).Elem()
	cloned := cloneValue(v)
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	out := reflect.New(v.Type()).Elem()
	out.Set(cloned)
	result, ok := out.Interface().(T)
	if !ok {
		var zero T
		return zero
	}
	return result
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
