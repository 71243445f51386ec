package guard

import (
	"iter"
	"reflect"
	"strings"
)

// RequireNonNull returns value, or a *NullArgumentError naming the argument
// when value is nil. Typed nils (pointer, map, slice, channel, func) count as nil.
func RequireNonNull[T any](value T, name string) (T, error) {
	if isNil(value) {
		return value, &NullArgumentError{Name: name}
	}
	return value, nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	default:
		return false
	}
}

// TrimToNullable trims s and returns nil when nothing is left.
func TrimToNullable(s *string) *string {
	if s == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// IsEmptyOrAbsent reports whether items is nil or has no elements.
func IsEmptyOrAbsent[E any](items []E) bool {
	return len(items) == 0
}

// IsSeqEmptyOrAbsent reports whether seq is nil or yields nothing. At most one
// element is pulled from seq.
func IsSeqEmptyOrAbsent[E any](seq iter.Seq[E]) bool {
	if seq == nil {
		return true
	}
	for range seq {
		return false
	}
	return true
}
