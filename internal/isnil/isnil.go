// Package isnil answers whether a generic value of otherwise-unknown kind is
// nil, which a plain `v == nil` cannot do for a bare type parameter.
package isnil

import "reflect"

// Value reports whether v is a nil pointer, interface, map, slice, channel
// or function. Any other kind (structs, numbers, strings, ...) is never nil
// and reports false.
func Value[T any](v T) bool {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
