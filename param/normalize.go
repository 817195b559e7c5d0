// Package param normalizes statement parameters and resolves the property
// paths that statement placeholders refer to.
package param

import "reflect"

var bytesType = reflect.TypeOf([]byte(nil))

// Wrap normalizes a caller supplied parameter. A bare slice is bound under
// "list" and a bare array under "array" so placeholders can name them;
// every other value, nil included, is returned unchanged. []byte is a
// single value, not a sequence.
func Wrap(p any) any {
	if p == nil {
		return nil
	}
	t := reflect.TypeOf(p)
	switch t.Kind() {
	case reflect.Slice:
		if t == bytesType || t.Elem().Kind() == reflect.Uint8 {
			return p
		}
		return StrictMap{ListKey: p}
	case reflect.Array:
		return StrictMap{ArrayKey: p}
	}
	return p
}
