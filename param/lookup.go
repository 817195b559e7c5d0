package param

import (
	"database/sql/driver"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/sqlsession/schema"
	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Lookup resolves a dotted property path such as "user.address.city" or
// "list[0]" against a parameter. A single value parameter (scalar, time,
// []byte or driver.Valuer) resolves to itself whatever the path, so a
// statement with one placeholder can be given the bare value.
func Lookup(p any, path string) (any, error) {
	if p == nil || path == "" {
		return p, nil
	}
	if IsSingleValue(p) {
		return p, nil
	}

	cur := p
	for _, segment := range strings.Split(path, ".") {
		name, index, err := splitIndex(segment)
		if err != nil {
			return nil, err
		}
		if name != "" {
			if cur, err = property(cur, name); err != nil {
				return nil, err
			}
		}
		if index >= 0 && cur != nil {
			if cur, err = element(cur, index, segment); err != nil {
				return nil, err
			}
		}
		if cur == nil {
			return nil, nil
		}
	}
	return cur, nil
}

// IsSingleValue reports whether p binds as one SQL argument.
func IsSingleValue(p any) bool {
	if p == nil {
		return true
	}
	t := reflect.TypeOf(p)
	if t.Implements(valuerType) {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	case reflect.Struct:
		return t == timeType
	}
	return false
}

func property(cur any, name string) (any, error) {
	if m, ok := cur.(StrictMap); ok {
		return m.Get(name)
	}
	if m, ok := cur.(map[string]any); ok {
		return m[name], nil
	}

	v := reflect.ValueOf(cur)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil, nil
		}
		return mv.Interface(), nil
	case reflect.Struct:
		meta, err := schema.Introspect(v.Type())
		if err != nil {
			return nil, sqlerr.New(sqlerr.KindBinding, "%v", err)
		}
		f, ok := meta.Field(name)
		if !ok {
			return nil, sqlerr.New(sqlerr.KindBinding,
				"There is no getter for property named '%s' in '%s'", name, v.Type())
		}
		fv := meta.Value(v, f)
		if !fv.IsValid() {
			return nil, nil
		}
		return fv.Interface(), nil
	}

	return nil, sqlerr.New(sqlerr.KindBinding,
		"Cannot resolve property '%s' on value of type %T", name, cur)
}

func element(cur any, index int, segment string) (any, error) {
	v := reflect.ValueOf(cur)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, sqlerr.New(sqlerr.KindBinding, "'%s' is not indexable (%s)", segment, v.Kind())
	}
	if index >= v.Len() {
		return nil, sqlerr.New(sqlerr.KindBinding,
			"Index %d out of range in '%s' (length %d)", index, segment, v.Len())
	}
	return v.Index(index).Interface(), nil
}

// splitIndex splits "name[3]" into ("name", 3). index is -1 without brackets.
func splitIndex(segment string) (string, int, error) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, -1, nil
	}
	if !strings.HasSuffix(segment, "]") {
		return "", -1, sqlerr.New(sqlerr.KindBinding, "Malformed property '%s'", segment)
	}
	n, err := strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil || n < 0 {
		return "", -1, sqlerr.New(sqlerr.KindBinding, "Malformed index in '%s'", segment)
	}
	return segment[:open], n, nil
}
