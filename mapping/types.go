package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var builtinTypes = map[string]reflect.Type{
	"string":  reflect.TypeOf(""),
	"bool":    reflect.TypeOf(false),
	"int":     reflect.TypeOf(0),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"uint64":  reflect.TypeOf(uint64(0)),
	"float64": reflect.TypeOf(float64(0)),
	"bytes":   reflect.TypeOf([]byte(nil)),
	"time":    reflect.TypeOf(time.Time{}),
}

// RegisterType registers a result type alias, usually a struct, so mapper
// files can refer to it by name.
func (c *Configuration) RegisterType(alias string, t reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[strings.ToLower(alias)] = t
}

// ResolveType resolves a result type alias. "" and "map" resolve to nil,
// meaning rows are returned as map[string]any.
func (c *Configuration) ResolveType(alias string) (reflect.Type, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" || alias == "map" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.types[alias]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("mapping: unknown result type %q", alias)
}
