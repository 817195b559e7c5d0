package param

import (
	"sort"
	"strings"

	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
)

// Keys the normalizer uses when it wraps a bare sequence or array.
const (
	ListKey  = "list"
	ArrayKey = "array"
)

// StrictMap is a named parameter map where looking up an absent name is an
// error instead of a silent nil.
type StrictMap map[string]any

// Get returns the value bound to key, or a binding error naming the keys
// that are available.
func (m StrictMap) Get(key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, sqlerr.New(sqlerr.KindBinding,
			"Parameter '%s' not found. Available parameters are [%s]", key, strings.Join(m.Keys(), ", "))
	}
	return v, nil
}

// Keys returns the bound names in sorted order.
func (m StrictMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
