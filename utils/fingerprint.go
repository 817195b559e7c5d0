package utils

import (
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"reflect"
	"time"
)

func U64ToBytes(u uint64) []byte {
	return []byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	}
}

func FingerprintString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// FingerprintArgs hashes bound statement arguments in order, by the value
// the driver would receive. Pointers are followed, and values keep their
// type so 1 and "1" do not collide.
func FingerprintArgs(args []any) uint64 {
	h := fnv.New64a()
	for i, a := range args {
		if i > 0 {
			h.Write([]byte{0})
		}
		switch v := driverValue(a).(type) {
		case nil:
			h.Write([]byte("<nil>"))
		case []byte:
			h.Write([]byte("[]byte:"))
			h.Write(v)
		case time.Time:
			h.Write([]byte("time:"))
			h.Write([]byte(v.UTC().Format(time.RFC3339Nano)))
		default:
			fmt.Fprintf(h, "%T:%v", v, v)
		}
	}
	return h.Sum64()
}

func driverValue(a any) any {
	if v, err := driver.DefaultParameterConverter.ConvertValue(a); err == nil {
		return v
	}
	rv := reflect.ValueOf(a)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
