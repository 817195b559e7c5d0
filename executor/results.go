package executor

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/sqlsession/param"
	"github.com/Konsultn-Engineering/sqlsession/schema"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

// collect maps every row inside bounds to a value of type t. A nil type
// maps rows to map[string]any; a struct type is filled by column name; any
// other type scans a single column. With a handler the rows are streamed
// and the returned list is nil.
func collect(rows *sqlx.Rows, t reflect.Type, bounds RowBounds, handler ResultHandler) ([]any, error) {
	defer rows.Close()

	m, err := newRowMapper(rows, t)
	if err != nil {
		return nil, err
	}

	for skipped := 0; skipped < bounds.Offset; skipped++ {
		if !rows.Next() {
			return emptyResult(handler), rows.Err()
		}
	}

	limit := bounds.Limit
	if limit <= 0 {
		limit = NoRowLimit
	}

	var list []any
	rc := &ResultContext{}
	for rc.count < limit && !rc.stopped && rows.Next() {
		obj, err := m.mapRow(rows)
		if err != nil {
			return nil, err
		}
		rc.next(obj)
		if handler != nil {
			handler.HandleResult(rc)
			continue
		}
		list = append(list, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if handler == nil && list == nil {
		list = []any{}
	}
	return list, nil
}

func emptyResult(handler ResultHandler) []any {
	if handler != nil {
		return nil
	}
	return []any{}
}

type rowMapper struct {
	target  reflect.Type // nil for maps
	ptr     bool
	meta    *schema.EntityMeta
	columns []string
	// fields[i] is the struct field for column i, nil when unmapped
	fields []*schema.FieldMeta
}

func newRowMapper(rows *sqlx.Rows, t reflect.Type) (*rowMapper, error) {
	m := &rowMapper{}
	if t == nil {
		return m, nil
	}
	if t.Kind() == reflect.Ptr {
		m.ptr = true
		t = t.Elem()
	}
	m.target = t
	if t.Kind() != reflect.Struct || param.IsSingleValue(reflect.Zero(t).Interface()) {
		return m, nil
	}

	meta, err := schema.Introspect(t)
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	m.meta = meta
	m.columns = columns
	m.fields = make([]*schema.FieldMeta, len(columns))
	for i, col := range columns {
		if f, ok := meta.Field(col); ok {
			m.fields[i] = f
		}
	}
	return m, nil
}

func (m *rowMapper) mapRow(rows *sqlx.Rows) (any, error) {
	switch {
	case m.target == nil:
		return scanMap(rows)
	case m.meta != nil:
		return m.scanStruct(rows)
	default:
		return m.scanValue(rows)
	}
}

func scanMap(rows *sqlx.Rows) (map[string]any, error) {
	row := make(map[string]any)
	if err := rows.MapScan(row); err != nil {
		return nil, err
	}
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row, nil
}

func (m *rowMapper) scanStruct(rows *sqlx.Rows) (any, error) {
	v := reflect.New(m.target)
	elem := v.Elem()
	dest := make([]any, len(m.columns))
	for i, f := range m.fields {
		if f == nil {
			dest[i] = new(sql.RawBytes)
			continue
		}
		dest[i] = reflectx.FieldByIndexes(elem, f.Index).Addr().Interface()
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("map row to %s: %w", m.target, err)
	}
	if m.ptr {
		return v.Interface(), nil
	}
	return elem.Interface(), nil
}

func (m *rowMapper) scanValue(rows *sqlx.Rows) (any, error) {
	v := reflect.New(m.target)
	if err := rows.Scan(v.Interface()); err != nil {
		return nil, fmt.Errorf("map row to %s: %w", m.target, err)
	}
	if m.ptr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}
