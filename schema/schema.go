// Package schema resolves Go struct fields to column and property names.
// Metadata is built once per type with reflection and kept in an LRU cache.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FieldMeta describes one exported struct field.
type FieldMeta struct {
	Name   string // Go field name
	Column string // column name from the tag or snake_case of Name
	Index  []int
	Type   reflect.Type
}

// EntityMeta describes a struct type.
type EntityMeta struct {
	Type      reflect.Type
	Name      string
	TableName string
	Fields    []*FieldMeta

	byName   map[string]*FieldMeta
	byColumn map[string]*FieldMeta
}

// Field finds a field by column name, Go field name, or the case-insensitive
// Go field name, in that order.
func (m *EntityMeta) Field(name string) (*FieldMeta, bool) {
	if f, ok := m.byColumn[name]; ok {
		return f, true
	}
	if f, ok := m.byName[name]; ok {
		return f, true
	}
	if f, ok := m.byName[strings.ToLower(name)]; ok {
		return f, true
	}
	f, ok := m.byColumn[toSnakeCase(name)]
	return f, ok
}

// Value returns the field of struct value v. A nil embedded pointer on the
// way yields an invalid reflect.Value.
func (m *EntityMeta) Value(v reflect.Value, f *FieldMeta) reflect.Value {
	fv, err := v.FieldByIndexErr(f.Index)
	if err != nil {
		return reflect.Value{}
	}
	return fv
}

// Context holds configuration and the metadata cache.
type Context struct {
	tagName   string
	cacheSize int
	cache     *lru.Cache[reflect.Type, *EntityMeta]
}

type Option func(*Context)

// WithTagName sets the struct tag name to use for column mapping.
func WithTagName(tagName string) Option {
	return func(ctx *Context) { ctx.tagName = tagName }
}

// WithCacheSize sets the LRU cache size for struct metadata.
func WithCacheSize(size int) Option {
	return func(ctx *Context) { ctx.cacheSize = size }
}

// New creates a schema context.
func New(options ...Option) *Context {
	ctx := &Context{
		tagName:   "db",
		cacheSize: 256,
	}
	for _, opt := range options {
		opt(ctx)
	}
	cache, err := lru.New[reflect.Type, *EntityMeta](ctx.cacheSize)
	if err != nil {
		// only fails for non-positive sizes
		cache, _ = lru.New[reflect.Type, *EntityMeta](256)
	}
	ctx.cache = cache
	return ctx
}

var defaultContext = New()

// Introspect returns metadata for t using the package default context.
func Introspect(t reflect.Type) (*EntityMeta, error) {
	return defaultContext.Introspect(t)
}

// Introspect returns metadata for a struct type or pointer to struct type.
func (c *Context) Introspect(t reflect.Type) (*EntityMeta, error) {
	if t == nil {
		return nil, fmt.Errorf("schema: nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: expected struct, got %s", t.Kind())
	}

	if meta, ok := c.cache.Get(t); ok {
		return meta, nil
	}

	meta := &EntityMeta{
		Type:      t,
		Name:      t.Name(),
		TableName: TableName(t.Name()),
		byName:    make(map[string]*FieldMeta, t.NumField()),
		byColumn:  make(map[string]*FieldMeta, t.NumField()),
	}
	c.collect(meta, t, nil)

	c.cache.Add(t, meta)
	return meta, nil
}

// collect walks direct fields before embedded ones so outer fields shadow
// promoted fields of the same name.
func (c *Context) collect(meta *EntityMeta, t reflect.Type, parent []int) {
	var embedded []int
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous {
			ft := sf.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && sf.Tag.Get(c.tagName) == "" {
				embedded = append(embedded, i)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		column, skip := c.parseTag(sf)
		if skip {
			continue
		}
		if _, exists := meta.byName[sf.Name]; exists {
			continue
		}

		f := &FieldMeta{Name: sf.Name, Column: column, Index: childIndex(parent, i), Type: sf.Type}
		meta.Fields = append(meta.Fields, f)
		meta.byName[sf.Name] = f
		if _, exists := meta.byName[strings.ToLower(sf.Name)]; !exists {
			meta.byName[strings.ToLower(sf.Name)] = f
		}
		if _, exists := meta.byColumn[column]; !exists {
			meta.byColumn[column] = f
		}
	}

	for _, i := range embedded {
		ft := t.Field(i).Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		c.collect(meta, ft, childIndex(parent, i))
	}
}

func childIndex(parent []int, i int) []int {
	index := make([]int, 0, len(parent)+1)
	return append(append(index, parent...), i)
}

// parseTag accepts `db:"name"`, `db:"column:name;..."` and `db:"-"`.
func (c *Context) parseTag(sf reflect.StructField) (column string, skip bool) {
	tag := sf.Tag.Get(c.tagName)
	if tag == "-" {
		return "", true
	}
	for _, part := range strings.Split(tag, ";") {
		part, _, _ = strings.Cut(strings.TrimSpace(part), ",")
		if part == "" {
			continue
		}
		if name, ok := strings.CutPrefix(part, "column:"); ok {
			return name, false
		}
		if !strings.Contains(part, ":") && !strings.Contains(part, " ") {
			return part, false
		}
	}
	return ColumnName(sf.Name), false
}
