package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Audit struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedBy string
}

type User struct {
	Audit
	ID        uint64 `db:"id"`
	FirstName string
	Email     string `db:"column:email_address;not null"`
	Nick      string `db:"nick,omitempty"`
	Secret    string `db:"-"`
	internal  int
}

type BlogPost struct {
	PostID int64
}

func TestIntrospect(t *testing.T) {
	tests := []struct {
		name        string
		inputType   reflect.Type
		expectError bool
		table       string
		fields      int
	}{
		{name: "Struct", inputType: reflect.TypeOf(User{}), table: "users", fields: 6},
		{name: "Pointer", inputType: reflect.TypeOf(&User{}), table: "users", fields: 6},
		{name: "CompoundName", inputType: reflect.TypeOf(BlogPost{}), table: "blog_posts", fields: 1},
		{name: "NotStruct", inputType: reflect.TypeOf(42), expectError: true},
		{name: "Nil", inputType: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := Introspect(tt.inputType)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, meta)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.table, meta.TableName)
			assert.Len(t, meta.Fields, tt.fields)
		})
	}
}

func TestFieldLookup(t *testing.T) {
	meta, err := Introspect(reflect.TypeOf(User{}))
	require.NoError(t, err)

	cases := map[string]string{
		"email_address": "Email",
		"Email":         "Email",
		"email":         "Email",
		"first_name":    "FirstName",
		"firstName":     "FirstName",
		"created_at":    "CreatedAt",
		"UpdatedBy":     "UpdatedBy",
		"nick":          "Nick",
	}
	for lookup, want := range cases {
		f, ok := meta.Field(lookup)
		if assert.True(t, ok, lookup) {
			assert.Equal(t, want, f.Name, lookup)
		}
	}

	_, ok := meta.Field("Secret")
	assert.False(t, ok)
	_, ok = meta.Field("internal")
	assert.False(t, ok)
}

func TestFieldValueThroughEmbedded(t *testing.T) {
	u := User{Audit: Audit{UpdatedBy: "ops"}, ID: 7}
	meta, err := Introspect(reflect.TypeOf(u))
	require.NoError(t, err)

	f, ok := meta.Field("UpdatedBy")
	require.True(t, ok)
	assert.Equal(t, "ops", meta.Value(reflect.ValueOf(u), f).Interface())
}

func TestIntrospectIsCached(t *testing.T) {
	ctx := New(WithCacheSize(4))
	a, err := ctx.Introspect(reflect.TypeOf(User{}))
	require.NoError(t, err)
	b, err := ctx.Introspect(reflect.TypeOf(&User{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "user_id", ColumnName("UserID"))
	assert.Equal(t, "http_server", ColumnName("HTTPServer"))
	assert.Equal(t, "already_snake", ColumnName("already_snake"))
	assert.Equal(t, "users", TableName("User"))
	assert.Equal(t, "people", TableName("Person"))
	assert.Equal(t, "order_items", TableName("OrderItem"))
	assert.Equal(t, "categories", TableName("Category"))
}
