package param

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `db:"city"`
}

type account struct {
	ID      int64
	Name    string `db:"user_name"`
	Address *address
	Tags    []string
}

func TestWrap(t *testing.T) {
	ids := []int{1, 2, 3}
	arr := [2]string{"a", "b"}
	blob := []byte("raw")
	named := map[string]any{"id": 1}
	acct := &account{ID: 1}

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{name: "Nil", input: nil, want: nil},
		{name: "Scalar", input: 42, want: 42},
		{name: "String", input: "x", want: "x"},
		{name: "Slice", input: ids, want: StrictMap{"list": ids}},
		{name: "Array", input: arr, want: StrictMap{"array": arr}},
		{name: "Bytes", input: blob, want: blob},
		{name: "NamedMap", input: named, want: named},
		{name: "Struct", input: acct, want: acct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.input))
		})
	}
}

func TestWrappedSequenceResolvesUnchanged(t *testing.T) {
	ids := []int64{4, 5, 6}
	v, err := Lookup(Wrap(ids), "list")
	require.NoError(t, err)
	assert.Equal(t, ids, v)

	arr := [3]int{7, 8, 9}
	v, err = Lookup(Wrap(arr), "array")
	require.NoError(t, err)
	assert.Equal(t, arr, v)

	v, err = Lookup(Wrap(ids), "list[1]")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestStrictMapMissingKey(t *testing.T) {
	m := StrictMap{"list": []int{1}, "extra": 2}
	_, err := m.Get("ids")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrBinding))
	assert.Equal(t, "Parameter 'ids' not found. Available parameters are [extra, list]", err.Error())

	_, err = Lookup(Wrap([]int{1}), "array")
	assert.True(t, errors.Is(err, sqlerr.ErrBinding))
	assert.Contains(t, err.Error(), "[list]")
}

func TestLookupProperties(t *testing.T) {
	acct := &account{ID: 9, Name: "ana", Address: &address{City: "Oslo"}, Tags: []string{"x", "y"}}
	now := time.Now()

	tests := []struct {
		name    string
		param   any
		path    string
		want    any
		wantErr bool
	}{
		{name: "StructField", param: acct, path: "ID", want: int64(9)},
		{name: "TaggedColumn", param: acct, path: "user_name", want: "ana"},
		{name: "Nested", param: acct, path: "Address.city", want: "Oslo"},
		{name: "Indexed", param: acct, path: "Tags[1]", want: "y"},
		{name: "NilIntermediate", param: &account{}, path: "Address.city", want: nil},
		{name: "UnknownField", param: acct, path: "missing", wantErr: true},
		{name: "PlainMapMissing", param: map[string]any{"a": 1}, path: "b", want: nil},
		{name: "TypedMap", param: map[string]string{"a": "z"}, path: "a", want: "z"},
		{name: "ScalarBindsItself", param: 5, path: "id", want: 5},
		{name: "TimeBindsItself", param: now, path: "at", want: now},
		{name: "ValuerBindsItself", param: sql.NullString{String: "v", Valid: true}, path: "x",
			want: sql.NullString{String: "v", Valid: true}},
		{name: "IndexOutOfRange", param: acct, path: "Tags[5]", wantErr: true},
		{name: "MalformedIndex", param: acct, path: "Tags[x]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(tt.param, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, sqlerr.ErrBinding))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
