package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/sqlsession/executor"
)

// Mapper is a session bound to one statement namespace, so callers name
// statements without the namespace prefix.
type Mapper struct {
	session   *Session
	namespace string
}

// Mapper returns a handle for namespace. The namespace must have at least
// one registered statement.
func (s *Session) Mapper(namespace string) (*Mapper, error) {
	if !s.config.HasNamespace(namespace) {
		return nil, fmt.Errorf("Type %s is not known to the mapper registry.", namespace)
	}
	return &Mapper{session: s, namespace: namespace}, nil
}

// MapperOf returns the handle whose namespace is the type name of v, or its
// package-qualified name when only that is registered.
func (s *Session) MapperOf(v any) (*Mapper, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.New("Type <nil> is not known to the mapper registry.")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" && s.config.HasNamespace(t.Name()) {
		return s.Mapper(t.Name())
	}
	return s.Mapper(t.String())
}

func (m *Mapper) Namespace() string { return m.namespace }
func (m *Mapper) Session() *Session { return m.session }

func (m *Mapper) id(name string) string { return m.namespace + "." + name }

func (m *Mapper) SelectOne(ctx context.Context, name string, parameter any) (any, error) {
	return m.session.SelectOne(ctx, m.id(name), parameter)
}

func (m *Mapper) SelectList(ctx context.Context, name string, parameter any) ([]any, error) {
	return m.session.SelectList(ctx, m.id(name), parameter, executor.DefaultRowBounds)
}

func (m *Mapper) SelectPage(ctx context.Context, name string, parameter any, bounds executor.RowBounds) ([]any, error) {
	return m.session.SelectList(ctx, m.id(name), parameter, bounds)
}

func (m *Mapper) SelectMap(ctx context.Context, name string, parameter any, mapKey string) (map[any]any, error) {
	return m.session.SelectMap(ctx, m.id(name), parameter, mapKey, executor.DefaultRowBounds)
}

func (m *Mapper) Select(ctx context.Context, name string, parameter any, handler executor.ResultHandler) error {
	return m.session.Select(ctx, m.id(name), parameter, executor.DefaultRowBounds, handler)
}

func (m *Mapper) Insert(ctx context.Context, name string, parameter any) (int64, error) {
	return m.session.Insert(ctx, m.id(name), parameter)
}

func (m *Mapper) Update(ctx context.Context, name string, parameter any) (int64, error) {
	return m.session.Update(ctx, m.id(name), parameter)
}

func (m *Mapper) Delete(ctx context.Context, name string, parameter any) (int64, error) {
	return m.session.Delete(ctx, m.id(name), parameter)
}
