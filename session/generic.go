package session

import (
	"context"
	"fmt"

	"github.com/Konsultn-Engineering/sqlsession/executor"
)

// One runs SelectOne and asserts the result to T. No row yields the zero T.
func One[T any](ctx context.Context, s *Session, id string, parameter any) (T, error) {
	var zero T
	v, err := s.SelectOne(ctx, id, parameter)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("result of %s is %T, not %T", id, v, zero)
	}
	return t, nil
}

// List runs SelectList with default bounds and asserts every row to T.
func List[T any](ctx context.Context, s *Session, id string, parameter any) ([]T, error) {
	rows, err := s.SelectList(ctx, id, parameter, executor.DefaultRowBounds)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for i, v := range rows {
		t, ok := v.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("row %d of %s is %T, not %T", i, id, v, zero)
		}
		out = append(out, t)
	}
	return out, nil
}
