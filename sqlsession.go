// Package sqlsession opens intercepting SQL sessions from a YAML
// configuration file. Every statement a session runs passes through an
// ordered listener pipeline that may rewrite a per-call copy of it before
// it reaches the database.
//
//	eng, err := sqlsession.Open(ctx, "sqlsession.yaml", map[string]any{"User": User{}})
//	s, err := eng.OpenSession()
//	defer s.Close()
//	u, err := session.One[User](ctx, s, "users.selectById", 42)
package sqlsession

import (
	"context"

	"github.com/Konsultn-Engineering/sqlsession/config"
	"github.com/Konsultn-Engineering/sqlsession/engine"
	"github.com/Konsultn-Engineering/sqlsession/executor"
	"github.com/Konsultn-Engineering/sqlsession/listener"
	"github.com/Konsultn-Engineering/sqlsession/session"

	_ "github.com/Konsultn-Engineering/sqlsession/providers/postgres"
	_ "github.com/Konsultn-Engineering/sqlsession/providers/sqlite"
	_ "github.com/Konsultn-Engineering/sqlsession/providers/sqlserver"
)

type (
	Engine          = engine.Engine
	Session         = session.Session
	Mapper          = session.Mapper
	RowBounds       = executor.RowBounds
	ResultHandler   = executor.ResultHandler
	ResultContext   = executor.ResultContext
	BatchResult     = executor.BatchResult
	Listener        = listener.Listener
	ListenerContext = listener.Context
)

var DefaultRowBounds = executor.DefaultRowBounds

func NewRowBounds(offset, limit int) RowBounds {
	return executor.NewRowBounds(offset, limit)
}

// Open loads the configuration file at path and builds an engine from it.
// types maps result type aliases used in mapper files to sample values of
// the Go types they stand for.
func Open(ctx context.Context, path string, types map[string]any, opts ...engine.Option) (*Engine, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return engine.FromConfig(ctx, c, types, opts...)
}
