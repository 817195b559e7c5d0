// Package connector opens database connections through registered providers.
package connector

import (
	"context"
	"fmt"

	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/dialect"
)

// Connection is an open, pooled database.
type Connection interface {
	DB() database.DB
	DriverName() string
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

type Connector interface {
	Connect(ctx context.Context) (Connection, error)
	ConnectWithRetry(ctx context.Context, opts RetryOptions) (Connection, error)
	Close() error
}

// NewConnection wraps an opened handle. Providers that need more than a
// database/sql pool implement Connection themselves.
func NewConnection(db database.DB, driverName string, d dialect.Dialect) Connection {
	return &sqlConnection{db: db, driverName: driverName, dialect: d}
}

type sqlConnection struct {
	db         database.DB
	driverName string
	dialect    dialect.Dialect
}

func (c *sqlConnection) DB() database.DB          { return c.db }
func (c *sqlConnection) DriverName() string       { return c.driverName }
func (c *sqlConnection) Dialect() dialect.Dialect { return c.dialect }

func (c *sqlConnection) Health(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("not connected")
	}
	return c.db.PingContext(ctx)
}

func (c *sqlConnection) Stats() ConnectionStats {
	if c.db == nil {
		return ConnectionStats{}
	}
	return statsFrom(c.db.Stats())
}

func (c *sqlConnection) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
