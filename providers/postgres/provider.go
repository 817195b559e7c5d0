// Package postgres registers the "postgres" provider, backed by a pgx pool.
package postgres

import (
	"context"
	"time"

	"github.com/Konsultn-Engineering/sqlsession/connector"
	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/dialect"
)

const DriverName = "pgx"

type Provider struct{}

func init() {
	connector.Register("postgres", &Provider{})
}

// BuildDSN renders cfg as a postgres URL.
func BuildDSN(cfg connector.Config) string {
	return connector.NewDSNBuilder("postgres").
		Auth(cfg.Username, cfg.Password).
		Host(cfg.Host, cfg.Port).
		Database(cfg.Database).
		Param("sslmode", cfg.SSLMode).
		Params(cfg.Params).
		WithPostgresDefaults().
		Build()
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	if err := cfg.ValidateNetwork(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}

	// apply defaults
	if cfg.Pool.MaxOpen <= 0 {
		cfg.Pool.MaxOpen = 10
	}
	if cfg.Pool.MaxLifetime == 0 {
		cfg.Pool.MaxLifetime = time.Hour
	}
	if cfg.Pool.MaxIdleTime == 0 {
		cfg.Pool.MaxIdleTime = 30 * time.Minute
	}

	h, err := database.OpenPgx(ctx, BuildDSN(cfg), cfg.Pool.Options())
	if err != nil {
		return nil, err
	}
	return &connection{handle: h, dialect: dialect.NewPostgresDialect()}, nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}

func (p *Provider) HealthCheck(ctx context.Context, conn connector.Connection) error {
	return conn.Health(ctx)
}

type connection struct {
	handle  *database.PgxHandle
	dialect dialect.Dialect
}

func (c *connection) DB() database.DB          { return c.handle }
func (c *connection) DriverName() string       { return DriverName }
func (c *connection) Dialect() dialect.Dialect { return c.dialect }

func (c *connection) Health(ctx context.Context) error {
	return c.handle.Pool().Ping(ctx)
}

func (c *connection) Stats() connector.ConnectionStats {
	s := c.handle.Pool().Stat()
	return connector.ConnectionStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		WaitCount:       s.EmptyAcquireCount(),
	}
}

func (c *connection) Close() error {
	return c.handle.Close()
}
