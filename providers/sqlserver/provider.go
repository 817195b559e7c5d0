// Package sqlserver registers the "sqlserver" provider on microsoft/go-mssqldb.
package sqlserver

import (
	"context"

	"github.com/Konsultn-Engineering/sqlsession/connector"
	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/dialect"
	_ "github.com/microsoft/go-mssqldb"
)

const DriverName = "sqlserver"

type Provider struct{}

func init() {
	connector.Register("sqlserver", &Provider{})
}

// BuildDSN renders cfg as a sqlserver:// URL; the database goes in the
// "database" query parameter as go-mssqldb expects.
func BuildDSN(cfg connector.Config) string {
	b := connector.NewDSNBuilder("sqlserver").
		Auth(cfg.Username, cfg.Password).
		Host(cfg.Host, cfg.Port).
		Param("database", cfg.Database).
		Params(cfg.Params)
	switch cfg.SSLMode {
	case "disable":
		b.Param("encrypt", "disable")
	case "require", "verify-full":
		b.Param("encrypt", "true")
	}
	return b.Build()
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	if err := cfg.ValidateNetwork(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	db, err := database.Open(ctx, DriverName, BuildDSN(cfg), cfg.Pool.Options())
	if err != nil {
		return nil, err
	}
	return connector.NewConnection(db, DriverName, dialect.NewSQLServerDialect()), nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewSQLServerDialect()
}

func (p *Provider) HealthCheck(ctx context.Context, conn connector.Connection) error {
	return conn.Health(ctx)
}
