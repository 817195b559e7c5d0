// Package sqlite registers the "sqlite" provider on mattn/go-sqlite3.
package sqlite

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/Konsultn-Engineering/sqlsession/connector"
	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/dialect"
	_ "github.com/mattn/go-sqlite3"
)

const DriverName = "sqlite3"

type Provider struct{}

func init() {
	connector.Register("sqlite", &Provider{})
}

// BuildDSN returns the file path (":memory:" when empty) followed by the
// configured params as a query string.
func BuildDSN(cfg connector.Config) string {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}
	if len(cfg.Params) == 0 {
		return path
	}

	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := make([]string, 0, len(keys))
	for _, k := range keys {
		q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(cfg.Params[k]))
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	dsn := BuildDSN(cfg)
	// every connection to ":memory:" is a separate database
	if strings.HasPrefix(dsn, ":memory:") {
		cfg.Pool.MaxOpen = 1
	}

	db, err := database.Open(ctx, DriverName, dsn, cfg.Pool.Options())
	if err != nil {
		return nil, err
	}
	return connector.NewConnection(db, DriverName, dialect.NewSQLiteDialect()), nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewSQLiteDialect()
}

func (p *Provider) HealthCheck(ctx context.Context, conn connector.Connection) error {
	return conn.Health(ctx)
}
