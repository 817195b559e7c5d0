package dialect

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// RenderValue renders v as a SQL literal for logs.
	RenderValue(v any) string
	// BindType is the sqlx bind type used to rebind '?' placeholders.
	BindType() int
	// LimitOffset appends a row limit and offset to a select statement.
	LimitOffset(sql string, offset, limit int) string
}

// ForDriver returns the dialect matching a database/sql driver name.
func ForDriver(driverName string) Dialect {
	switch strings.ToLower(driverName) {
	case "pgx", "pgx/v5", "postgres", "postgresql":
		return NewPostgresDialect()
	case "sqlite3", "sqlite":
		return NewSQLiteDialect()
	case "sqlserver", "mssql":
		return NewSQLServerDialect()
	case "mysql", "tidb":
		return NewMySQLDialect()
	}
	return NewSQLiteDialect()
}

// Rebind converts '?' placeholders to the dialect's style.
func Rebind(d Dialect, query string) string {
	return sqlx.Rebind(d.BindType(), query)
}

// Inline renders query with its '?' placeholders replaced by literal
// values. It is meant for logs only; never execute the result.
func Inline(d Dialect, query string, args []any) string {
	var sb strings.Builder
	sb.Grow(len(query) + 16*len(args))
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '?' && n < len(args) {
			sb.WriteString(d.RenderValue(args[n]))
			n++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// limitOffset renders the LIMIT/OFFSET suffix shared by postgres, mysql and
// sqlite. A non-positive limit renders no LIMIT.
func limitOffset(sql string, offset, limit int) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(sql, " \t\n;"))
	if limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(offset))
	}
	return sb.String()
}
