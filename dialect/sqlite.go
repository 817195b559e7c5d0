package dialect

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// SQLite renders like MySQL except for identifier quoting and booleans.
type SQLite struct {
	MySQL
}

func NewSQLiteDialect() Dialect {
	return &SQLite{}
}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) BindType() int { return sqlx.QUESTION }

func (SQLite) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s SQLite) RenderValue(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "1"
		}
		return "0"
	}
	return s.MySQL.RenderValue(v)
}

// LimitOffset uses LIMIT -1 when only an offset is given; sqlite rejects a
// bare OFFSET.
func (SQLite) LimitOffset(sql string, offset, limit int) string {
	if limit <= 0 && offset > 0 {
		return strings.TrimRight(sql, " \t\n;") + " LIMIT -1 OFFSET " + strconv.Itoa(offset)
	}
	return limitOffset(sql, offset, limit)
}
