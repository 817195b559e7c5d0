package dialect

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

type SQLServer struct {
	MySQL
}

func NewSQLServerDialect() Dialect {
	return &SQLServer{}
}

func (SQLServer) Name() string { return "sqlserver" }

func (SQLServer) BindType() int { return sqlx.AT }

func (SQLServer) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (s SQLServer) RenderValue(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "1"
		}
		return "0"
	}
	return s.MySQL.RenderValue(v)
}

// LimitOffset uses OFFSET ... FETCH, which requires an ORDER BY in the
// statement.
func (SQLServer) LimitOffset(sql string, offset, limit int) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(sql, " \t\n;"))
	if offset <= 0 && limit <= 0 {
		return sb.String()
	}
	sb.WriteString(" OFFSET ")
	sb.WriteString(strconv.Itoa(max(offset, 0)))
	sb.WriteString(" ROWS")
	if limit > 0 {
		sb.WriteString(" FETCH NEXT ")
		sb.WriteString(strconv.Itoa(limit))
		sb.WriteString(" ROWS ONLY")
	}
	return sb.String()
}
