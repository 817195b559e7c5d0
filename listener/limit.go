package listener

import (
	"regexp"

	"github.com/Konsultn-Engineering/sqlsession/dialect"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
)

var hasLimit = regexp.MustCompile(`(?i)\b(LIMIT|FETCH\s+NEXT|TOP)\b`)

// Limit caps select statements that carry no row limit of their own.
type Limit struct {
	Dialect dialect.Dialect
	MaxRows int
}

func (l *Limit) OnStatement(ctx *Context) error {
	stmt := ctx.Statement()
	if l.MaxRows <= 0 || stmt.Kind() != mapping.KindSelect {
		return nil
	}
	sql := stmt.SQL()
	if hasLimit.MatchString(sql) {
		return nil
	}
	d := l.Dialect
	if d == nil && stmt.Configuration() != nil {
		d = stmt.Configuration().Settings().Dialect
	}
	if d == nil {
		return nil
	}
	return setSQL(stmt, d.LimitOffset(sql, 0, l.MaxRows))
}
