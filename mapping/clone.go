package mapping

import (
	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
)

// Clone returns a mutable copy of def whose SQL source is a private static
// source over bound. Identity and metadata are shared by value; nothing the
// clone can change is reachable from def.
func Clone(def *Statement, bound *BoundSQL) (*Statement, error) {
	if def == nil {
		return nil, sqlerr.New(sqlerr.KindBinding, "cannot clone a nil statement")
	}
	if bound == nil || bound.SQL == "" {
		return nil, sqlerr.New(sqlerr.KindBinding, "statement %s bound to empty SQL", def.id)
	}

	c := *def
	c.source = NewStaticSource(bound.SQL, bound.ParameterMappings)
	c.mutable = true
	return &c, nil
}
