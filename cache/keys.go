package cache

import (
	"strconv"

	"github.com/Konsultn-Engineering/sqlsession/utils"
)

// Key identifies a query result in the local cache. Two calls share a key
// only when statement id, row bounds, final SQL and bound arguments agree.
type Key uint64

func NewKey(statementID string, offset, limit int, sql string, args []any) Key {
	return Key(utils.MixAll(
		utils.U64(statementID),
		utils.U64(strconv.Itoa(offset)+":"+strconv.Itoa(limit)),
		utils.FingerprintString(sql),
		utils.FingerprintArgs(args),
	))
}

// StatementKey identifies a prepared statement by its SQL text.
func StatementKey(sql string) uint64 {
	return utils.FingerprintString(sql)
}
