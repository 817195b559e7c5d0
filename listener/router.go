package listener

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	"github.com/Konsultn-Engineering/sqlsession/dialect"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"github.com/Konsultn-Engineering/sqlsession/param"
	"github.com/Konsultn-Engineering/sqlsession/schema"
	"github.com/Konsultn-Engineering/sqlsession/utils"
)

// Rule routes one logical table to Shards physical tables, picked by the
// value of the ShardKey property of the statement parameter.
type Rule struct {
	Table    string `yaml:"table"`
	ShardKey string `yaml:"shard_key"`
	Shards   int    `yaml:"shards"`
	// Format renders the physical name from the logical name and shard
	// index. Defaults to "%s_%02d".
	Format string `yaml:"format"`
	// Quote renders the physical name as a quoted identifier.
	Quote bool `yaml:"quote"`
}

// RuleFor builds a rule whose logical table is derived from the Go type of
// entity: User -> users.
func RuleFor(entity any, shardKey string, shards int) Rule {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return Rule{Table: schema.TableName(t.Name()), ShardKey: shardKey, Shards: shards}
}

type route struct {
	Rule
	pattern *regexp.Regexp
}

// TableRouter rewrites logical table names into shard table names.
type TableRouter struct {
	dialect dialect.Dialect
	routes  []route
}

// NewTableRouter validates rules and compiles their table patterns. d quotes
// physical names for rules with Quote set.
func NewTableRouter(d dialect.Dialect, rules ...Rule) (*TableRouter, error) {
	r := &TableRouter{dialect: d}
	for _, rule := range rules {
		if rule.Table == "" || rule.ShardKey == "" {
			return nil, fmt.Errorf("listener: routing rule needs table and shard key: %+v", rule)
		}
		if rule.Shards < 1 {
			return nil, fmt.Errorf("listener: routing rule for %s needs at least one shard", rule.Table)
		}
		if rule.Quote && d == nil {
			return nil, fmt.Errorf("listener: routing rule for %s quotes names but no dialect is set", rule.Table)
		}
		if rule.Format == "" {
			rule.Format = "%s_%02d"
		}
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(rule.Table) + `\b`)
		if err != nil {
			return nil, err
		}
		r.routes = append(r.routes, route{Rule: rule, pattern: pattern})
	}
	return r, nil
}

func (r *TableRouter) OnStatement(ctx *Context) error {
	stmt := ctx.Statement()
	sql := stmt.SQL()
	rewritten := sql
	for _, rt := range r.routes {
		if !rt.pattern.MatchString(rewritten) {
			continue
		}
		key, err := param.Lookup(ctx.Parameter(), rt.ShardKey)
		if err != nil {
			return fmt.Errorf("listener: routing %s: %w", rt.Table, err)
		}
		if key == nil {
			return fmt.Errorf("listener: routing %s: shard key %s is nil in statement %s", rt.Table, rt.ShardKey, stmt.ID())
		}
		physical := fmt.Sprintf(rt.Format, rt.Table, shardIndex(key, rt.Shards))
		if rt.Quote {
			physical = r.dialect.QuoteIdentifier(physical)
		}
		rewritten = rt.pattern.ReplaceAllLiteralString(rewritten, physical)
	}
	if rewritten == sql {
		return nil
	}
	return setSQL(stmt, rewritten)
}

// setSQL rewrites a cloned statement; a registered statement is never
// touched.
func setSQL(stmt *mapping.Statement, sql string) error {
	if err := stmt.SetSQL(sql); err != nil {
		return fmt.Errorf("listener: rewrite %s: %w", stmt.ID(), err)
	}
	return nil
}

// shardIndex maps integers by modulo and anything else by fnv hash.
func shardIndex(key any, shards int) int {
	v := reflect.ValueOf(key)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	n := uint64(shards)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i < 0 {
			i = -i
		}
		return int(uint64(i) % n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint() % n)
	case reflect.String:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil && i >= 0 {
			return int(uint64(i) % n)
		}
		return int(utils.U64(v.String()) % n)
	}
	return int(utils.U64(fmt.Sprint(key)) % n)
}
