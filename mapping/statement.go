// Package mapping holds statement definitions and the registry that owns
// them. Registered statements are immutable and may be shared by any number
// of sessions; a call that needs to change one works on a Clone.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ErrImmutableStatement is returned when a registered statement is asked to
// change its SQL.
var ErrImmutableStatement = errors.New("mapping: statement is immutable; clone it first")

// Kind is the SQL command kind of a statement.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseKind parses "select", "insert", "update" or "delete".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "select":
		return KindSelect, nil
	case "insert":
		return KindInsert, nil
	case "update":
		return KindUpdate, nil
	case "delete":
		return KindDelete, nil
	}
	return KindUnknown, fmt.Errorf("mapping: unknown statement kind %q", s)
}

// Statement is a named statement definition.
type Statement struct {
	id         string
	kind       Kind
	resource   string
	source     SQLSource
	resultType reflect.Type
	timeout    time.Duration
	fetchSize  int
	flushCache bool
	useCache   bool
	config     *Configuration

	// mutable is set on clones only; their source is a private *StaticSource.
	mutable bool
}

type StatementOption func(*Statement)

// WithResultType sets the Go type each result row is mapped to. A nil type
// maps rows to map[string]any.
func WithResultType(t reflect.Type) StatementOption {
	return func(s *Statement) { s.resultType = t }
}

// WithTimeout sets the statement timeout; zero uses the configured default.
func WithTimeout(d time.Duration) StatementOption {
	return func(s *Statement) { s.timeout = d }
}

func WithFetchSize(n int) StatementOption {
	return func(s *Statement) { s.fetchSize = n }
}

// WithFlushCache overrides whether running the statement clears the local
// cache. Defaults to true for writes and false for selects.
func WithFlushCache(flush bool) StatementOption {
	return func(s *Statement) { s.flushCache = flush }
}

// WithUseCache overrides whether select results go to the local cache.
func WithUseCache(use bool) StatementOption {
	return func(s *Statement) { s.useCache = use }
}

// WithResource records where the statement was defined, for error reports.
func WithResource(resource string) StatementOption {
	return func(s *Statement) { s.resource = resource }
}

// NewStatement creates a statement definition owned by cfg.
func NewStatement(cfg *Configuration, id string, kind Kind, source SQLSource, opts ...StatementOption) *Statement {
	s := &Statement{
		id:         id,
		kind:       kind,
		source:     source,
		flushCache: kind != KindSelect,
		useCache:   kind == KindSelect,
		config:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Statement) ID() string                    { return s.id }
func (s *Statement) Kind() Kind                    { return s.kind }
func (s *Statement) Resource() string              { return s.resource }
func (s *Statement) Source() SQLSource             { return s.source }
func (s *Statement) ResultType() reflect.Type      { return s.resultType }
func (s *Statement) Timeout() time.Duration        { return s.timeout }
func (s *Statement) FetchSize() int                { return s.fetchSize }
func (s *Statement) FlushCache() bool              { return s.flushCache }
func (s *Statement) UseCache() bool                { return s.useCache }
func (s *Statement) Configuration() *Configuration { return s.config }
func (s *Statement) Mutable() bool                 { return s.mutable }

// Namespace is the id up to the last dot.
func (s *Statement) Namespace() string {
	if i := strings.LastIndexByte(s.id, '.'); i >= 0 {
		return s.id[:i]
	}
	return ""
}

// BoundSQL binds the statement against parameter.
func (s *Statement) BoundSQL(parameter any) (*BoundSQL, error) {
	if s.source == nil {
		return nil, fmt.Errorf("mapping: statement %s has no SQL source", s.id)
	}
	return s.source.BoundSQL(parameter)
}

// SQL returns the statement text: the bound text for clones, the template
// text otherwise.
func (s *Statement) SQL() string {
	switch src := s.source.(type) {
	case *StaticSource:
		return src.sql
	case *TemplateSource:
		return src.Text()
	}
	return ""
}

// ParameterMappings returns a copy of a clone's placeholder mappings.
func (s *Statement) ParameterMappings() []ParameterMapping {
	if src, ok := s.source.(*StaticSource); ok {
		return append([]ParameterMapping(nil), src.mappings...)
	}
	return nil
}

// SetSQL replaces the text of a cloned statement.
func (s *Statement) SetSQL(sql string) error {
	if !s.mutable {
		return ErrImmutableStatement
	}
	s.source.(*StaticSource).sql = sql
	return nil
}

// SetParameterMappings replaces the placeholder mappings of a cloned
// statement. Use it together with SetSQL when a rewrite adds or removes
// placeholders.
func (s *Statement) SetParameterMappings(mappings []ParameterMapping) error {
	if !s.mutable {
		return ErrImmutableStatement
	}
	s.source.(*StaticSource).mappings = append([]ParameterMapping(nil), mappings...)
	return nil
}
