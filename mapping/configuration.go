package mapping

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Konsultn-Engineering/sqlsession/dialect"
)

// LocalCacheScope controls how long query results stay in a session's
// local cache.
type LocalCacheScope string

const (
	ScopeSession   LocalCacheScope = "session"
	ScopeStatement LocalCacheScope = "statement"
)

// Settings are configuration-wide defaults read by executors.
type Settings struct {
	LocalCacheScope         LocalCacheScope
	DefaultStatementTimeout time.Duration
	DefaultFetchSize        int
	Dialect                 dialect.Dialect
}

// Configuration is the statement registry. Lookups may run concurrently
// from many sessions; reloads swap whole statements in and out but never
// modify a registered one.
type Configuration struct {
	mu         sync.RWMutex
	statements map[string]*Statement
	shortNames map[string][]string
	namespaces map[string]int
	types      map[string]reflect.Type
	settings   Settings
}

type Option func(*Configuration)

func WithSettings(s Settings) Option {
	return func(c *Configuration) { c.settings = s }
}

// NewConfiguration creates an empty registry with the builtin type aliases.
func NewConfiguration(opts ...Option) *Configuration {
	c := &Configuration{
		statements: make(map[string]*Statement),
		shortNames: make(map[string][]string),
		namespaces: make(map[string]int),
		types:      make(map[string]reflect.Type),
		settings:   Settings{LocalCacheScope: ScopeSession},
	}
	for alias, t := range builtinTypes {
		c.types[alias] = t
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settings.LocalCacheScope == "" {
		c.settings.LocalCacheScope = ScopeSession
	}
	if c.settings.Dialect == nil {
		c.settings.Dialect = dialect.NewSQLiteDialect()
	}
	return c
}

// Settings returns the configuration defaults.
func (c *Configuration) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// AddStatement registers s. Ids must be unique.
func (c *Configuration) AddStatement(s *Statement) error {
	if s == nil || s.id == "" {
		return fmt.Errorf("mapping: statement without id")
	}
	if s.mutable {
		return fmt.Errorf("mapping: cannot register cloned statement %s", s.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.statements[s.id]; exists {
		return fmt.Errorf("mapping: statement %s already registered", s.id)
	}
	c.put(s)
	return nil
}

func (c *Configuration) put(s *Statement) {
	c.statements[s.id] = s
	if ns := s.Namespace(); ns != "" {
		c.namespaces[ns]++
		short := s.id[len(ns)+1:]
		c.shortNames[short] = append(c.shortNames[short], s.id)
	}
}

func (c *Configuration) remove(id string) {
	s, ok := c.statements[id]
	if !ok {
		return
	}
	delete(c.statements, id)
	ns := s.Namespace()
	if ns == "" {
		return
	}
	if c.namespaces[ns]--; c.namespaces[ns] <= 0 {
		delete(c.namespaces, ns)
	}
	short := id[len(ns)+1:]
	ids := c.shortNames[short]
	for i, full := range ids {
		if full == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(c.shortNames, short)
	} else {
		c.shortNames[short] = ids
	}
}

// Statement looks up a statement by full id, or by its short name when that
// is unique across namespaces.
func (c *Configuration) Statement(id string) (*Statement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.statements[id]; ok {
		return s, nil
	}
	switch ids := c.shortNames[id]; len(ids) {
	case 0:
		return nil, fmt.Errorf("mapping: mapped statements collection does not contain value for %s", id)
	case 1:
		return c.statements[ids[0]], nil
	default:
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		return nil, fmt.Errorf("mapping: %s is ambiguous in mapped statements collection (try using the full name including the namespace): %s",
			id, strings.Join(sorted, ", "))
	}
}

// HasStatement reports whether id resolves to exactly one statement.
func (c *Configuration) HasStatement(id string) bool {
	_, err := c.Statement(id)
	return err == nil
}

// HasNamespace reports whether any statement is registered under ns.
func (c *Configuration) HasNamespace(ns string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namespaces[ns] > 0
}

// Namespaces returns the registered namespaces, sorted.
func (c *Configuration) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.namespaces))
	for ns := range c.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// ReplaceNamespace atomically swaps every statement of ns for stmts. All of
// stmts must belong to ns. Sessions already holding an old statement keep
// using it untouched.
func (c *Configuration) ReplaceNamespace(ns string, stmts []*Statement) error {
	seen := make(map[string]struct{}, len(stmts))
	for _, s := range stmts {
		if s.Namespace() != ns {
			return fmt.Errorf("mapping: statement %s is not in namespace %s", s.id, ns)
		}
		if s.mutable {
			return fmt.Errorf("mapping: cannot register cloned statement %s", s.id)
		}
		if _, dup := seen[s.id]; dup {
			return fmt.Errorf("mapping: statement %s defined twice", s.id)
		}
		seen[s.id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.statements {
		if s.Namespace() == ns {
			c.remove(id)
		}
	}
	for _, s := range stmts {
		c.put(s)
	}
	return nil
}
