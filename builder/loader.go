// Package builder builds statement definitions from YAML mapper files and
// keeps them current while the files change.
//
// A mapper file declares one namespace:
//
//	namespace: users
//	statements:
//	  - id: selectById
//	    kind: select
//	    result_type: User
//	    sql: |
//	      SELECT * FROM users WHERE id = #{id}
//
// A plain YAML scalar ends at " #", so sql holding a #{...} placeholder must
// be quoted or written as a block scalar. Parse rejects the plain form.
package builder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MapperFile is the YAML document of one mapper file.
type MapperFile struct {
	Namespace  string         `yaml:"namespace"`
	Statements []StatementDef `yaml:"statements"`
}

type StatementDef struct {
	ID         string        `yaml:"id"`
	Kind       string        `yaml:"kind"`
	SQL        string        `yaml:"sql"`
	ResultType string        `yaml:"result_type"`
	Timeout    time.Duration `yaml:"timeout"`
	FetchSize  int           `yaml:"fetch_size"`
	FlushCache *bool         `yaml:"flush_cache"`
	UseCache   *bool         `yaml:"use_cache"`
}

// Parse decodes a mapper document and builds its statements against cfg.
// Nothing is registered.
func Parse(cfg *mapping.Configuration, data []byte, resource string) (string, []*mapping.Statement, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("parse mapper %s: %w", resource, err)
	}
	if err := checkPlainSQL(&doc); err != nil {
		return "", nil, fmt.Errorf("mapper %s: %w", resource, err)
	}

	var mf MapperFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return "", nil, fmt.Errorf("parse mapper %s: %w", resource, err)
	}

	ns := strings.TrimSpace(mf.Namespace)
	if ns == "" {
		return "", nil, fmt.Errorf("mapper %s: namespace is required", resource)
	}

	stmts := make([]*mapping.Statement, 0, len(mf.Statements))
	for i, def := range mf.Statements {
		s, err := buildStatement(cfg, ns, def, resource)
		if err != nil {
			return "", nil, fmt.Errorf("mapper %s: statement #%d: %w", resource, i+1, err)
		}
		stmts = append(stmts, s)
	}
	return ns, stmts, nil
}

// checkPlainSQL rejects an unquoted sql scalar followed by a comment on its
// line; YAML has already cut the text at the '#'.
func checkPlainSQL(n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := checkPlainSQL(c); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "sql" && v.Kind == yaml.ScalarNode && v.Style&quotedStyles == 0 &&
				(k.LineComment != "" || v.LineComment != "") {
				return fmt.Errorf("line %d: sql contains an unquoted #{...}; quote it or use a block scalar", v.Line)
			}
			if err := checkPlainSQL(v); err != nil {
				return err
			}
		}
	}
	return nil
}

const quotedStyles = yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle | yaml.LiteralStyle | yaml.FoldedStyle

func buildStatement(cfg *mapping.Configuration, ns string, def StatementDef, resource string) (*mapping.Statement, error) {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	if strings.Contains(id, ".") {
		return nil, fmt.Errorf("id %q must not contain a dot", id)
	}
	kind, err := mapping.ParseKind(def.Kind)
	if err != nil {
		return nil, err
	}
	src, err := mapping.NewTemplateSource(def.SQL)
	if err != nil {
		return nil, err
	}
	resultType, err := cfg.ResolveType(def.ResultType)
	if err != nil {
		return nil, err
	}

	opts := []mapping.StatementOption{
		mapping.WithResource(resource),
		mapping.WithResultType(resultType),
		mapping.WithTimeout(def.Timeout),
		mapping.WithFetchSize(def.FetchSize),
	}
	if def.FlushCache != nil {
		opts = append(opts, mapping.WithFlushCache(*def.FlushCache))
	}
	if def.UseCache != nil {
		opts = append(opts, mapping.WithUseCache(*def.UseCache))
	}
	return mapping.NewStatement(cfg, ns+"."+id, kind, src, opts...), nil
}

// Loader registers mapper files into a configuration and remembers which
// namespace each file owns.
type Loader struct {
	cfg    *mapping.Configuration
	logger *zap.Logger

	mu    sync.Mutex
	files map[string]string // path -> namespace
}

func NewLoader(cfg *mapping.Configuration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, logger: logger.Named("builder"), files: make(map[string]string)}
}

// Load registers every mapper file found in paths. Directories are walked
// for .yaml and .yml files.
func (l *Loader) Load(paths ...string) error {
	for _, p := range paths {
		files, err := MapperFiles(p)
		if err != nil {
			return err
		}
		for _, f := range files {
			if _, err := l.LoadFile(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadFile parses path and swaps its namespace into the configuration. A
// parse error leaves the registered statements as they were.
func (l *Loader) LoadFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	ns, stmts, err := Parse(l.cfg, data, abs)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for other, owner := range l.files {
		if owner == ns && other != abs {
			return "", fmt.Errorf("mapper %s: namespace %s is already defined in %s", abs, ns, other)
		}
	}
	if old, ok := l.files[abs]; ok && old != ns {
		if err := l.cfg.ReplaceNamespace(old, nil); err != nil {
			return "", err
		}
	}
	if err := l.cfg.ReplaceNamespace(ns, stmts); err != nil {
		return "", err
	}
	l.files[abs] = ns
	l.logger.Debug("mapper loaded", zap.String("path", abs), zap.String("namespace", ns), zap.Int("statements", len(stmts)))
	return ns, nil
}

// Remove unregisters the namespace loaded from path.
func (l *Loader) Remove(path string) (string, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ns, ok := l.files[abs]
	if !ok {
		return "", false, nil
	}
	delete(l.files, abs)
	if err := l.cfg.ReplaceNamespace(ns, nil); err != nil {
		return "", false, err
	}
	l.logger.Debug("mapper removed", zap.String("path", abs), zap.String("namespace", ns))
	return ns, true, nil
}

// Files lists the loaded mapper files, sorted.
func (l *Loader) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.files))
	for f := range l.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// IsMapperFile reports whether path has a mapper file extension.
func IsMapperFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// MapperFiles returns path itself when it is a file, or the mapper files
// below it when it is a directory. Hidden directories are skipped.
func MapperFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsMapperFile(p) {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
