// Package config reads the YAML file an engine is opened from.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Konsultn-Engineering/sqlsession/connector"
	"github.com/Konsultn-Engineering/sqlsession/dialect"
	"github.com/Konsultn-Engineering/sqlsession/executor"
	"github.com/Konsultn-Engineering/sqlsession/listener"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider     string           `yaml:"provider"`
	Connection   connector.Config `yaml:"connection"`
	Session      SessionConfig    `yaml:"session"`
	Logging      LoggingConfig    `yaml:"logging"`
	Mappers      []string         `yaml:"mappers"`
	WatchMappers bool             `yaml:"watch_mappers"`
	Sharding     []listener.Rule  `yaml:"sharding"`
	// MaxRows caps select statements that have no limit of their own.
	MaxRows int `yaml:"max_rows"`
	// LogStatements logs every statement after the listener pipeline ran.
	LogStatements bool `yaml:"log_statements"`
}

type SessionConfig struct {
	ExecutorType            string        `yaml:"executor_type"`
	AutoCommit              bool          `yaml:"auto_commit"`
	LocalCacheSize          int           `yaml:"local_cache_size"`
	LocalCacheScope         string        `yaml:"local_cache_scope"`
	StatementCacheSize      int           `yaml:"statement_cache_size"`
	DefaultStatementTimeout time.Duration `yaml:"default_statement_timeout"`
	DefaultFetchSize        int           `yaml:"default_fetch_size"`
}

// Load reads path, expands environment variables, applies defaults and
// validates the result. Relative mapper paths are resolved against the
// directory of path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, m := range cfg.Mappers {
		if !filepath.IsAbs(m) {
			cfg.Mappers[i] = filepath.Join(base, m)
		}
	}
	if p := cfg.Connection.Path; p != "" && p != ":memory:" && !filepath.IsAbs(p) && cfg.Provider == "sqlite" {
		cfg.Connection.Path = filepath.Join(base, p)
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} references with environment values. Any other
// '$' is literal.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// Parse decodes a YAML document, then applies defaults and validates.
// ${NAME} references are expanded from the environment first.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Session.ExecutorType == "" {
		c.Session.ExecutorType = string(executor.TypeSimple)
	}
	if c.Session.LocalCacheScope == "" {
		c.Session.LocalCacheScope = string(mapping.ScopeSession)
	}
	if c.Session.LocalCacheSize <= 0 {
		c.Session.LocalCacheSize = 256
	}
	if c.Session.StatementCacheSize <= 0 {
		c.Session.StatementCacheSize = 64
	}
	c.Logging.applyDefaults()
}

func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if _, ok := connector.Lookup(c.Provider); !ok {
		return fmt.Errorf("unknown provider %q (registered: %v)", c.Provider, connector.Providers())
	}
	if _, err := executor.ParseType(c.Session.ExecutorType); err != nil {
		return err
	}
	switch mapping.LocalCacheScope(c.Session.LocalCacheScope) {
	case mapping.ScopeSession, mapping.ScopeStatement:
	default:
		return fmt.Errorf("invalid local_cache_scope %q", c.Session.LocalCacheScope)
	}
	if c.Session.DefaultStatementTimeout < 0 {
		return fmt.Errorf("default_statement_timeout must not be negative")
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative")
	}
	if c.WatchMappers && len(c.Mappers) == 0 {
		return fmt.Errorf("watch_mappers needs at least one mapper path")
	}
	if _, err := listener.NewTableRouter(dialect.ForDriver(c.Provider), c.Sharding...); err != nil {
		return err
	}
	return c.Logging.validate()
}

// ExecutorType returns the parsed executor type.
func (c *Config) ExecutorType() executor.Type {
	t, _ := executor.ParseType(c.Session.ExecutorType)
	return t
}
