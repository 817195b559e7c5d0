package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"` // json or console
	Development bool   `yaml:"development"`
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Encoding == "" {
		l.Encoding = "json"
	}
}

func (l *LoggingConfig) validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch l.Encoding {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("logging: unknown encoding %q", l.Encoding)
}

// Build creates the logger described by l.
func (l LoggingConfig) Build() (*zap.Logger, error) {
	l.applyDefaults()
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = l.Encoding
	return zc.Build()
}
