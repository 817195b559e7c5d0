package postgres

import (
	"context"
	"testing"

	"github.com/Konsultn-Engineering/sqlsession/connector"
	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(connector.Config{
		Host:     "localhost",
		Port:     5432,
		Database: "app",
		Username: "u",
		Password: "p",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://u:p@localhost:5432/app?connect_timeout=10&sslmode=disable", dsn)
}

func TestRegistered(t *testing.T) {
	p, ok := connector.Lookup("postgres")
	assert.True(t, ok)
	assert.Equal(t, "postgres", p.Dialect().Name())
}

func TestConnectRequiresHost(t *testing.T) {
	_, err := (&Provider{}).Connect(context.Background(), connector.Config{})
	assert.Error(t, err)
}
