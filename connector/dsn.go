package connector

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// DSNBuilder renders URL style DSNs (postgres://, sqlserver://). Empty
// parameter values are dropped; the query is sorted by key.
type DSNBuilder struct {
	u      url.URL
	port   int
	params url.Values
}

func NewDSNBuilder(scheme string) *DSNBuilder {
	return &DSNBuilder{u: url.URL{Scheme: scheme}, params: url.Values{}}
}

func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	switch {
	case username == "":
		b.u.User = nil
	case password == "":
		b.u.User = url.User(username)
	default:
		b.u.User = url.UserPassword(username, password)
	}
	return b
}

func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.u.Host = host
	b.port = port
	return b
}

// Database sets the URL path. sqlserver takes the database as a parameter
// instead.
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	if name == "" {
		b.u.Path = ""
	} else {
		b.u.Path = "/" + name
	}
	return b
}

func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params.Set(key, value)
	}
	return b
}

func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		b.Param(k, v)
	}
	return b
}

// WithPostgresDefaults adds sslmode and connect_timeout unless already set.
func (b *DSNBuilder) WithPostgresDefaults() *DSNBuilder {
	if !b.params.Has("sslmode") {
		b.Param("sslmode", "prefer")
	}
	if !b.params.Has("connect_timeout") {
		b.Param("connect_timeout", "10")
	}
	return b
}

func (b *DSNBuilder) Validate() error {
	if b.u.Host == "" {
		return fmt.Errorf("host is required")
	}
	if b.port <= 0 || b.port > 65535 {
		return fmt.Errorf("invalid port: %d", b.port)
	}
	return nil
}

func (b *DSNBuilder) Build() string {
	u := b.u
	if b.port > 0 {
		u.Host = net.JoinHostPort(b.u.Host, strconv.Itoa(b.port))
	}
	u.RawQuery = b.params.Encode()
	return u.String()
}
