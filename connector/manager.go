package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type standardConnector struct {
	provider Provider
	config   Config
}

var globalManager = &Manager{
	providers: make(map[string]Provider),
}

type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// Register makes a provider available by name. Providers call it from init.
func Register(name string, provider Provider) {
	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()
	globalManager.providers[name] = provider
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	names := make([]string, 0, len(globalManager.providers))
	for name := range globalManager.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, bool) {
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	p, ok := globalManager.providers[name]
	return p, ok
}

func New(name string, config Config) (Connector, error) {
	provider, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("provider %s not registered", name)
	}
	return &standardConnector{provider: provider, config: config}, nil
}

// Open connects through the named provider, retrying when the config asks
// for it and bounding the attempt by ConnectTimeout.
func Open(ctx context.Context, name string, config Config) (Connection, error) {
	c, err := New(name, config)
	if err != nil {
		return nil, err
	}
	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}
	if config.Retry != nil {
		conn, err := c.ConnectWithRetry(ctx, config.Retry.Options())
		if err != nil {
			return nil, fmt.Errorf("failed to connect after %d retries: %w", config.Retry.MaxRetries, err)
		}
		return conn, nil
	}
	return c.Connect(ctx)
}

func (c *standardConnector) Connect(ctx context.Context) (Connection, error) {
	return c.provider.Connect(ctx, c.config)
}

func (c *standardConnector) ConnectWithRetry(ctx context.Context, opts RetryOptions) (Connection, error) {
	return retryConnect(ctx, opts, c.Connect)
}

func (c *standardConnector) Close() error {
	return nil
}
