// Package secrets resolves credentials such as the graph database password
// from the environment, a JSON file or HashiCorp Vault.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Well-known secret keys.
const (
	KeyGraphPassword = "graph_password"
	KeyTemporalToken = "temporal_token"
)

// RefPrefix marks a configuration value that names a secret instead of
// holding it, as in "secret:graph_password".
const RefPrefix = "secret:"

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Config configures the secrets manager.
type Config struct {
	// Provider is "env", "file" or "vault".
	Provider string
	Vault    *VaultConfig
	File     *FileConfig
	// EnvPrefix defaults to "BATFISH_".
	EnvPrefix string
}

// DefaultConfig reads secrets from the environment only.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "BATFISH_"}
}

// Manager looks secrets up in its primary provider and falls back to the
// environment. Values are cached for the life of the manager.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager creates a manager for cfg. A nil cfg means DefaultConfig.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var fallback Provider = NewEnvProvider(cfg.EnvPrefix)

	var primary Provider
	switch cfg.Provider {
	case "vault":
		if cfg.Vault == nil {
			return nil, fmt.Errorf("vault config required for vault provider")
		}
		p, err := NewVaultProvider(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("create vault provider: %w", err)
		}
		primary = p
	case "file":
		if cfg.File == nil {
			return nil, fmt.Errorf("file config required for file provider")
		}
		p, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		primary = p
	case "env", "":
		primary, fallback = fallback, nil
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	return &Manager{primary: primary, fallback: fallback, cache: make(map[string]string)}, nil
}

// Get returns the secret stored under key.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	val, err := m.primary.Get(ctx, key)
	if (err != nil || val == "") && m.fallback != nil {
		val, err = m.fallback.Get(ctx, key)
	}
	if err != nil || val == "" {
		return "", fmt.Errorf("secret not found: %s", key)
	}

	m.mu.Lock()
	m.cache[key] = val
	m.mu.Unlock()
	return val, nil
}

// GetOrDefault returns the secret under key, or defaultVal when it is
// missing.
func (m *Manager) GetOrDefault(ctx context.Context, key, defaultVal string) string {
	val, err := m.Get(ctx, key)
	if err != nil {
		return defaultVal
	}
	return val
}

// Resolve returns value unchanged unless it is a secret reference, in which
// case the referenced secret is looked up.
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	key, ok := strings.CutPrefix(value, RefPrefix)
	if !ok {
		return value, nil
	}
	return m.Get(ctx, strings.TrimSpace(key))
}

// ClearCache forgets every looked-up secret.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}

// EnvProvider reads secrets from environment variables. The key
// graph_password is read from BATFISH_GRAPH_PASSWORD, then GRAPH_PASSWORD.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "BATFISH_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	name := strings.ToUpper(key)
	if val := os.Getenv(p.prefix + name); val != "" {
		return val, nil
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s%s", p.prefix, name)
}
