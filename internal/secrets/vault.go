package secrets

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/vault/api"
)

// VaultConfig configures the Vault client. Zero values fall back to the
// standard VAULT_* environment variables.
type VaultConfig struct {
	Address       string
	Token         string
	Mount         string // KV v2 mount, default "secret"
	ClientTimeout time.Duration
}

// VaultSource reads client configurations from a Vault KV v2 engine.
// The secret at {mount}/data/{name} must hold CLIENT_ID, CLIENT_SECRET and SCOPE.
type VaultSource struct {
	client *api.Client
	mount  string
}

var _ Source = (*VaultSource)(nil)

// NewVaultSource creates a Vault-backed source.
func NewVaultSource(cfg VaultConfig) (*VaultSource, error) {
	apiCfg := api.DefaultConfig()
	if apiCfg.Error != nil {
		return nil, apiCfg.Error
	}

	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	if cfg.ClientTimeout > 0 {
		apiCfg.Timeout = cfg.ClientTimeout
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}

	return &VaultSource{
		client: client,
		mount:  mount,
	}, nil
}

// ClientConfig reads the named secret.
func (s *VaultSource) ClientConfig(_ context.Context, name string) (*ClientConfig, error) {
	secret, err := s.client.Logical().Read(path.Join(s.mount, "data", name))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s from Vault: %w", name, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	// KV v2 nests the payload under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	cfg := &ClientConfig{
		ClientID:     stringField(data, "CLIENT_ID"),
		ClientSecret: stringField(data, "CLIENT_SECRET"),
		Scope:        stringField(data, "SCOPE"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("secret %s: %w", name, err)
	}

	return cfg, nil
}

// stringField reads a field that may have been stored as a string or a number.
func stringField(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
