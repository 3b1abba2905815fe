// Package secrets loads the OAuth client configuration used to talk to Slack.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the named secret does not exist.
var ErrNotFound = errors.New("secret not found")

// ClientConfig is the Slack app's OAuth client configuration.
// Field names match the keys stored in the secret backend.
type ClientConfig struct {
	ClientID     string `json:"CLIENT_ID" yaml:"CLIENT_ID"`
	ClientSecret string `json:"CLIENT_SECRET" yaml:"CLIENT_SECRET"`
	Scope        string `json:"SCOPE" yaml:"SCOPE"`
}

// Validate checks that every field needed for the OAuth flow is present.
func (c *ClientConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("CLIENT_ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("CLIENT_SECRET is required")
	}
	if c.Scope == "" {
		return fmt.Errorf("SCOPE is required")
	}
	return nil
}

// Source fetches a named client configuration.
type Source interface {
	ClientConfig(ctx context.Context, name string) (*ClientConfig, error)
}

// FileSource reads client configurations from a YAML file mapping secret
// names to their fields:
//
//	emo-dev-onboarding:
//	  CLIENT_ID: "123"
//	  CLIENT_SECRET: "abc"
//	  SCOPE: "bot"
//
// The file is read on every call; wrap it in a Cache to avoid that.
type FileSource struct {
	path string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a source backed by the YAML file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// ClientConfig reads the named entry from the file.
func (s *FileSource) ClientConfig(_ context.Context, name string) (*ClientConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var entries map[string]ClientConfig
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}

	cfg, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("secret %s: %w", name, err)
	}

	return &cfg, nil
}
