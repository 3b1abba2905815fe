package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emojirades/onboarding/internal/logger"
	"github.com/emojirades/onboarding/internal/server"
	"github.com/emojirades/onboarding/internal/slackauth"
	"github.com/emojirades/onboarding/pkg/workspace"
)

const (
	SecretsBackendVault = "vault"
	SecretsBackendFile  = "file"

	StorageBackendRedis = "redis"
	StorageBackendS3    = "s3"

	defaultStateTTLSeconds = 300
	defaultListen          = ":8000"
	defaultAdminListen     = ":8080"
	defaultProductName     = "Emojirades"
	defaultVaultMount      = "secret"
)

// Config represents the top-level onboarding.yml configuration
type Config struct {
	Version string        `yaml:"version"`
	Server  ServerConfig  `yaml:"server"`
	Log     logger.Config `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Secrets SecretsConfig `yaml:"secrets"`
	Shards  ShardsConfig  `yaml:"shards"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig configures the public and admin listeners
type ServerConfig struct {
	Listen      string  `yaml:"listen"`
	AdminListen *string `yaml:"admin_listen"` // Empty disables the admin listener, unset defaults to :8080
	FallbackURL string  `yaml:"fallback_url"`
	ProductName string  `yaml:"product_name"`
}

// AdminAddr returns the admin listener address, empty when disabled.
func (s ServerConfig) AdminAddr() string {
	if s.AdminListen == nil {
		return ""
	}
	return *s.AdminListen
}

// RedisConfig locates the Redis instance holding handshakes and queues
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"` // Isolates environments sharing one Redis
}

// OAuthConfig configures the Slack OAuth endpoints
type OAuthConfig struct {
	AuthorizeURL    string        `yaml:"authorize_url"`
	AccessURL       string        `yaml:"access_url"`
	StateTTLSeconds int           `yaml:"state_ttl_seconds"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
}

// StateTTL returns the handshake lifetime.
func (o OAuthConfig) StateTTL() time.Duration {
	return time.Duration(o.StateTTLSeconds) * time.Second
}

// SecretsConfig selects where the Slack client configuration is read from
type SecretsConfig struct {
	Name     string        `yaml:"name"`
	Backend  string        `yaml:"backend"`
	File     string        `yaml:"file,omitempty"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 caches until invalidated
	Vault    VaultConfig   `yaml:"vault"`
}

// VaultConfig locates the Vault KV v2 mount holding secrets
type VaultConfig struct {
	Address string `yaml:"address"` // Falls back to VAULT_ADDR
	Token   string `yaml:"token"`   // Falls back to VAULT_TOKEN
	Mount   string `yaml:"mount"`
}

// ShardsConfig configures shard capacity and notification queues
type ShardsConfig struct {
	Limit       int    `yaml:"limit"`
	Dir         string `yaml:"dir"`
	QueuePrefix string `yaml:"queue_prefix"`
	AlertQueue  string `yaml:"alert_queue"`
}

// StorageConfig selects the object store for assignments and credentials
type StorageConfig struct {
	Backend   string   `yaml:"backend"`
	Bucket    string   `yaml:"bucket"` // Required for s3
	Directory string   `yaml:"directory"`
	S3        S3Config `yaml:"s3"`
}

// S3Config overrides the AWS defaults, mostly for S3-compatible stores
type S3Config struct {
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// Layout returns the object key layout.
func (c *Config) Layout() workspace.Layout {
	return workspace.NewLayout(c.Shards.Dir, c.Storage.Directory)
}

// Validate performs strict validation on the configuration and applies defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	c.applyDefaults()

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := validateURL("server.fallback_url", c.Server.FallbackURL); err != nil {
		return err
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Redis.Namespace == "" {
		return fmt.Errorf("redis.namespace is required")
	}

	if err := validateURL("oauth.authorize_url", c.OAuth.AuthorizeURL); err != nil {
		return err
	}
	if err := validateURL("oauth.access_url", c.OAuth.AccessURL); err != nil {
		return err
	}
	if c.OAuth.StateTTLSeconds <= 0 {
		return fmt.Errorf("oauth.state_ttl_seconds must be > 0, got %d", c.OAuth.StateTTLSeconds)
	}
	if c.OAuth.HTTPTimeout < 0 {
		return fmt.Errorf("oauth.http_timeout must be >= 0, got %s", c.OAuth.HTTPTimeout)
	}

	if c.Secrets.Name == "" {
		return fmt.Errorf("secrets.name is required")
	}
	switch c.Secrets.Backend {
	case SecretsBackendVault:
	case SecretsBackendFile:
		if c.Secrets.File == "" {
			return fmt.Errorf("secrets.file is required for the file backend")
		}
	default:
		return fmt.Errorf("secrets.backend must be '%s' or '%s', got '%s'", SecretsBackendVault, SecretsBackendFile, c.Secrets.Backend)
	}
	if c.Secrets.CacheTTL < 0 {
		return fmt.Errorf("secrets.cache_ttl must be >= 0, got %s", c.Secrets.CacheTTL)
	}

	if c.Shards.Limit <= 0 {
		return fmt.Errorf("shards.limit must be > 0, got %d", c.Shards.Limit)
	}
	if c.Shards.QueuePrefix == "" {
		return fmt.Errorf("shards.queue_prefix is required")
	}
	if c.Shards.AlertQueue == "" {
		return fmt.Errorf("shards.alert_queue is required")
	}

	switch c.Storage.Backend {
	case StorageBackendRedis:
	case StorageBackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be '%s' or '%s', got '%s'", StorageBackendRedis, StorageBackendS3, c.Storage.Backend)
	}
	if c.Shards.Dir == c.Storage.Directory {
		return fmt.Errorf("shards.dir and storage.directory must differ, both are '%s'", c.Shards.Dir)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.AdminListen == nil {
		addr := defaultAdminListen
		c.Server.AdminListen = &addr
	}
	if c.Server.FallbackURL == "" {
		c.Server.FallbackURL = server.DefaultFallbackURL
	}
	if c.Server.ProductName == "" {
		c.Server.ProductName = defaultProductName
	}

	defaults := logger.NewConfig()
	if c.Log.Level == "" {
		c.Log.Level = defaults.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Format
	}

	if c.OAuth.AuthorizeURL == "" {
		c.OAuth.AuthorizeURL = slackauth.DefaultAuthorizeURL
	}
	if c.OAuth.AccessURL == "" {
		c.OAuth.AccessURL = slackauth.DefaultAccessURL
	}
	if c.OAuth.StateTTLSeconds == 0 {
		c.OAuth.StateTTLSeconds = defaultStateTTLSeconds
	}
	if c.OAuth.HTTPTimeout == 0 {
		c.OAuth.HTTPTimeout = slackauth.DefaultHTTPTimeout
	}

	if c.Secrets.Backend == "" {
		c.Secrets.Backend = SecretsBackendVault
	}
	if c.Secrets.Vault.Mount == "" {
		c.Secrets.Vault.Mount = defaultVaultMount
	}

	if c.Shards.Dir == "" {
		c.Shards.Dir = workspace.DefaultShardsDir
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendRedis
	}
	if c.Storage.Directory == "" {
		c.Storage.Directory = workspace.DefaultDirectory
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got '%s'", field, raw)
	}
	return nil
}

// Load reads and validates onboarding.yml from the specified path.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	data, err = expandEnv(data)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with their values. Any other $ is kept
// verbatim, and a reference to an unset variable is an error.
func expandEnv(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return []byte(value)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("environment variables not set: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
