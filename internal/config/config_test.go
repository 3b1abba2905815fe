package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `version: "1.0"
redis:
  url: "redis://localhost:6379/0"
  namespace: "emo-dev"
secrets:
  name: "emo-dev-onboarding"
shards:
  limit: 5
  queue_prefix: "emo-dev-onboarding-service-"
  alert_queue: "emo-dev-onboarding-service-alerts"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "onboarding.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_MinimalConfigAppliesDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8000", config.Server.Listen)
	assert.Equal(t, ":8080", config.Server.AdminAddr())
	assert.Equal(t, "https://emojirades.io", config.Server.FallbackURL)
	assert.Equal(t, "Emojirades", config.Server.ProductName)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)

	assert.Equal(t, "https://slack.com/oauth/authorize", config.OAuth.AuthorizeURL)
	assert.Equal(t, "https://slack.com/api/oauth.access", config.OAuth.AccessURL)
	assert.Equal(t, 300*time.Second, config.OAuth.StateTTL())
	assert.Equal(t, 10*time.Second, config.OAuth.HTTPTimeout)

	assert.Equal(t, SecretsBackendVault, config.Secrets.Backend)
	assert.Equal(t, "secret", config.Secrets.Vault.Mount)
	assert.Zero(t, config.Secrets.CacheTTL)

	assert.Equal(t, "workspaces/shards", config.Shards.Dir)
	assert.Equal(t, StorageBackendRedis, config.Storage.Backend)
	assert.Equal(t, "workspaces/directory", config.Storage.Directory)

	layout := config.Layout()
	assert.Equal(t, "workspaces/shards/0/T1.json", layout.AssignmentKey(0, "T1"))
	assert.Equal(t, "workspaces/directory/T1/auth.json", layout.CredentialsKey("T1"))
}

func TestLoad_FullConfig(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"
server:
  listen: ":9000"
  admin_listen: ""
  fallback_url: "https://example.test"
  product_name: "Emojirades Dev"
log:
  level: debug
  format: logfmt
redis:
  url: "redis://redis:6379/1"
  namespace: "emo-prod"
oauth:
  authorize_url: "https://slack.test/oauth/authorize"
  access_url: "https://slack.test/api/oauth.access"
  state_ttl_seconds: 60
  http_timeout: 3s
secrets:
  name: "emo-prod-onboarding"
  backend: file
  file: "/etc/onboarding/secrets.yml"
  cache_ttl: 5m
shards:
  limit: 50
  dir: "ws/shards"
  queue_prefix: "emo-prod-shard-"
  alert_queue: "emo-prod-alerts"
storage:
  backend: s3
  bucket: "emojirades-prod"
  directory: "ws/directory"
  s3:
    region: "ap-southeast-2"
    endpoint: "http://minio:9000"
    path_style: true
`))
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.Server.Listen)
	assert.Empty(t, config.Server.AdminAddr(), "empty admin_listen disables the admin listener")
	assert.Equal(t, "Emojirades Dev", config.Server.ProductName)
	assert.Equal(t, "logfmt", config.Log.Format)
	assert.Equal(t, 60*time.Second, config.OAuth.StateTTL())
	assert.Equal(t, 3*time.Second, config.OAuth.HTTPTimeout)
	assert.Equal(t, SecretsBackendFile, config.Secrets.Backend)
	assert.Equal(t, 5*time.Minute, config.Secrets.CacheTTL)
	assert.Equal(t, 50, config.Shards.Limit)
	assert.Equal(t, "emojirades-prod", config.Storage.Bucket)
	assert.Equal(t, S3Config{Region: "ap-southeast-2", Endpoint: "http://minio:9000", PathStyle: true}, config.Storage.S3)
	assert.Equal(t, "ws/shards/3/T1.json", config.Layout().AssignmentKey(3, "T1"))
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ONBOARDING_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("ONBOARDING_VAULT_TOKEN", "s.token")

	config, err := Load(writeConfig(t, `version: "1.0"
redis:
  url: "${ONBOARDING_REDIS_URL}"
  namespace: "emo-dev"
secrets:
  name: "emo-dev-onboarding"
  vault:
    token: "${ONBOARDING_VAULT_TOKEN}"
shards:
  limit: 5
  queue_prefix: "q-"
  alert_queue: "alerts"
`))
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", config.Redis.URL)
	assert.Equal(t, "s.token", config.Secrets.Vault.Token)
}

func TestLoad_KeepsLiteralDollars(t *testing.T) {
	t.Setenv("ONBOARDING_REDIS_URL", "redis://cache:6379/2")

	config, err := Load(writeConfig(t, `version: "1.0"
redis:
  url: "${ONBOARDING_REDIS_URL}"
  namespace: "emo-dev"
secrets:
  name: "emo-dev-onboarding"
  vault:
    token: "s.a$b$HOME$$c"
shards:
  limit: 5
  queue_prefix: "q-"
  alert_queue: "alerts"
`))
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", config.Redis.URL)
	assert.Equal(t, "s.a$b$HOME$$c", config.Secrets.Vault.Token)
}

func TestLoad_UnsetVariable(t *testing.T) {
	t.Setenv("ONBOARDING_EMPTY", "")

	config, err := Load(writeConfig(t, `version: "1.0"
redis:
  url: "${ONBOARDING_UNSET_REDIS_URL}"
  namespace: "emo-dev${ONBOARDING_EMPTY}"
secrets:
  name: "emo-dev-onboarding"
  vault:
    token: "${ONBOARDING_UNSET_TOKEN}"
shards:
  limit: 5
  queue_prefix: "q-"
  alert_queue: "alerts"
`))
	require.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "environment variables not set: ONBOARDING_UNSET_REDIS_URL, ONBOARDING_UNSET_TOKEN")
	assert.NotContains(t, err.Error(), "ONBOARDING_EMPTY")
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/onboarding.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"
redis:
  - this is invalid
    yaml syntax
`))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Version: "1.0",
			Redis:   RedisConfig{URL: "redis://localhost:6379", Namespace: "emo-dev"},
			Secrets: SecretsConfig{Name: "emo-dev-onboarding"},
			Shards:  ShardsConfig{Limit: 5, QueuePrefix: "q-", AlertQueue: "alerts"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"wrong version", func(c *Config) { c.Version = "2.0" }, "unsupported version"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"relative fallback", func(c *Config) { c.Server.FallbackURL = "/home" }, "server.fallback_url"},
		{"missing redis url", func(c *Config) { c.Redis.URL = "" }, "redis.url is required"},
		{"missing namespace", func(c *Config) { c.Redis.Namespace = "" }, "redis.namespace is required"},
		{"bad authorize url", func(c *Config) { c.OAuth.AuthorizeURL = "slack" }, "oauth.authorize_url"},
		{"bad access url", func(c *Config) { c.OAuth.AccessURL = "://" }, "oauth.access_url"},
		{"negative ttl", func(c *Config) { c.OAuth.StateTTLSeconds = -1 }, "oauth.state_ttl_seconds"},
		{"negative timeout", func(c *Config) { c.OAuth.HTTPTimeout = -time.Second }, "oauth.http_timeout"},
		{"missing secret name", func(c *Config) { c.Secrets.Name = "" }, "secrets.name is required"},
		{"file backend without file", func(c *Config) { c.Secrets.Backend = SecretsBackendFile }, "secrets.file is required"},
		{"unknown secrets backend", func(c *Config) { c.Secrets.Backend = "ssm" }, "secrets.backend"},
		{"negative cache ttl", func(c *Config) { c.Secrets.CacheTTL = -time.Second }, "secrets.cache_ttl"},
		{"zero limit", func(c *Config) { c.Shards.Limit = 0 }, "shards.limit"},
		{"missing queue prefix", func(c *Config) { c.Shards.QueuePrefix = "" }, "shards.queue_prefix"},
		{"missing alert queue", func(c *Config) { c.Shards.AlertQueue = "" }, "shards.alert_queue"},
		{"unknown storage backend", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = StorageBackendS3 }, "storage.bucket"},
		{"overlapping dirs", func(c *Config) { c.Shards.Dir = "ws"; c.Storage.Directory = "ws" }, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
