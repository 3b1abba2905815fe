package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecretsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFileSource_ClientConfig(t *testing.T) {
	path := writeSecretsFile(t, `emo-dev-onboarding:
  CLIENT_ID: 123
  CLIENT_SECRET: "abc"
  SCOPE: "bot"
`)

	cfg, err := NewFileSource(path).ClientConfig(context.Background(), "emo-dev-onboarding")
	require.NoError(t, err)
	assert.Equal(t, &ClientConfig{ClientID: "123", ClientSecret: "abc", Scope: "bot"}, cfg)
}

func TestFileSource_MissingName(t *testing.T) {
	path := writeSecretsFile(t, `other:
  CLIENT_ID: "1"
  CLIENT_SECRET: "2"
  SCOPE: "bot"
`)

	_, err := NewFileSource(path).ClientConfig(context.Background(), "emo-dev-onboarding")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSource_IncompleteEntry(t *testing.T) {
	path := writeSecretsFile(t, `emo-dev-onboarding:
  CLIENT_ID: "1"
`)

	_, err := NewFileSource(path).ClientConfig(context.Background(), "emo-dev-onboarding")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLIENT_SECRET is required")
}

func TestFileSource_Errors(t *testing.T) {
	_, err := NewFileSource("/nonexistent/secrets.yml").ClientConfig(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read secrets file")

	path := writeSecretsFile(t, "- not a map")
	_, err = NewFileSource(path).ClientConfig(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse secrets file")
}

// countingSource counts loads and can be told to fail
type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) ClientConfig(_ context.Context, name string) (*ClientConfig, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ClientConfig{ClientID: name, ClientSecret: "secret", Scope: "bot"}, nil
}

func TestCache_MemoizesUntilInvalidated(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, 0)
	ctx := context.Background()

	first, err := c.ClientConfig(ctx, "a")
	require.NoError(t, err)
	second, err := c.ClientConfig(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	c.Invalidate("a")
	_, err = c.ClientConfig(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	_, err = c.ClientConfig(ctx, "b")
	require.NoError(t, err)
	c.Flush()
	_, err = c.ClientConfig(ctx, "a")
	require.NoError(t, err)
	_, err = c.ClientConfig(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 5, src.calls)
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	src := &countingSource{err: errors.New("vault sealed")}
	c := NewCache(src, 0)
	ctx := context.Background()

	_, err := c.ClientConfig(ctx, "a")
	assert.Error(t, err)

	src.err = nil
	cfg, err := c.ClientConfig(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.ClientID)
	assert.Equal(t, 2, src.calls)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(&countingSource{}, 0)
	ctx := context.Background()

	cfg, err := c.ClientConfig(ctx, "a")
	require.NoError(t, err)
	cfg.ClientSecret = "mutated"

	again, err := c.ClientConfig(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "secret", again.ClientSecret)
}
