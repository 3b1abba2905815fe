package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(NewConfig(), &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("onboarded", zap.String("workspace_id", "T1"))
	require.NoError(t, log.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "onboarded", entry["msg"])
	assert.Equal(t, "T1", entry["workspace_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Logfmt(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "logfmt"}, &buf)
	require.NoError(t, err)

	log.Debug("scan", zap.Int("shard", 3))
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), "msg=scan")
	assert.Contains(t, buf.String(), "shard=3")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())

	_, err := New(Config{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
