// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

func TestNewConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(types.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", zap.String("session_id", "s1"))
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "s1")
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	var buf bytes.Buffer
	log, err := New(types.LogConfig{Level: "error", File: path}, &buf)
	require.NoError(t, err)

	log.Info("persisted", zap.Int("step", 2))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "persisted", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, float64(2), entry["step"])
	assert.Empty(t, buf.String(), "console level is error")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(types.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
