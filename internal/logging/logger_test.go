package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"specarch/internal/config"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "specarch.log")
	l, err := New(config.LoggingConfig{Level: "info", Format: "json", File: path}, false)
	require.NoError(t, err)

	l.Get(CategoryConversation).Info("phase changed", zap.String("to", "RESEARCH"))
	l.Get(CategoryConversation).Debug("hidden at info")
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"conversation"`)
	assert.Contains(t, string(data), "phase changed")
	assert.NotContains(t, string(data), "hidden at info")
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := New(config.LoggingConfig{Level: "warn", Format: "json", File: path}, true)
	require.NoError(t, err)

	l.Get(CategoryTransport).Debug("streaming turn")
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "streaming turn")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestGet_DisabledCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core), config.LoggingConfig{Categories: map[string]bool{"server": false}})

	l.Get(CategoryServer).Info("dropped")
	l.Get(CategoryTUI).Info("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "tui", entries[0].LoggerName)
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Get(CategoryBoot).Info("nothing")
		l.Sync()
	})
}
