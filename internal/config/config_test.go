package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "SPECARCH_MODEL",
		"SPECARCH_THINKING_BUDGET", "SPECARCH_LISTEN", "SPECARCH_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, int32(24576), cfg.LLM.ThinkingBudget)
	assert.Equal(t, 10*time.Minute, cfg.GetTurnTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetAutoAdvanceDelay())
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "specarch.yaml")
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "file-key"
	cfg.LLM.Model = "gemini-2.5-pro"
	cfg.Server.AllowedOrigins = []string{"https://example.com"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, DefaultConfig().LLM.Model, cfg.LLM.Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  turn_timeout: \"0\"\nworkflow:\n  auto_advance_delay: 2s\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.GetTurnTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetAutoAdvanceDelay())
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("gemini key wins over google key", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GOOGLE_API_KEY", "google")
		t.Setenv("GEMINI_API_KEY", "gemini")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gemini", cfg.LLM.APIKey)
	})

	t.Run("google key alone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GOOGLE_API_KEY", "google")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "google", cfg.LLM.APIKey)
	})

	t.Run("model listen level budget", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPECARCH_MODEL", "gemini-2.5-pro")
		t.Setenv("SPECARCH_LISTEN", "127.0.0.1:9000")
		t.Setenv("SPECARCH_LOG_LEVEL", "debug")
		t.Setenv("SPECARCH_THINKING_BUDGET", "1024")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
		assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, int32(1024), cfg.LLM.ThinkingBudget)
	})

	t.Run("bad budget ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPECARCH_THINKING_BUDGET", "lots")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, int32(24576), cfg.LLM.ThinkingBudget)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "API key not configured"},
		{"missing model", func(c *Config) { c.LLM.Model = "" }, "model not configured"},
		{"negative budget", func(c *Config) { c.LLM.ThinkingBudget = -1 }, "invalid thinking budget"},
		{"bad timeout", func(c *Config) { c.LLM.TurnTimeout = "soon" }, "invalid turn timeout"},
		{"disabled timeout", func(c *Config) { c.LLM.TurnTimeout = "0" }, ""},
		{"bad delay", func(c *Config) { c.Workflow.AutoAdvanceDelay = "x" }, "invalid auto advance delay"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LLM.APIKey = "key"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.TurnTimeout = "garbage"
	cfg.Workflow.AutoAdvanceDelay = "-1s"
	assert.Equal(t, 10*time.Minute, cfg.GetTurnTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetAutoAdvanceDelay())
}

func TestLoggingCategories(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"server": false, "tui": true}}
	assert.False(t, lc.IsCategoryEnabled("server"))
	assert.True(t, lc.IsCategoryEnabled("tui"))
	assert.True(t, lc.IsCategoryEnabled("conversation"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SPECARCH_MODEL=from-dotenv\n"), 0600))

	// godotenv never overwrites a set variable, so start from unset.
	t.Setenv("SPECARCH_MODEL", "")
	require.NoError(t, os.Unsetenv("SPECARCH_MODEL"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
	assert.Empty(t, os.Getenv("SPECARCH_MODEL"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("SPECARCH_MODEL"))
}
