package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "specarch.yaml"

// Config holds all specarch configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LLMConfig configures the model transport.
type LLMConfig struct {
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	ThinkingBudget int32  `yaml:"thinking_budget"`
	TurnTimeout    string `yaml:"turn_timeout"` // "0" disables
}

// WorkflowConfig tunes the phase state machine.
type WorkflowConfig struct {
	AutoAdvanceDelay string `yaml:"auto_advance_delay"`
}

// ServerConfig configures `specarch serve`.
type ServerConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:          "gemini-2.5-flash",
			ThinkingBudget: 24576,
			TurnTimeout:    "10m",
		},
		Workflow: WorkflowConfig{
			AutoAdvanceDelay: "500ms",
		},
		Server: ServerConfig{
			Listen:         ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file when one exists. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins over GOOGLE_API_KEY
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("SPECARCH_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if budget := os.Getenv("SPECARCH_THINKING_BUDGET"); budget != "" {
		if n, err := strconv.ParseInt(budget, 10, 32); err == nil {
			c.LLM.ThinkingBudget = int32(n)
		}
	}
	if addr := os.Getenv("SPECARCH_LISTEN"); addr != "" {
		c.Server.Listen = addr
	}
	if level := os.Getenv("SPECARCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetTurnTimeout returns the per-turn model timeout. Zero means no limit.
func (c *Config) GetTurnTimeout() time.Duration {
	if c.LLM.TurnTimeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.LLM.TurnTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetAutoAdvanceDelay returns the pause before an automatic phase advance.
func (c *Config) GetAutoAdvanceDelay() time.Duration {
	d, err := time.ParseDuration(c.Workflow.AutoAdvanceDelay)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}
	if c.LLM.ThinkingBudget < 0 {
		return fmt.Errorf("invalid thinking budget: %d", c.LLM.ThinkingBudget)
	}
	if c.LLM.TurnTimeout != "0" {
		if _, err := time.ParseDuration(c.LLM.TurnTimeout); err != nil {
			return fmt.Errorf("invalid turn timeout %q: %w", c.LLM.TurnTimeout, err)
		}
	}
	if _, err := time.ParseDuration(c.Workflow.AutoAdvanceDelay); err != nil {
		return fmt.Errorf("invalid auto advance delay %q: %w", c.Workflow.AutoAdvanceDelay, err)
	}
	return c.Logging.Validate()
}
