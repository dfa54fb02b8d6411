// Package logging builds the zap loggers used across specarch. Each component
// gets a logger named after its category; categories can be switched off in
// the logging config section.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"specarch/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // startup and config
	CategoryConversation Category = "conversation" // phase machine and turns
	CategoryTransport    Category = "transport"    // model API calls
	CategoryServer       Category = "server"       // websocket server
	CategoryTUI          Category = "tui"          // terminal chat
	CategoryMetrics      Category = "metrics"
)

// Loggers hands out category loggers built from one root.
type Loggers struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// New builds the root logger. verbose forces debug level. When cfg.File is
// set, output goes to that file instead of stderr.
func New(cfg config.LoggingConfig, verbose bool) (*Loggers, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zc = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	root, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Loggers{root: root, cfg: cfg}, nil
}

// Nop returns loggers that discard everything.
func Nop() *Loggers {
	return &Loggers{root: zap.NewNop()}
}

// Wrap uses an existing logger as the root.
func Wrap(l *zap.Logger, cfg config.LoggingConfig) *Loggers {
	if l == nil {
		l = zap.NewNop()
	}
	return &Loggers{root: l, cfg: cfg}
}

// Root returns the unnamed root logger.
func (l *Loggers) Root() *zap.Logger {
	return l.root
}

// Get returns the logger for category, or a no-op logger when the category
// is disabled.
func (l *Loggers) Get(category Category) *zap.Logger {
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Sync flushes buffered entries.
func (l *Loggers) Sync() {
	_ = l.root.Sync()
}
