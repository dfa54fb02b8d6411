package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specarch/cmd/specarch/chat"
	"specarch/internal/config"
	"specarch/internal/conversation"
	"specarch/internal/logging"
	"specarch/internal/phase"
	"specarch/internal/transport"
	"specarch/internal/usage"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string

	cfg     *config.Config
	loggers *logging.Loggers
	logger  *zap.Logger
)

// newTransport is replaced in tests.
var newTransport = func(ctx context.Context, c *config.Config, l *zap.Logger) (transport.Transport, error) {
	return transport.NewGemini(ctx, transport.GeminiConfig{
		APIKey: c.LLM.APIKey,
		Model:  c.LLM.Model,
	}, l)
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "specarch",
	Short: "specarch - phased software specification generator",
	Long: `specarch walks a model through a fixed sequence of phases (research,
blueprint, requirements, design, tasks, validation) and collects the five
resulting markdown documents.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggers != nil {
			loggers.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat(cmd.Context())
	},
}

// chatCmd is the explicit form of the default command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (overrides config and environment)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the config file")

	rootCmd.PersistentPreRunE = preRun
	rootCmd.AddCommand(chatCmd, runCmd, serveCmd, configCmd, phasesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// preRun is attached in init to keep rootCmd's initializer free of
// references to itself.
func preRun(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	return initLogging(isInteractive(cmd))
}

// isInteractive reports whether cmd starts the chat UI.
func isInteractive(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == chatCmd
}

func loadConfig() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if apiKey != "" {
		c.LLM.APIKey = apiKey
	}
	cfg = c
	return nil
}

// initLogging builds the loggers. The interactive UI owns the terminal, so it
// only logs when a log file is configured.
func initLogging(interactive bool) error {
	if interactive && cfg.Logging.File == "" {
		loggers = logging.Nop()
		logger = loggers.Root()
		return nil
	}
	l, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return err
	}
	loggers = l
	logger = l.Get(logging.CategoryBoot)
	return nil
}

// machineOptions maps config onto the conversation machine.
func machineOptions(extra ...conversation.Option) []conversation.Option {
	opts := []conversation.Option{
		conversation.WithLogger(loggers.Get(logging.CategoryConversation)),
		conversation.WithAdvanceDelay(cfg.GetAutoAdvanceDelay()),
		conversation.WithTurnTimeout(cfg.GetTurnTimeout()),
		conversation.WithThinkingBudget(cfg.LLM.ThinkingBudget),
	}
	return append(opts, extra...)
}

// openMachine validates config, opens a model session and wraps it in a
// machine.
func openMachine(ctx context.Context, extra ...conversation.Option) (*conversation.Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tr, err := newTransport(ctx, cfg, loggers.Get(logging.CategoryTransport))
	if err != nil {
		return nil, err
	}
	session, err := tr.OpenSession(ctx, phase.SystemInstruction)
	if err != nil {
		return nil, fmt.Errorf("failed to open model session: %w", err)
	}
	logger.Debug("session opened", zap.String("model", cfg.LLM.Model))
	return conversation.New(session, machineOptions(extra...)...), nil
}

func runInteractiveChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observer, events := chat.Bridge()
	tokens := usage.NewTracker(cfg.LLM.Model)
	m, err := openMachine(ctx, conversation.WithObserver(observer), conversation.WithUsage(tokens))
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(
		chat.New(ctx, m, events, loggers.Get(logging.CategoryTUI)).WithUsage(tokens),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	return err
}
