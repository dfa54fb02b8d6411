package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specarch/internal/logging"
	"specarch/internal/metrics"
	"specarch/internal/server"
)

var listenAddr string

// serveCmd exposes the workflow to browser clients over a websocket.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow over a websocket",
	Long: `Starts an HTTP server with:
  /ws       one conversation per websocket connection
  /healthz  liveness probe
  /metrics  Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := newTransport(ctx, cfg, loggers.Get(logging.CategoryTransport))
	if err != nil {
		return err
	}

	addr := cfg.Server.Listen
	if listenAddr != "" {
		addr = listenAddr
	}

	srv := server.New(tr, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MachineOptions: machineOptions(),
	}, loggers.Get(logging.CategoryServer), metrics.New())

	logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("model", cfg.LLM.Model),
		zap.Strings("allowed_origins", cfg.Server.AllowedOrigins))
	return srv.ListenAndServe(ctx, addr)
}
