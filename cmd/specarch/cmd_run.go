package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specarch/internal/conversation"
	"specarch/internal/document"
	"specarch/internal/phase"
	"specarch/internal/usage"
)

var (
	printDocuments bool
	autoExecute    bool
)

// runCmd drives the workflow without the UI.
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run the workflow headless for a single request",
	Long: `Sends the request to the model and follows the automatic phase advances
until a reply stops at a question or the specification is complete.
Streamed text is written to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpec,
}

func init() {
	runCmd.Flags().BoolVar(&printDocuments, "print-documents", false, "Print every generated document at the end")
	runCmd.Flags().BoolVar(&autoExecute, "execute", false, "Finalize the process when the specification is complete")
}

func runSpec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	tokens := usage.NewTracker(cfg.LLM.Model)
	m, err := openMachine(ctx, conversation.WithObserver(printer(out)), conversation.WithUsage(tokens))
	if err != nil {
		return err
	}
	defer m.Close()

	request := strings.Join(args, " ")
	if err := m.Submit(ctx, request); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if err := m.Wait(ctx); err != nil {
		return err
	}

	s := m.Snapshot()
	if s.Phase == phase.Complete && autoExecute {
		if err := m.FinalizeExecution(); err != nil {
			return err
		}
		s = m.Snapshot()
		last, _ := s.LastMessage()
		fmt.Fprintf(out, "\n%s\n", last.Content)
	}

	if printDocuments {
		writeDocuments(out, s.Documents)
	}

	stats := tokens.Stats()
	if stats.Turns > 0 {
		fmt.Fprintf(out, "\nTokens: %d input, %d output over %d turns\n", stats.Total.Input, stats.Total.Output, stats.Turns)
	}
	logger.Info("run finished",
		zap.String("phase", string(s.Phase)),
		zap.Int64("tokens", stats.Total.Total))
	if s.LastError != nil {
		return fmt.Errorf("generation failed: %w", s.LastError)
	}
	return nil
}

// printer streams machine events as plain text.
func printer(w io.Writer) conversation.Observer {
	return func(ev conversation.Event) {
		switch ev.Kind {
		case conversation.EventPhaseChanged:
			fmt.Fprintf(w, "\n== %s ==\n", ev.Phase.Title())
		case conversation.EventStreamDelta:
			fmt.Fprint(w, ev.Delta)
		case conversation.EventMessageAppended:
			if ev.Message.Role == conversation.RoleModel && ev.Message.Content != "" {
				fmt.Fprintf(w, "\n%s\n", ev.Message.Content)
			}
		case conversation.EventMessageFinalized:
			fmt.Fprintln(w)
			for i, s := range ev.Message.Sources {
				fmt.Fprintf(w, "  [%d] %s - %s\n", i+1, s.Title, s.URI)
			}
		case conversation.EventDocumentChanged:
			fmt.Fprintf(w, "[%s updated]\n", ev.Document.FileName())
		}
	}
}

func writeDocuments(w io.Writer, docs document.Set) {
	for _, name := range document.All() {
		content := docs[name]
		if content == "" {
			continue
		}
		fmt.Fprintf(w, "\n<<<%s>>>\n%s\n<<</%s>>>\n", name.FileName(), content, name.FileName())
	}
}
