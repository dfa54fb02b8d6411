package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"specarch/internal/config"
	"specarch/internal/document"
	"specarch/internal/phase"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		// The API key stays in the environment.
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		if shown.LLM.APIKey != "" {
			shown.LLM.APIKey = "********"
		}
		data, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// phasesCmd prints the workflow table.
var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List the workflow phases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, p := range phase.All() {
			doc := "-"
			if name, ok := p.OutputDocument(); ok {
				doc = name.FileName()
			}
			next := "-"
			if n := p.Next(); n != p {
				next = string(n)
			}
			fmt.Fprintf(out, "%-13s %-26s %-17s %s\n", p, p.Title(), doc, next)
		}
		fmt.Fprintf(out, "\n%d documents: ", len(document.All()))
		for i, n := range document.All() {
			if i > 0 {
				fmt.Fprint(out, ", ")
			}
			fmt.Fprint(out, n.FileName())
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}
