package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopchat/loopchat/internal/config"
)

var (
	flagProvider string
	flagModel    string
	flagSession  string
	flagApprove  bool
)

func main() {
	root := &cobra.Command{
		Use:   "loopchat",
		Short: "Terminal chat with tool-calling LLMs",
		Long: "loopchat is a terminal chat client that lets LLMs call local tools\n" +
			"in a reason-act-observe loop, with approval gating, history\n" +
			"compaction and session persistence.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if flagProvider != "" {
				cfg.Provider = flagProvider
			}
			if flagModel != "" {
				cfg.Model = flagModel
			}
			if flagApprove {
				cfg.Tools.RequireApproval = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, flagSession)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}

	root.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai or gemini)")
	root.Flags().StringVar(&flagModel, "model", "", "model name")
	root.Flags().StringVar(&flagSession, "session", "", "session ID to resume")
	root.Flags().BoolVar(&flagApprove, "approve", false, "require approval for every tool call")

	root.AddCommand(sessionsCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// sessionsCommand lists saved sessions without starting the UI.
func sessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return listSessions(cmd.Context(), cfg)
		},
	}
}
