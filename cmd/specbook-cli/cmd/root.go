package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"specbook/internal/bootstrap"
	"specbook/internal/config"
)

var (
	workspacePath string
	providerName  string
	modelName     string
	logStderr     bool
	ws            *bootstrap.Workspace
)

var rootCmd = &cobra.Command{
	Use:   "specbook-cli",
	Short: "Map product features to the code that implements them",
	Long: `specbook-cli keeps a feature-to-code mapping for a workspace.

Features are read from .specbook/objects.yaml. A scan asks an AI provider
which files implement and test each feature, stores the result in
.specbook/mapping.json and records what changed since the previous scan.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		ws, err = bootstrap.Open(workspacePath,
			bootstrap.WithProvider(providerName),
			bootstrap.WithModel(modelName),
			bootstrap.WithLogStderr(logStderr),
		)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ws == nil {
			return nil
		}
		return ws.Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ws != nil {
			ws.Close()
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "workspace", "w", config.Workspace(), "path to the workspace")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "", "AI provider (claude-cli or anthropic), overrides config")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "model name, overrides config")
	rootCmd.PersistentFlags().BoolVar(&logStderr, "log-stderr", false, "log to stderr instead of .specbook/logs")
}

// GetWorkspace returns the initialized workspace
func GetWorkspace() *bootstrap.Workspace {
	return ws
}

// interruptible returns a context cancelled on Ctrl-C
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
