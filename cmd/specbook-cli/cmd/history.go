package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"specbook/internal/application/commands"
	"specbook/internal/ports"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scan runs",
	Long: `List recent scans with their outcome, duration and token usage.

Examples:
  specbook-cli history
  specbook-cli history -n 5
  specbook-cli history show 3f2a9c1e`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := historyLog()
		if err != nil {
			return err
		}

		runs, err := commands.NewListRunsCommand(log, historyLimit).Execute(context.Background())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}
		for _, r := range runs {
			printRun(r)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the prompts and raw response of a scan run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := historyLog()
		if err != nil {
			return err
		}

		run, err := commands.NewShowRunCommand(log, args[0]).Execute(context.Background())
		if err != nil {
			return err
		}

		printRun(*run)
		fmt.Printf("\n%s\n%s\n", bold("System prompt"), run.SystemPrompt)
		fmt.Printf("\n%s\n%s\n", bold("User prompt"), run.UserPrompt)
		fmt.Printf("\n%s\n%s\n", bold("Raw response"), run.RawResponse)
		return nil
	},
}

var pruneKeep int

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest scan runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := historyLog()
		if err != nil {
			return err
		}

		n, err := commands.NewPruneRunsCommand(log, pruneKeep).Execute(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d runs.\n", n)
		return nil
	},
}

func historyLog() (ports.ScanLog, error) {
	log := GetWorkspace().History
	if log == nil {
		return nil, errors.New("scan history is unavailable, see the log file for details")
	}
	return log, nil
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs")
	historyPruneCmd.Flags().IntVar(&pruneKeep, "keep", 20, "number of runs to keep")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
