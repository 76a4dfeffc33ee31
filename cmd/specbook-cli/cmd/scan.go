package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"specbook/internal/application"
	"specbook/internal/application/commands"
	"specbook/internal/domain"
)

var quiet bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan every feature and replace the mapping",
	Long: `Send the whole feature tree and the workspace file list to the AI
provider in one request, then replace the mapping index. The changelog
against the previous scan is printed when done.

Examples:
  specbook-cli scan
  specbook-cli scan --provider anthropic --model claude-haiku-4-5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := interruptible()
		defer cancel()

		w := GetWorkspace()
		if !w.Analyzer.IsAvailable() {
			return fmt.Errorf("provider %s is not available", w.Config.Provider.Name)
		}
		stop := printProgress(w.Scanner)
		defer stop()

		result, err := commands.NewScanMappingCommand(w.Scanner).Execute(ctx)
		stop()
		if err != nil {
			return explain(err)
		}

		fmt.Println(result.Message)
		printChangelog(result.Index.Changelog, false)
		pruneHistory(cmd)
		return nil
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan <object-id>",
	Short: "Rescan one feature and its descendants",
	Long: `Rescan a single feature subtree. Entries of other features and the
stored changelog are left untouched.

Example:
  specbook-cli rescan auth-login`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := interruptible()
		defer cancel()

		w := GetWorkspace()
		if !w.Analyzer.IsAvailable() {
			return fmt.Errorf("provider %s is not available", w.Config.Provider.Name)
		}
		stop := printProgress(w.Scanner)
		defer stop()

		result, err := commands.NewScanObjectCommand(w.Scanner, args[0]).Execute(ctx)
		stop()
		if err != nil {
			return explain(err)
		}

		fmt.Println(result.Message)
		printEntry(*result.Entry)
		pruneHistory(cmd)
		return nil
	},
}

// printProgress streams scan progress to stderr until the returned func is
// called. Calling it twice is safe.
func printProgress(scanner *application.Scanner) func() {
	if quiet {
		return func() {}
	}
	events, cancel := scanner.Subscribe(64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Status {
			case domain.ProgressScanning:
				fmt.Fprintf(os.Stderr, "Scanning %d features...\n", ev.Total)
			case domain.ProgressDone:
				fmt.Fprintf(os.Stderr, "  [%d/%d] %s %s\n", ev.Current, ev.Total, ev.ObjectID, ev.ObjectTitle)
			case domain.ProgressError:
				fmt.Fprintf(os.Stderr, "  %s\n", color.RedString("scan failed"))
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// explain adds the location of the diagnostics to a scan failure
func explain(err error) error {
	if _, ok := application.DiagnosticsOf(err); ok && GetWorkspace().History != nil {
		return fmt.Errorf("%w\nrun 'specbook-cli history' to inspect the prompts and the provider response", err)
	}
	return err
}

func pruneHistory(cmd *cobra.Command) {
	w := GetWorkspace()
	if w.History == nil || w.Config.Scan.HistoryKeep == 0 {
		return
	}
	if _, err := commands.NewPruneRunsCommand(w.History, w.Config.Scan.HistoryKeep).Execute(cmd.Context()); err != nil {
		w.Logger.Warn("failed to prune scan history", "error", err)
	}
}

func init() {
	scanCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	rescanCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rescanCmd)
}
