package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"specbook/internal/application/commands"
	"specbook/internal/domain"
)

var showCmd = &cobra.Command{
	Use:   "show [object-id]",
	Short: "Show the persisted mapping",
	Long: `Show the mapping index without scanning. With an object ID only that
feature is shown.

Examples:
  specbook-cli show
  specbook-cli show auth-login`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		objectID := ""
		if len(args) == 1 {
			objectID = args[0]
		}

		idx, err := commands.NewLoadMappingCommand(GetWorkspace().Scanner, objectID).Execute(ctx)
		if err != nil {
			return err
		}

		for _, e := range idx.Entries {
			printEntry(e)
		}
		fmt.Println(dim(fmt.Sprintf("scanned %s", idx.ScannedAt.Local().Format(time.RFC1123))))
		if idx.TokenUsage != nil {
			fmt.Println(dim(fmt.Sprintf("tokens: %d in, %d out", idx.TokenUsage.InputTokens, idx.TokenUsage.OutputTokens)))
		}
		return nil
	},
}

var changelogAll bool

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Show what changed in the last full scan",
	Long: `Show the changelog of the last full scan against the one before it.

Examples:
  specbook-cli changelog
  specbook-cli changelog --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := commands.NewLoadMappingCommand(GetWorkspace().Scanner, "").Execute(ctx)
		if err != nil {
			return err
		}

		counts := commands.CountChanges(idx.Changelog)
		fmt.Printf("%d added, %d changed, %d removed, %d unchanged\n",
			counts[domain.ChangeAdded], counts[domain.ChangeChanged], counts[domain.ChangeRemoved], counts[domain.ChangeUnchanged])
		printChangelog(idx.Changelog, changelogAll)
		return nil
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the mapping index",
	Long: `Delete the mapping index of the workspace. The next scan starts from
scratch and reports every feature as added.

Example:
  specbook-cli reset --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := GetWorkspace()
		if !resetYes {
			return fmt.Errorf("this deletes %s; pass --yes to confirm", w.Store.Path())
		}
		if err := commands.NewResetMappingCommand(w.Store).Execute(context.Background()); err != nil {
			return err
		}
		fmt.Println("Mapping removed.")
		return nil
	},
}

func init() {
	changelogCmd.Flags().BoolVarP(&changelogAll, "all", "a", false, "include unchanged features")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "confirm deletion")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(changelogCmd)
	rootCmd.AddCommand(resetCmd)
}
