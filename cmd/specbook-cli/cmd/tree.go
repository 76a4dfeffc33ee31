package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"specbook/internal/application/commands"
	"specbook/internal/domain"
)

var treeCmd = &cobra.Command{
	Use:   "tree [object-id]",
	Short: "Display the feature tree",
	Long: `Display the feature tree as the numbered outline sent to the provider,
with the mapping status of each feature when a scan exists.

Examples:
  specbook-cli tree
  specbook-cli tree auth`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		objectID := ""
		if len(args) == 1 {
			objectID = args[0]
		}

		w := GetWorkspace()
		outline, err := commands.NewBuildOutlineCommand(w.Tree, objectID).Execute(ctx)
		if err != nil {
			return err
		}

		// Status is best effort; the tree is useful before any scan
		idx, _ := w.Scanner.LoadMapping(ctx)

		forest, err := w.Tree.LoadForest(ctx)
		if err != nil {
			return err
		}

		// Walk order is post-order; the tree reads top-down
		nodes := forest.Nodes()
		if objectID != "" {
			if nodes, err = forest.Subtree(objectID); err != nil {
				return err
			}
		}
		printTree(forest, nodes, outline.Numbers, idx)
		return nil
	},
}

func printTree(forest *domain.Forest, nodes []domain.FeatureNode, numbers map[string]string, idx *domain.FeatureMappingIndex) {
	base := -1
	for _, n := range nodes {
		depth := forest.Depth(n.ID)
		if base < 0 {
			base = depth
		}
		indent := strings.Repeat("  ", depth-base)
		line := fmt.Sprintf("%s%s %s %s", indent, numbers[n.ID], n.DisplayTitle(), dim("["+n.ID+"]"))
		if e, ok := idx.Entry(n.ID); ok {
			line += "  " + statusLabel(e.Status)
		}
		fmt.Println(line)
	}
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
