package commands

import (
	"context"
	"fmt"

	"specbook/internal/application"
	"specbook/internal/domain"
	"specbook/internal/ports"
)

// OutlineResult is the rendered feature outline
type OutlineResult struct {
	Nodes   []domain.FeatureNode // walk order
	Numbers map[string]string
	Text    string
}

// BuildOutlineCommand renders the outline a scan would send to the provider
type BuildOutlineCommand struct {
	tree     ports.ObjectTree
	ObjectID string // optional subtree root
}

// NewBuildOutlineCommand creates a new BuildOutlineCommand
func NewBuildOutlineCommand(tree ports.ObjectTree, objectID string) *BuildOutlineCommand {
	return &BuildOutlineCommand{
		tree:     tree,
		ObjectID: objectID,
	}
}

// Execute builds the outline
func (c *BuildOutlineCommand) Execute(ctx context.Context) (*OutlineResult, error) {
	forest, err := c.tree.LoadForest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature tree: %w", err)
	}

	nodes := forest.Walk()
	if c.ObjectID != "" {
		if !forest.Has(c.ObjectID) {
			return nil, fmt.Errorf("%w: %s", application.ErrObjectNotFound, c.ObjectID)
		}
		if nodes, err = forest.WalkFrom(c.ObjectID); err != nil {
			return nil, err
		}
	}

	return &OutlineResult{
		Nodes:   nodes,
		Numbers: domain.OutlineNumbers(nodes),
		Text:    domain.BuildContext(nodes),
	}, nil
}
