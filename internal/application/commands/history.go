package commands

import (
	"context"
	"fmt"

	"specbook/internal/application"
	"specbook/internal/domain"
	"specbook/internal/ports"
)

// ListRunsCommand lists recent scan runs, newest first
type ListRunsCommand struct {
	log   ports.ScanLog
	Limit int
}

// NewListRunsCommand creates a new ListRunsCommand
func NewListRunsCommand(log ports.ScanLog, limit int) *ListRunsCommand {
	return &ListRunsCommand{
		log:   log,
		Limit: limit,
	}
}

// Execute lists the runs
func (c *ListRunsCommand) Execute(ctx context.Context) ([]domain.ScanRun, error) {
	if err := application.ValidatePositive("limit", c.Limit); err != nil {
		return nil, err
	}
	runs, err := c.log.ListRuns(ctx, c.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	return runs, nil
}

// ShowRunCommand fetches one scan run with its diagnostics
type ShowRunCommand struct {
	log   ports.ScanLog
	RunID string
}

// NewShowRunCommand creates a new ShowRunCommand
func NewShowRunCommand(log ports.ScanLog, runID string) *ShowRunCommand {
	return &ShowRunCommand{
		log:   log,
		RunID: runID,
	}
}

// Execute fetches the run
func (c *ShowRunCommand) Execute(ctx context.Context) (*domain.ScanRun, error) {
	if err := application.ValidateRequired("runID", c.RunID); err != nil {
		return nil, err
	}
	run, err := c.log.GetRun(ctx, c.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("scan run not found: %s", c.RunID)
	}
	return run, nil
}

// PruneRunsCommand keeps only the newest runs in the scan history
type PruneRunsCommand struct {
	log  ports.ScanLog
	Keep int
}

// NewPruneRunsCommand creates a new PruneRunsCommand
func NewPruneRunsCommand(log ports.ScanLog, keep int) *PruneRunsCommand {
	return &PruneRunsCommand{
		log:  log,
		Keep: keep,
	}
}

// Execute prunes the history and returns how many runs were removed
func (c *PruneRunsCommand) Execute(ctx context.Context) (int64, error) {
	if c.Keep < 0 {
		return 0, &application.ValidationError{Field: "keep", Message: "keep cannot be negative"}
	}
	n, err := c.log.Prune(ctx, c.Keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune scan history: %w", err)
	}
	return n, nil
}
