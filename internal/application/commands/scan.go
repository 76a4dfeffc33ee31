package commands

import (
	"context"
	"fmt"

	"specbook/internal/application"
	"specbook/internal/domain"
)

// ScanResult summarises a full scan
type ScanResult struct {
	Index   *domain.FeatureMappingIndex
	Counts  map[domain.ChangeType]int
	Message string
}

// ScanMappingCommand runs a full scan of the feature tree
type ScanMappingCommand struct {
	scanner *application.Scanner
}

// NewScanMappingCommand creates a new ScanMappingCommand
func NewScanMappingCommand(scanner *application.Scanner) *ScanMappingCommand {
	return &ScanMappingCommand{scanner: scanner}
}

// Execute runs the scan
func (c *ScanMappingCommand) Execute(ctx context.Context) (*ScanResult, error) {
	idx, err := c.scanner.ScanMapping(ctx)
	if err != nil {
		return nil, err
	}

	counts := CountChanges(idx.Changelog)
	return &ScanResult{
		Index:  idx,
		Counts: counts,
		Message: fmt.Sprintf("Mapped %d features (%d added, %d changed, %d removed, %d unchanged)",
			len(idx.Entries),
			counts[domain.ChangeAdded],
			counts[domain.ChangeChanged],
			counts[domain.ChangeRemoved],
			counts[domain.ChangeUnchanged],
		),
	}, nil
}

// ScanObjectResult contains the rescanned entry
type ScanObjectResult struct {
	Entry   *domain.MappingEntry
	Message string
}

// ScanObjectCommand rescans one feature and its descendants
type ScanObjectCommand struct {
	scanner  *application.Scanner
	ObjectID string
}

// NewScanObjectCommand creates a new ScanObjectCommand
func NewScanObjectCommand(scanner *application.Scanner, objectID string) *ScanObjectCommand {
	return &ScanObjectCommand{
		scanner:  scanner,
		ObjectID: objectID,
	}
}

// Validate checks the command arguments
func (c *ScanObjectCommand) Validate() error {
	return application.ValidateRequired("objectID", c.ObjectID)
}

// Execute runs the rescan
func (c *ScanObjectCommand) Execute(ctx context.Context) (*ScanObjectResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	entry, err := c.scanner.ScanSingleObject(ctx, c.ObjectID)
	if err != nil {
		return nil, err
	}

	return &ScanObjectResult{
		Entry: entry,
		Message: fmt.Sprintf("Rescanned %s: %s (%d impl, %d test)",
			entry.ObjectID, entry.Status, len(entry.ImplFiles), len(entry.TestFiles)),
	}, nil
}

// CountChanges tallies changelog rows by change type
func CountChanges(rows []domain.MappingChangeEntry) map[domain.ChangeType]int {
	counts := make(map[domain.ChangeType]int, 4)
	for _, r := range rows {
		counts[r.ChangeType]++
	}
	return counts
}
