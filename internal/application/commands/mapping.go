package commands

import (
	"context"
	"errors"
	"fmt"

	"specbook/internal/application"
	"specbook/internal/domain"
	"specbook/internal/ports"
)

// ErrNoMapping is returned when no scan has completed in the workspace yet
var ErrNoMapping = errors.New("no mapping yet: run a scan first")

// LoadMappingCommand reads the persisted mapping index
type LoadMappingCommand struct {
	scanner  *application.Scanner
	ObjectID string // optional, narrows the result to one entry
}

// NewLoadMappingCommand creates a new LoadMappingCommand
func NewLoadMappingCommand(scanner *application.Scanner, objectID string) *LoadMappingCommand {
	return &LoadMappingCommand{
		scanner:  scanner,
		ObjectID: objectID,
	}
}

// Execute loads the index. With ObjectID set, only that entry and its
// changelog row are kept.
func (c *LoadMappingCommand) Execute(ctx context.Context) (*domain.FeatureMappingIndex, error) {
	idx, err := c.scanner.LoadMapping(ctx)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, ErrNoMapping
	}
	if c.ObjectID == "" {
		return idx, nil
	}

	entry, ok := idx.Entry(c.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no mapping entry", application.ErrObjectNotFound, c.ObjectID)
	}
	narrowed := &domain.FeatureMappingIndex{
		Entries:    []domain.MappingEntry{entry},
		Changelog:  []domain.MappingChangeEntry{},
		ScannedAt:  idx.ScannedAt,
		TokenUsage: idx.TokenUsage,
	}
	if change, ok := idx.Change(c.ObjectID); ok {
		narrowed.Changelog = append(narrowed.Changelog, change)
	}
	return narrowed, nil
}

// ResetMappingCommand deletes the mapping index of the workspace
type ResetMappingCommand struct {
	store ports.MappingStore
}

// NewResetMappingCommand creates a new ResetMappingCommand
func NewResetMappingCommand(store ports.MappingStore) *ResetMappingCommand {
	return &ResetMappingCommand{store: store}
}

// Execute removes the index
func (c *ResetMappingCommand) Execute(ctx context.Context) error {
	if err := c.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset mapping: %w", err)
	}
	return nil
}
