package ports

import (
	"context"

	"specbook/internal/domain"
)

// MappingStore owns the persisted FeatureMappingIndex of a workspace.
// Readers never observe a partially written index.
type MappingStore interface {
	// Load returns the current index, or nil when no scan has completed yet
	Load(ctx context.Context) (*domain.FeatureMappingIndex, error)

	// Replace atomically swaps in idx as the new snapshot
	Replace(ctx context.Context, idx *domain.FeatureMappingIndex) error

	// Update runs a read-modify-write cycle under an exclusive lock.
	// fn receives the current index (nil when absent) and returns the one to
	// persist; returning an error aborts without writing.
	Update(ctx context.Context, fn func(current *domain.FeatureMappingIndex) (*domain.FeatureMappingIndex, error)) error

	// Reset deletes the index
	Reset(ctx context.Context) error
}
