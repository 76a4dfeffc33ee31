package ports

import (
	"context"

	"specbook/internal/domain"
)

// ScanLog records scan runs and their diagnostics.
// Recording is best effort: a failing log never fails a scan.
type ScanLog interface {
	// Lifecycle
	Open(workspace string) error
	Close() error

	// Run recording
	StartRun(ctx context.Context, run *domain.ScanRun) error
	FinishRun(ctx context.Context, run *domain.ScanRun) error

	// Queries
	ListRuns(ctx context.Context, limit int) ([]domain.ScanRun, error)
	GetRun(ctx context.Context, id string) (*domain.ScanRun, error)
	Prune(ctx context.Context, keep int) (int64, error)
}
