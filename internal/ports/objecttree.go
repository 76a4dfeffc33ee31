package ports

import (
	"context"

	"specbook/internal/domain"
)

// ObjectTree provides read-only access to the feature tree
type ObjectTree interface {
	LoadForest(ctx context.Context) (*domain.Forest, error)
}
