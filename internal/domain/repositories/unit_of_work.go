package repositories

import (
	"context"
)

// UnitOfWork defines the interface for atomic operations
type UnitOfWork interface {
	// Do executes fn within a transaction scope. A transaction already carried by ctx is joined.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
