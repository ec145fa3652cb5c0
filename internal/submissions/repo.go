package submissions

import (
	"context"
	"time"
)

// Repo defines persistence operations for submissions. ConditionalUpdate is
// the only write after Create: it replaces the mutable fields only while the
// stored status still equals expected, and reports ErrPreconditionFailed
// otherwise.
type Repo interface {
	Create(ctx context.Context, sub Submission) error
	GetByID(ctx context.Context, id string) (Submission, error)
	ConditionalUpdate(ctx context.Context, next Submission, expected Status) (Submission, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Submission, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Submission, error)
	CountStale(ctx context.Context, status Status, updatedBefore time.Time) (int, error)
}
