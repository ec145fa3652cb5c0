package submissions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"submission-backend/internal/spreadsheet"
)

// MemoryRepo stores submissions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Submission
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Submission)}
}

// Create stores the submission.
func (r *MemoryRepo) Create(ctx context.Context, sub Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	r.byID[sub.ID] = clone(sub)
	return nil
}

// GetByID returns a submission by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return clone(sub), nil
}

// ConditionalUpdate compares and swaps under the write lock.
func (r *MemoryRepo) ConditionalUpdate(ctx context.Context, next Submission, expected Status) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[next.ID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if current.Status != expected {
		return Submission{}, preconditionError(next.ID, current.Status, expected)
	}
	current.Status = next.Status
	current.Metadata = next.Metadata
	current.Series = next.Series
	current.Comment = next.Comment
	current.UpdatedAt = next.UpdatedAt
	r.byID[next.ID] = clone(current)
	return clone(current), nil
}

// ListByStatus returns submissions in status, oldest first.
func (r *MemoryRepo) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Submission, error) {
	return r.list(ctx, func(s Submission) bool { return s.Status == status }, false, limit, offset)
}

// ListByOwner returns an owner's submissions, newest first.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Submission, error) {
	return r.list(ctx, func(s Submission) bool { return s.OwnerID == ownerID }, true, limit, offset)
}

// CountStale counts submissions in status not touched since updatedBefore.
func (r *MemoryRepo) CountStale(ctx context.Context, status Status, updatedBefore time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.byID {
		if s.Status == status && s.UpdatedAt.Before(updatedBefore) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) list(ctx context.Context, keep func(Submission) bool, newestFirst bool, limit, offset int) ([]Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	out := make([]Submission, 0)
	for _, s := range r.byID {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Submission{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func clone(s Submission) Submission {
	if s.Metadata != nil {
		meta := *s.Metadata
		s.Metadata = &meta
	}
	if s.Series != nil {
		s.Series = append([]spreadsheet.Point(nil), s.Series...)
	}
	return s
}

var _ Repo = (*MemoryRepo)(nil)
