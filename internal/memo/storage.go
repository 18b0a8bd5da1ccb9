package memo

import (
	"context"
	"sort"
	"sync"
)

// Repository is durable storage for memo records. Update enforces the
// optimistic version check: the write only lands if the stored version still
// equals expectedVersion, and the stored version is bumped by one. Stale
// writers get ConflictErr.
type Repository interface {
	Insert(ctx context.Context, m Memo) error
	Get(ctx context.Context, id string) (Memo, error)
	Update(ctx context.Context, m Memo, expectedVersion int64) (Memo, error)
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status Status, limit int) ([]Memo, error)
}

// InMemoryRepository is a Repository backed by a process-local map, used in
// tests and local runs without a database file.
type InMemoryRepository struct {
	mu    sync.RWMutex
	memos map[string]Memo
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{memos: map[string]Memo{}}
}

func (r *InMemoryRepository) Insert(ctx context.Context, m Memo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memos[m.ID] = cloneMemo(m)
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (Memo, error) {
	if err := ctx.Err(); err != nil {
		return Memo{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memos[id]
	if !ok {
		return Memo{}, ErrNotFound
	}
	return cloneMemo(m), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, m Memo, expectedVersion int64) (Memo, error) {
	if err := ctx.Err(); err != nil {
		return Memo{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.memos[m.ID]
	if !ok {
		return Memo{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return Memo{}, ConflictErr{MemoID: m.ID, ExpectedVersion: expectedVersion}
	}
	m.Version = expectedVersion + 1
	r.memos[m.ID] = cloneMemo(m)
	return cloneMemo(m), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memos[id]; !ok {
		return ErrNotFound
	}
	delete(r.memos, id)
	return nil
}

func (r *InMemoryRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Memo, 0)
	for _, m := range r.memos {
		if m.Status == status {
			out = append(out, cloneMemo(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneMemo(m Memo) Memo {
	clone := m
	clone.Tags = append([]string(nil), m.Tags...)
	clone.Recipients = append([]Recipient(nil), m.Recipients...)
	clone.Attachments = append(m.Attachments[:0:0], m.Attachments...)
	clone.Signatures = append([]Signature(nil), m.Signatures...)
	if m.DateOfIssue != nil {
		t := *m.DateOfIssue
		clone.DateOfIssue = &t
	}
	if m.SubmittedToDeskHeadAt != nil {
		t := *m.SubmittedToDeskHeadAt
		clone.SubmittedToDeskHeadAt = &t
	}
	if m.DeskHeadReviewer != nil {
		ref := *m.DeskHeadReviewer
		clone.DeskHeadReviewer = &ref
	}
	if m.DeskHeadReviewedAt != nil {
		t := *m.DeskHeadReviewedAt
		clone.DeskHeadReviewedAt = &t
	}
	if m.SubmittedToLEOAt != nil {
		t := *m.SubmittedToLEOAt
		clone.SubmittedToLEOAt = &t
	}
	if m.LEOReviewer != nil {
		ref := *m.LEOReviewer
		clone.LEOReviewer = &ref
	}
	if m.LEOReviewedAt != nil {
		t := *m.LEOReviewedAt
		clone.LEOReviewedAt = &t
	}
	if m.ApprovedAt != nil {
		t := *m.ApprovedAt
		clone.ApprovedAt = &t
	}
	return clone
}
