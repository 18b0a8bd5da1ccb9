package attachment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// File is raw upload content handed to the store.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Handle is the stable reference returned by the store; the owning record
// keeps handles, never raw bytes.
type Handle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int       `json:"size"`
	OwnerTag    string    `json:"ownerTag"`
	StoredAt    time.Time `json:"storedAt"`
}

// Store accepts raw files tagged with an owning module and returns stable
// handles. Failures must surface to the caller so no partial state is kept.
type Store interface {
	Store(ctx context.Context, files []File, ownerTag string) ([]Handle, error)
	Remove(ctx context.Context, handleIDs []string) error
}

type storedObject struct {
	handle Handle
	data   []byte
}

// InMemoryStore keeps file bytes in process memory. For production, replace
// with an object-storage implementation.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: map[string]storedObject{}}
}

func (s *InMemoryStore) Store(ctx context.Context, files []File, ownerTag string) ([]Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]Handle, 0, len(files))
	for _, f := range files {
		h := Handle{
			ID:          uuid.New().String(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        len(f.Data),
			OwnerTag:    ownerTag,
			StoredAt:    time.Now().UTC(),
		}
		s.objects[h.ID] = storedObject{handle: h, data: f.Data}
		handles = append(handles, h)
	}
	return handles, nil
}

func (s *InMemoryStore) Remove(ctx context.Context, handleIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range handleIDs {
		if _, ok := s.objects[id]; !ok {
			return fmt.Errorf("attachment %s not found", id)
		}
	}
	for _, id := range handleIDs {
		delete(s.objects, id)
	}
	return nil
}

// Get returns the stored bytes for a handle. Used by download paths and tests.
func (s *InMemoryStore) Get(handleID string) ([]byte, Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[handleID]
	if !ok {
		return nil, Handle{}, false
	}
	return obj.data, obj.handle, true
}
