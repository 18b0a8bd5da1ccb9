package attachment

import (
	"bytes"
	"context"
	"testing"
)

func TestStoreAndGet(t *testing.T) {
	s := NewInMemoryStore()
	files := []File{
		{Name: "lampiran-a.pdf", ContentType: "application/pdf", Data: []byte("pdf-bytes")},
		{Name: "lampiran-b.xlsx", ContentType: "application/vnd.ms-excel", Data: []byte("xlsx-bytes")},
	}
	handles, err := s.Store(context.Background(), files, "memo:m-1")
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 handles, got %d", len(handles))
	}
	for i, h := range handles {
		if h.ID == "" {
			t.Fatalf("handle %d has empty id", i)
		}
		if h.OwnerTag != "memo:m-1" {
			t.Fatalf("handle %d owner tag %q", i, h.OwnerTag)
		}
		if h.Size != len(files[i].Data) {
			t.Fatalf("handle %d size %d, want %d", i, h.Size, len(files[i].Data))
		}
		data, got, ok := s.Get(h.ID)
		if !ok {
			t.Fatalf("stored object %s missing", h.ID)
		}
		if !bytes.Equal(data, files[i].Data) {
			t.Fatalf("handle %d bytes differ", i)
		}
		if got.Name != files[i].Name {
			t.Fatalf("handle %d name %q, want %q", i, got.Name, files[i].Name)
		}
	}
}

func TestRemove(t *testing.T) {
	s := NewInMemoryStore()
	handles, err := s.Store(context.Background(), []File{{Name: "a.txt", Data: []byte("a")}}, "memo:m-1")
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := s.Remove(context.Background(), []string{handles[0].ID}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, _, ok := s.Get(handles[0].ID); ok {
		t.Fatalf("object survived removal")
	}
}

func TestRemove_UnknownHandleLeavesStateIntact(t *testing.T) {
	s := NewInMemoryStore()
	handles, err := s.Store(context.Background(), []File{{Name: "a.txt", Data: []byte("a")}}, "memo:m-1")
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := s.Remove(context.Background(), []string{handles[0].ID, "not-a-handle"}); err == nil {
		t.Fatalf("expected error for unknown handle")
	}
	if _, _, ok := s.Get(handles[0].ID); !ok {
		t.Fatalf("known object deleted despite failed batch")
	}
}

func TestStore_CancelledContext(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Store(ctx, []File{{Name: "a.txt"}}, "memo:m-1"); err == nil {
		t.Fatalf("expected context error")
	}
}
