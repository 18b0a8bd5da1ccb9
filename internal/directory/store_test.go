package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveUser(t *testing.T) {
	d := NewInMemoryDirectory()
	d.Put(UserProfile{ID: "u-1", Name: "Ayu Lestari", Email: "ayu@example.go.id", Role: "staff"})

	p, err := d.ResolveUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if p.Name != "Ayu Lestari" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := d.ResolveUser(context.Background(), "u-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveUser_CancelledContext(t *testing.T) {
	d := NewInMemoryDirectory()
	d.Put(UserProfile{ID: "u-1", Name: "Ayu Lestari"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ResolveUser(ctx, "u-1"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `[
		{"id": "u-1", "name": "Ayu Lestari", "role": "staff"},
		{"id": "u-2", "name": "Budi Santoso", "role": "desk_head", "department": "Bagian Umum"}
	]`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	d := NewInMemoryDirectory()
	if err := d.LoadSeedFile(path); err != nil {
		t.Fatalf("load seed: %v", err)
	}
	p, err := d.ResolveUser(context.Background(), "u-2")
	if err != nil {
		t.Fatalf("resolve seeded user: %v", err)
	}
	if p.Role != "desk_head" || p.Department != "Bagian Umum" {
		t.Fatalf("unexpected seeded profile %+v", p)
	}
}

func TestLoadSeedFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(`{"not": "an array"}`), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	d := NewInMemoryDirectory()
	if err := d.LoadSeedFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
