package memo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) (*SQLiteRepository, *SQLiteEventRecorder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memos.db")
	repo, events, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	return repo, events
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	repo, _ := openTestSQLite(t)
	ctx := context.Background()

	m := fixtureMemo("memo-sql-1")
	reviewed := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	m.Status = StatusPendingLEO
	m.SubmittedToDeskHeadAt = &reviewed
	m.DeskHeadReviewer = &ReviewerRef{UserID: "u-desk", Name: "Budi Santoso"}
	m.DeskHeadComment = "diteruskan"
	m.DeskHeadReviewedAt = &reviewed
	m.SubmittedToLEOAt = &reviewed
	m.Signatures = []Signature{{SignatureID: "sig-1", SignerID: "u-desk", SignerName: "Budi Santoso", Action: ActionApprove, SignedAt: reviewed}}

	if err := repo.Insert(ctx, m); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	got, err := repo.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != m.Title || got.Status != StatusPendingLEO || got.Version != 1 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.DeskHeadReviewer == nil || got.DeskHeadReviewer.Name != "Budi Santoso" {
		t.Fatalf("reviewer not persisted: %+v", got.DeskHeadReviewer)
	}
	if got.DeskHeadReviewedAt == nil || !got.DeskHeadReviewedAt.Equal(reviewed) {
		t.Fatalf("reviewed timestamp mismatch: %v", got.DeskHeadReviewedAt)
	}
	if got.LEOReviewedAt != nil || got.ApprovedAt != nil {
		t.Fatalf("unreached stage timestamps must stay null: %+v", got)
	}
	if len(got.Signatures) != 1 || got.Signatures[0].SignatureID != "sig-1" {
		t.Fatalf("signatures not persisted: %+v", got.Signatures)
	}
	if len(got.Tags) != 1 || len(got.Recipients) != 1 {
		t.Fatalf("json columns not persisted: %+v", got)
	}
}

func TestSQLiteRepository_StaleWriteConflict(t *testing.T) {
	repo, _ := openTestSQLite(t)
	ctx := context.Background()
	m := fixtureMemo("memo-sql-2")
	if err := repo.Insert(ctx, m); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	m.Status = StatusPendingDeskHead
	updated, err := repo.Update(ctx, m, 1)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	stale := fixtureMemo("memo-sql-2")
	stale.Status = StatusRejected
	_, err = repo.Update(ctx, stale, 1)
	var cerr ConflictErr
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictErr, got %v", err)
	}

	_, err = repo.Update(ctx, fixtureMemo("memo-sql-missing"), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown memo, got %v", err)
	}
}

func TestSQLiteRepository_DeleteAndList(t *testing.T) {
	repo, _ := openTestSQLite(t)
	ctx := context.Background()
	a := fixtureMemo("memo-sql-a")
	b := fixtureMemo("memo-sql-b")
	b.CreatedAt = b.CreatedAt.Add(time.Hour)
	b.Status = StatusPendingDeskHead
	for _, m := range []Memo{a, b} {
		if err := repo.Insert(ctx, m); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	drafts, err := repo.ListByStatus(ctx, StatusDraft, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != a.ID {
		t.Fatalf("expected only draft memo, got %+v", drafts)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected memo gone, got %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteEventRecorder_AppendAndChain(t *testing.T) {
	_, events := openTestSQLite(t)
	ctx := context.Background()

	base := TransitionEvent{
		MemoID: "memo-sql-ev",
		Actor:  "u-author",
		Ts:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	first := base
	first.EventID = "ev-1"
	first.Action = "CREATE"
	first.To = StatusDraft
	if _, err := ChainEvent(ctx, events, first, true); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	second := base
	second.EventID = "ev-2"
	second.Action = "SUBMIT_TO_DESK_HEAD"
	second.From = StatusDraft
	second.To = StatusPendingDeskHead
	second.Ts = base.Ts.Add(time.Minute)
	if _, err := ChainEvent(ctx, events, second, true); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	list, err := events.List(ctx, "memo-sql-ev")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if list[0].EventID != "ev-1" || list[1].EventID != "ev-2" {
		t.Fatalf("expected append order preserved, got %+v", list)
	}
	if err := VerifyChain(list); err != nil {
		t.Fatalf("chain verification failed: %v", err)
	}

	last, err := events.Last(ctx, "memo-sql-ev")
	if err != nil || last.EventID != "ev-2" {
		t.Fatalf("expected last event ev-2, got %+v (%v)", last, err)
	}
	if _, err := events.Last(ctx, "memo-sql-empty"); err == nil {
		t.Fatalf("expected error for empty chain")
	}
}
