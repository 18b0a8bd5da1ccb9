package memo

import (
	"context"
	"testing"
	"time"
)

func TestChainEvent_LinksPerMemo(t *testing.T) {
	rec := NewMemoryEventRecorder()
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, action := range []string{"CREATE", "SUBMIT_TO_DESK_HEAD", "SUBMIT_TO_LEO"} {
		ev := TransitionEvent{
			EventID: action,
			MemoID:  "memo-1",
			Action:  action,
			Ts:      ts.Add(time.Duration(i) * time.Minute),
		}
		if _, err := ChainEvent(ctx, rec, ev, true); err != nil {
			t.Fatalf("append %s failed: %v", action, err)
		}
	}
	// A second memo has its own chain.
	other := TransitionEvent{EventID: "other", MemoID: "memo-2", Action: "CREATE", Ts: ts}
	if _, err := ChainEvent(ctx, rec, other, true); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	list, _ := rec.List(ctx, "memo-1")
	if len(list) != 3 {
		t.Fatalf("expected 3 events, got %d", len(list))
	}
	if list[0].PrevHash != "" {
		t.Fatalf("first event must have empty prevHash, got %q", list[0].PrevHash)
	}
	for i := 1; i < len(list); i++ {
		if list[i].PrevHash != list[i-1].Hash {
			t.Fatalf("chain broken between %d and %d", i-1, i)
		}
	}
	if err := VerifyChain(list); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	otherList, _ := rec.List(ctx, "memo-2")
	if len(otherList) != 1 || otherList[0].PrevHash != "" {
		t.Fatalf("second memo chain must start fresh, got %+v", otherList)
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	rec := NewMemoryEventRecorder()
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := TransitionEvent{EventID: string(rune('a' + i)), MemoID: "memo-1", Action: "CREATE", Ts: ts.Add(time.Duration(i) * time.Minute)}
		if _, err := ChainEvent(ctx, rec, ev, true); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	list, _ := rec.List(ctx, "memo-1")
	if err := VerifyChain(list); err != nil {
		t.Fatalf("untampered chain must verify: %v", err)
	}
	list[1].Comment = "forged"
	if err := VerifyChain(list); err == nil {
		t.Fatalf("expected verification failure after tampering")
	}
}

func TestVerifyChain_DetectsEventIDTampering(t *testing.T) {
	rec := NewMemoryEventRecorder()
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		ev := TransitionEvent{EventID: string(rune('a' + i)), MemoID: "memo-1", Action: "CREATE", Ts: ts.Add(time.Duration(i) * time.Minute)}
		if _, err := ChainEvent(ctx, rec, ev, true); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	list, _ := rec.List(ctx, "memo-1")
	list[1].EventID = "forged"
	if err := VerifyChain(list); err == nil {
		t.Fatalf("expected verification failure after event id tampering")
	}
}

func TestChainEvent_UnhashedAppend(t *testing.T) {
	rec := NewMemoryEventRecorder()
	ctx := context.Background()
	ev := TransitionEvent{EventID: "ev-1", MemoID: "memo-1", Action: "CREATE", Ts: time.Now()}
	appended, err := ChainEvent(ctx, rec, ev, false)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if appended.Hash != "" || appended.PrevHash != "" {
		t.Fatalf("expected no hashing when disabled, got %+v", appended)
	}
}
