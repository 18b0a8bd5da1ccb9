package memo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventRecorder is the append-only transition log, keyed by memo id. The
// memo row keeps the current audit columns for fast reads; the recorder
// keeps the immutable full history.
type EventRecorder interface {
	Append(ctx context.Context, ev TransitionEvent) error
	Last(ctx context.Context, memoID string) (TransitionEvent, error)
	List(ctx context.Context, memoID string) ([]TransitionEvent, error)
}

var errEmptyChain = errors.New("empty")

// ChainEvent links the event to the previous one for the same memo via a
// hash chain and appends it. With hashing disabled the event is appended
// unlinked.
func ChainEvent(ctx context.Context, rec EventRecorder, ev TransitionEvent, hashed bool) (TransitionEvent, error) {
	if hashed {
		prev, err := rec.Last(ctx, ev.MemoID)
		if err == nil {
			ev.PrevHash = prev.Hash
		}
		ev.Hash = hashEvent(ev)
	}
	return ev, rec.Append(ctx, ev)
}

func hashEvent(ev TransitionEvent) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s",
		ev.EventID, ev.MemoID, ev.Actor, ev.Action, ev.From, ev.To, ev.Comment,
		ev.Ts.UTC().Format(time.RFC3339Nano), ev.PrevHash)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain walks an event list in order and reports the first break in
// the hash chain, if any.
func VerifyChain(events []TransitionEvent) error {
	prevHash := ""
	for i, ev := range events {
		if ev.PrevHash != prevHash {
			return fmt.Errorf("chain broken at event %d (%s)", i, ev.EventID)
		}
		if ev.Hash != hashEvent(ev) {
			return fmt.Errorf("hash mismatch at event %d (%s)", i, ev.EventID)
		}
		prevHash = ev.Hash
	}
	return nil
}

// MemoryEventRecorder keeps events in process memory, ordered by append.
type MemoryEventRecorder struct {
	mu     sync.RWMutex
	byMemo map[string][]TransitionEvent
}

func NewMemoryEventRecorder() *MemoryEventRecorder {
	return &MemoryEventRecorder{byMemo: map[string][]TransitionEvent{}}
}

func (m *MemoryEventRecorder) Append(_ context.Context, ev TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMemo[ev.MemoID] = append(m.byMemo[ev.MemoID], ev)
	return nil
}

func (m *MemoryEventRecorder) Last(_ context.Context, memoID string) (TransitionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byMemo[memoID]
	if len(list) == 0 {
		return TransitionEvent{}, errEmptyChain
	}
	return list[len(list)-1], nil
}

func (m *MemoryEventRecorder) List(_ context.Context, memoID string) ([]TransitionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byMemo[memoID]
	out := make([]TransitionEvent, len(list))
	copy(out, list)
	return out, nil
}

// CorrelationLogger attaches the request correlation id and actor to every
// log line emitted while handling a command.
func CorrelationLogger(logger *slog.Logger, corrID, actor string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("corrId", corrID, "actor", actor)
}
