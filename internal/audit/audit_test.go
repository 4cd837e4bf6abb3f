package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/auth"
)

type stubStore struct {
	entries []Entry
	failing bool
}

func (s *stubStore) Append(_ context.Context, entry *Entry) error {
	if s.failing {
		return errors.New("store down")
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubStore) List(_ context.Context, limit int) ([]Entry, error) {
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return s.entries[:limit], nil
}

func TestRecordFillsDefaults(t *testing.T) {
	store := &stubStore{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(store, WithClock(func() time.Time { return now }))

	entry := rec.Record(context.Background(), Entry{
		Action:     ActionInviteCreated,
		TargetType: "invite",
		TargetID:   "tok-1",
	})
	if entry.ID == "" {
		t.Fatal("expected generated id")
	}
	if !entry.CreatedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", entry.CreatedAt)
	}
	if entry.Origin != "unknown" || entry.ClientInfo != "unknown" {
		t.Fatalf("missing origin info must default to unknown, got %q %q", entry.Origin, entry.ClientInfo)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected one stored entry, got %d", len(store.entries))
	}
}

func TestRecordPicksActorAndRequestIDFromContext(t *testing.T) {
	store := &stubStore{}
	rec := NewRecorder(store)

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{ID: "actor-1", DisplayName: "Actor"})

	entry := rec.Record(ctx, Entry{Action: ActionSessionStarted, TargetType: "assist_session", TargetID: "s1"})
	if entry.RequestID != "req-42" {
		t.Fatalf("expected request id from context, got %q", entry.RequestID)
	}
	if entry.ActorID != "actor-1" || entry.ActorName != "Actor" {
		t.Fatalf("expected actor from context, got %q %q", entry.ActorID, entry.ActorName)
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(&stubStore{failing: true})

	// Must not panic or propagate: the action the entry documents already
	// succeeded.
	entry := rec.Record(context.Background(), Entry{Action: ActionRoleChanged, TargetType: "user", TargetID: "u1"})
	if entry.Action != ActionRoleChanged {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestListClampsLimit(t *testing.T) {
	store := &stubStore{}
	rec := NewRecorder(store)
	for i := 0; i < 150; i++ {
		rec.Record(context.Background(), Entry{Action: ActionInviteSent, TargetType: "invite", TargetID: "t"})
	}

	entries, err := rec.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("zero limit must clamp to 100, got %d", len(entries))
	}

	entries, err = rec.List(context.Background(), 10_000)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("oversized limit must clamp to 100, got %d", len(entries))
	}
}
