package session

import (
	"context"
	"testing"

	"github.com/kbarnes/sqlited/internal/dbengine"
	"github.com/kbarnes/sqlited/internal/writelock"
)

func newHandle(t *testing.T) *dbengine.Handle {
	t.Helper()
	h, err := dbengine.Open(context.Background(), ":memory:", dbengine.BusyParams{MaxRetry: 1, SleepMS: 1}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return h
}

func TestPutAndGet(t *testing.T) {
	r := NewRegistry(writelock.New())
	h := newHandle(t)
	r.Put(&Session{ClientID: 1, Path: "a.db", Handle: h})

	s, ok := r.Get(1)
	if !ok {
		t.Fatal("expected session for client 1")
	}
	if s.Path != "a.db" {
		t.Errorf("Path = %q, want a.db", s.Path)
	}

	if _, ok := r.Get(2); ok {
		t.Fatal("expected no session for client 2")
	}
}

func TestRemoveReleasesWriteSlot(t *testing.T) {
	w := writelock.New()
	r := NewRegistry(w)
	h := newHandle(t)
	r.Put(&Session{ClientID: 1, Path: "a.db", Handle: h})

	if err := w.Acquire(writelock.HolderID(1), writelock.KindBegin, func() error { return nil }); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, ok := w.Holder(); !ok {
		t.Fatal("expected held write slot")
	}

	r.Remove(1)

	if _, ok := w.Holder(); ok {
		t.Fatal("expected write slot released on session removal")
	}
	if _, ok := r.Get(1); ok {
		t.Fatal("expected session gone after Remove")
	}
}

func TestRemoveByPathMatchesMultipleClients(t *testing.T) {
	r := NewRegistry(writelock.New())
	r.Put(&Session{ClientID: 1, Path: "shared.db", Handle: newHandle(t)})
	r.Put(&Session{ClientID: 2, Path: "shared.db", Handle: newHandle(t)})
	r.Put(&Session{ClientID: 3, Path: "other.db", Handle: newHandle(t)})

	removed := r.RemoveByPath("shared.db")
	if len(removed) != 2 {
		t.Fatalf("removed = %d, want 2", len(removed))
	}
	if _, ok := r.Get(1); ok {
		t.Error("client 1 session should be gone")
	}
	if _, ok := r.Get(2); ok {
		t.Error("client 2 session should be gone")
	}
	if _, ok := r.Get(3); !ok {
		t.Error("client 3 session should remain")
	}
}

func TestRemoveUnknownClientIsNoop(t *testing.T) {
	r := NewRegistry(writelock.New())
	r.Remove(999)
}
