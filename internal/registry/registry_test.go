package registry

import (
	"sort"
	"testing"

	"go.uber.org/zap"

	"chargelink/internal/session"
)

type nopSender struct{}

func (nopSender) Send([]byte) error { return nil }

func newSession(id string) *session.Session {
	return session.New(id, nopSender{}, nil, nil, session.Options{}, zap.NewNop())
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New()
	s := newSession("CP-001")

	if evicted := reg.Register("CP-001", s); evicted != nil {
		t.Fatalf("expected no eviction on first register")
	}

	got, ok := reg.Lookup("CP-001")
	if !ok || got != s {
		t.Fatalf("expected lookup to return the registered session")
	}
	if _, ok := reg.Lookup("CP-404"); ok {
		t.Fatalf("expected unknown id to miss")
	}
}

func TestRegisterEvictsPredecessor(t *testing.T) {
	reg := New()
	first := newSession("CP-001")
	second := newSession("CP-001")

	reg.Register("CP-001", first)
	evicted := reg.Register("CP-001", second)
	if evicted != first {
		t.Fatalf("expected first session to be evicted")
	}

	got, _ := reg.Lookup("CP-001")
	if got != second {
		t.Fatalf("expected second session to own the id")
	}
}

func TestRegisterSameSessionIsNoop(t *testing.T) {
	reg := New()
	s := newSession("CP-001")

	reg.Register("CP-001", s)
	if evicted := reg.Register("CP-001", s); evicted != nil {
		t.Fatalf("expected re-registering the same session to evict nothing")
	}
}

func TestRemoveIsIdentityChecked(t *testing.T) {
	reg := New()
	old := newSession("CP-001")
	replacement := newSession("CP-001")

	reg.Register("CP-001", old)
	reg.Register("CP-001", replacement)

	// The superseded connection's deferred cleanup must not evict the
	// replacement.
	if reg.Remove("CP-001", old) {
		t.Fatalf("expected removal of stale session to be refused")
	}
	if _, ok := reg.Lookup("CP-001"); !ok {
		t.Fatalf("expected replacement to survive stale removal")
	}

	if !reg.Remove("CP-001", replacement) {
		t.Fatalf("expected removal of current session to succeed")
	}
	if _, ok := reg.Lookup("CP-001"); ok {
		t.Fatalf("expected id to be gone after removal")
	}
}

func TestListConnected(t *testing.T) {
	reg := New()
	reg.Register("CP-001", newSession("CP-001"))
	reg.Register("CP-002", newSession("CP-002"))

	ids := reg.ListConnected()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "CP-001" || ids[1] != "CP-002" {
		t.Fatalf("unexpected connected list: %v", ids)
	}
}
