package ocpp

import (
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestPendingCallsResolve(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	ch, err := calls.Register("msg-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if calls.Len() != 1 {
		t.Fatalf("expected 1 pending call, got %d", calls.Len())
	}

	calls.Resolve("msg-1", json.RawMessage(`{"status":"Accepted"}`))

	out := <-ch
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if string(out.Payload) != `{"status":"Accepted"}` {
		t.Fatalf("unexpected payload: %s", out.Payload)
	}
	if calls.Len() != 0 {
		t.Fatalf("expected empty table after resolve, got %d", calls.Len())
	}
}

func TestPendingCallsReject(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	ch, err := calls.Register("msg-2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	calls.Reject("msg-2", "InternalError", "boom")

	out := <-ch
	var failure *CallFailure
	if !errors.As(out.Err, &failure) {
		t.Fatalf("expected CallFailure, got %v", out.Err)
	}
	if failure.Code != "InternalError" || failure.Description != "boom" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestPendingCallsDuplicateID(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	if _, err := calls.Register("msg-3"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := calls.Register("msg-3"); !errors.Is(err, ErrDuplicatePendingID) {
		t.Fatalf("expected ErrDuplicatePendingID, got %v", err)
	}
}

func TestPendingCallsUnknownIDIgnored(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	// Must not panic or create entries.
	calls.Resolve("ghost", json.RawMessage(`{}`))
	calls.Reject("ghost", "InternalError", "late")

	if calls.Len() != 0 {
		t.Fatalf("expected empty table, got %d", calls.Len())
	}
}

func TestPendingCallsAbandon(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	if _, err := calls.Register("msg-4"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !calls.Abandon("msg-4") {
		t.Fatalf("expected abandon to claim the pending entry")
	}
	if calls.Abandon("msg-4") {
		t.Fatalf("expected second abandon to report missing entry")
	}

	// After abandoning, a late response is silently dropped.
	calls.Resolve("msg-4", json.RawMessage(`{}`))
}

func TestPendingCallsAbandonAfterResolve(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	ch, err := calls.Register("msg-5")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	calls.Resolve("msg-5", json.RawMessage(`{"ok":true}`))

	// The response claimed the entry first, so abandon loses the race and
	// the outcome is readable from the channel.
	if calls.Abandon("msg-5") {
		t.Fatalf("expected abandon to lose to the resolved response")
	}
	out := <-ch
	if out.Err != nil || string(out.Payload) != `{"ok":true}` {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestPendingCallsFailAll(t *testing.T) {
	calls := NewPendingCalls(zap.NewNop())

	ch1, _ := calls.Register("msg-6")
	ch2, _ := calls.Register("msg-7")

	sentinel := errors.New("connection closed")
	calls.FailAll(sentinel)

	for _, ch := range []<-chan Outcome{ch1, ch2} {
		out := <-ch
		if !errors.Is(out.Err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", out.Err)
		}
	}
	if calls.Len() != 0 {
		t.Fatalf("expected empty table after FailAll, got %d", calls.Len())
	}
}
