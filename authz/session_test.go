package authz

import (
	"errors"
	"testing"
)

func TestSession_StartsPending(t *testing.T) {
	s := NewSession()
	state, principal, _ := s.Snapshot()
	if state != PrincipalPending {
		t.Errorf("state = %v, want pending", state)
	}
	if principal != nil {
		t.Error("pending session must not expose a principal")
	}
}

func TestSession_EpochAdvancesOnEveryChange(t *testing.T) {
	s := NewSession()
	_, _, e0 := s.Snapshot()

	s.SetPrincipal(&Principal{ID: "user-1"})
	_, _, e1 := s.Snapshot()
	if e1 <= e0 {
		t.Errorf("epoch did not advance on sign-in: %d -> %d", e0, e1)
	}

	s.Clear()
	_, p, e2 := s.Snapshot()
	if e2 <= e1 {
		t.Errorf("epoch did not advance on sign-out: %d -> %d", e1, e2)
	}
	if p != nil {
		t.Error("cleared session still exposes a principal")
	}

	s.Fail(errors.New("boom"))
	state, _, e3 := s.Snapshot()
	if e3 <= e2 || state != PrincipalFailed {
		t.Errorf("fail: epoch %d -> %d, state %v", e2, e3, state)
	}
	if s.Err() == nil {
		t.Error("failed session lost its error")
	}
}

func TestSession_ChangedWakesWaiters(t *testing.T) {
	s := NewSession()
	ch := s.Changed()

	select {
	case <-ch:
		t.Fatal("channel closed before any change")
	default:
	}

	s.SetPrincipal(&Principal{ID: "user-1"})

	select {
	case <-ch:
	default:
		t.Fatal("waiter not woken by principal change")
	}

	// A fresh channel covers the next change only.
	ch2 := s.Changed()
	select {
	case <-ch2:
		t.Fatal("new channel already closed")
	default:
	}
}
