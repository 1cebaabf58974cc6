package authz

import (
	"sync"
)

// Principal is the authenticated caller associated with the current session.
// The identity provider is the sole writer; guards only read it.
type Principal struct {
	ID    string // Supabase user ID (sub claim)
	Email string
	Token string // opaque bearer token the principal presented
}

// PrincipalState is the explicit three-state result for the session
// principal, replacing a boolean loading flag plus nullable value.
type PrincipalState int

const (
	// PrincipalPending covers the interval between session start and the
	// first resolution of session state. While pending the principal is
	// unknown, not absent; callers must not make redirect decisions.
	PrincipalPending PrincipalState = iota
	// PrincipalReady means session state settled: the principal pointer is
	// either the live principal or nil for a signed-out session.
	PrincipalReady
	// PrincipalFailed means the session check itself errored. Guards treat
	// this as signed-out (fail closed).
	PrincipalFailed
)

func (s PrincipalState) String() string {
	switch s {
	case PrincipalPending:
		return "pending"
	case PrincipalReady:
		return "ready"
	case PrincipalFailed:
		return "failed"
	}
	return "unknown"
}

// Session is the single owned session object. It holds the three-state
// principal and notifies subscribers on every identity change, so open
// guards re-evaluate instead of polling.
//
// The epoch counter increments on every principal mutation and serves as
// the per-lookup identity token: a role lookup started under one epoch is
// discarded if the epoch moved before it landed.
type Session struct {
	mu        sync.Mutex
	state     PrincipalState
	principal *Principal
	err       error
	epoch     uint64
	changed   chan struct{}
}

// NewSession starts a session in the pending state.
func NewSession() *Session {
	return &Session{
		state:   PrincipalPending,
		changed: make(chan struct{}),
	}
}

// SetPrincipal records a successful sign-in (or session restore) and wakes
// subscribers.
func (s *Session) SetPrincipal(p *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = PrincipalReady
	s.principal = p
	s.err = nil
	s.bump()
}

// Clear records a signed-out session and wakes subscribers. Sign-out is the
// only mutation path back to an absent principal.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = PrincipalReady
	s.principal = nil
	s.err = nil
	s.bump()
}

// Fail records a failed session check. Guards gate it as signed-out.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = PrincipalFailed
	s.principal = nil
	s.err = err
	s.bump()
}

func (s *Session) bump() {
	s.epoch++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Snapshot returns the current principal state and the epoch it was read
// under.
func (s *Session) Snapshot() (PrincipalState, *Principal, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.principal, s.epoch
}

// Err returns the session-check error, if the session is in the failed state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Changed returns a channel closed on the next principal mutation. Capture
// it before Snapshot to avoid missing a change between the two calls.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}
