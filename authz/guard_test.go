package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeResolver returns a fixed resolution per principal ID and can be made
// to block until released, to simulate an in-flight lookup.
type fakeResolver struct {
	mu    sync.Mutex
	roles map[string]Resolution
	block chan struct{}
	calls []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{roles: make(map[string]Resolution)}
}

func (f *fakeResolver) set(principalID string, res Resolution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[principalID] = res
}

func (f *fakeResolver) Resolve(ctx context.Context, principalID string) Resolution {
	f.mu.Lock()
	block := f.block
	f.calls = append(f.calls, principalID)
	res, ok := f.roles[principalID]
	f.mu.Unlock()

	if block != nil {
		<-block
		// Only the first lookup blocks.
		f.mu.Lock()
		f.block = nil
		f.mu.Unlock()
	}
	if !ok {
		return Resolution{State: ResolutionFailed, Err: ErrRoleNotFound}
	}
	return res
}

func waitForState(t *testing.T, g *Guard, want GuardState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if g.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("guard never reached %v, stuck at %v", want, g.State())
}

func TestGuard_FailClosedOnUnresolvedRole(t *testing.T) {
	resolver := newFakeResolver() // no roles registered
	session := NewSession()
	session.SetPrincipal(&Principal{ID: "user-1", Email: "u1@iste.org"})

	g := NewGuard(RoleExecom, session, resolver, time.Second)
	defer g.Close()

	state := g.Evaluate(context.Background())
	if state == StateAllowed {
		t.Fatal("unresolved role must never allow")
	}
	if state != StateDeniedUnresolvedRole {
		t.Errorf("state = %v, want %v", state, StateDeniedUnresolvedRole)
	}
	if got := state.Decision(); got != DecisionRedirectUnauthorized {
		t.Errorf("decision = %v, want redirect to unauthorized", got)
	}
}

func TestGuard_FailClosedOnResolverError(t *testing.T) {
	resolver := newFakeResolver()
	resolver.set("user-1", Resolution{State: ResolutionFailed, Err: errors.New("backend unavailable")})
	session := NewSession()
	session.SetPrincipal(&Principal{ID: "user-1"})

	g := NewGuard(RoleTreasurer, session, resolver, time.Second)
	defer g.Close()

	state := g.Evaluate(context.Background())
	if state != StateDeniedUnresolvedRole {
		t.Errorf("state = %v, want %v", state, StateDeniedUnresolvedRole)
	}
	if path, _ := state.Decision().RedirectPath(); path != UnauthorizedPath {
		t.Errorf("redirect = %q, want %q", path, UnauthorizedPath)
	}
}

func TestGuard_NoContentWhileLoading(t *testing.T) {
	resolver := newFakeResolver()
	resolver.set("user-1", Resolution{State: ResolutionReady, Role: RoleExecom})
	session := NewSession() // pending: session check not settled yet

	g := NewGuard(RoleExecom, session, resolver, 5*time.Second)
	defer g.Close()

	done := make(chan GuardState, 1)
	go func() { done <- g.Evaluate(context.Background()) }()

	// While the session is pending the guard must sit in loading, never
	// in an allowed state.
	time.Sleep(20 * time.Millisecond)
	if got := g.State(); got != StateLoading {
		t.Fatalf("state while session pending = %v, want loading", got)
	}

	session.SetPrincipal(&Principal{ID: "user-1"})
	if state := <-done; state != StateAllowed {
		t.Errorf("state after settle = %v, want allowed", state)
	}
}

func TestGuard_RoleEqualityGate(t *testing.T) {
	all := []Role{RolePublic, RoleExecom, RoleTreasurer, RoleFaculty, RoleAdmin}
	for _, required := range all {
		for _, actual := range all {
			resolver := newFakeResolver()
			resolver.set("user-1", Resolution{State: ResolutionReady, Role: actual})
			session := NewSession()
			session.SetPrincipal(&Principal{ID: "user-1"})

			g := NewGuard(required, session, resolver, time.Second)
			state := g.Evaluate(context.Background())
			g.Close()

			if required == actual {
				if state != StateAllowed {
					t.Errorf("required=%s actual=%s: state = %v, want allowed", required, actual, state)
				}
			} else if state != StateDeniedWrongRole {
				// Flat role model: no role satisfies another, admin included.
				t.Errorf("required=%s actual=%s: state = %v, want denied_wrong_role", required, actual, state)
			}
		}
	}
}

func TestGuard_AnonymousDeniedNoSession(t *testing.T) {
	resolver := newFakeResolver()
	session := NewSession()
	session.Clear() // settled, signed out

	g := NewGuard(RoleExecom, session, resolver, time.Second)
	defer g.Close()

	state := g.Evaluate(context.Background())
	if state != StateDeniedNoSession {
		t.Errorf("state = %v, want %v", state, StateDeniedNoSession)
	}
	if path, _ := state.Decision().RedirectPath(); path != SignInPath {
		t.Errorf("redirect = %q, want %q (sign-in, not unauthorized)", path, SignInPath)
	}
	if len(resolver.calls) != 0 {
		t.Errorf("resolver invoked %d times for absent principal, want 0", len(resolver.calls))
	}
}

func TestGuard_IdentityChangeInvalidatesAllow(t *testing.T) {
	resolver := newFakeResolver()
	resolver.set("user-1", Resolution{State: ResolutionReady, Role: RoleTreasurer})
	session := NewSession()
	session.SetPrincipal(&Principal{ID: "user-1"})

	g := NewGuard(RoleTreasurer, session, resolver, time.Second)
	defer g.Close()

	if state := g.Evaluate(context.Background()); state != StateAllowed {
		t.Fatalf("initial state = %v, want allowed", state)
	}

	// Sign-out while viewing: the guard must fall back to loading before
	// any new decision, then deny to sign-in on re-evaluation.
	session.Clear()
	waitForState(t, g, StateLoading)

	state := g.Evaluate(context.Background())
	if state != StateDeniedNoSession {
		t.Errorf("state after sign-out = %v, want %v", state, StateDeniedNoSession)
	}
}

func TestGuard_IdentitySwapInvalidatesAllow(t *testing.T) {
	resolver := newFakeResolver()
	resolver.set("user-1", Resolution{State: ResolutionReady, Role: RoleExecom})
	resolver.set("user-2", Resolution{State: ResolutionReady, Role: RolePublic})
	session := NewSession()
	session.SetPrincipal(&Principal{ID: "user-1"})

	g := NewGuard(RoleExecom, session, resolver, time.Second)
	defer g.Close()

	if state := g.Evaluate(context.Background()); state != StateAllowed {
		t.Fatalf("initial state = %v, want allowed", state)
	}

	session.SetPrincipal(&Principal{ID: "user-2"})
	waitForState(t, g, StateLoading)

	if state := g.Evaluate(context.Background()); state != StateDeniedWrongRole {
		t.Errorf("state after identity swap = %v, want denied_wrong_role", state)
	}
}

func TestGuard_StaleLookupDiscarded(t *testing.T) {
	resolver := newFakeResolver()
	// user-1 would be allowed; user-2 would not.
	resolver.set("user-1", Resolution{State: ResolutionReady, Role: RoleExecom})
	resolver.set("user-2", Resolution{State: ResolutionReady, Role: RolePublic})
	release := make(chan struct{})
	resolver.block = release

	session := NewSession()
	session.SetPrincipal(&Principal{ID: "user-1"})

	g := NewGuard(RoleExecom, session, resolver, 5*time.Second)
	defer g.Close()

	done := make(chan GuardState, 1)
	go func() { done <- g.Evaluate(context.Background()) }()

	// Wait for the user-1 lookup to be in flight, then swap principals
	// before it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resolver.mu.Lock()
		n := len(resolver.calls)
		resolver.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lookup was never started")
		}
		time.Sleep(time.Millisecond)
	}
	session.SetPrincipal(&Principal{ID: "user-2"})
	close(release)

	state := <-done
	if state == StateAllowed {
		t.Fatal("stale user-1 resolution must not allow user-2")
	}
	if state != StateDeniedWrongRole {
		t.Errorf("state = %v, want denied_wrong_role for user-2", state)
	}

	resolver.mu.Lock()
	last := resolver.calls[len(resolver.calls)-1]
	resolver.mu.Unlock()
	if last != "user-2" {
		t.Errorf("final decision resolved for %q, want user-2", last)
	}
}

func TestGuard_SignOutDuringLookupNotAllowed(t *testing.T) {
	resolver := newFakeResolver()
	resolver.set("user-1", Resolution{State: ResolutionReady, Role: RoleExecom})
	release := make(chan struct{})
	resolver.block = release

	session := NewSession()
	session.SetPrincipal(&Principal{ID: "user-1"})

	g := NewGuard(RoleExecom, session, resolver, 5*time.Second)
	defer g.Close()

	done := make(chan GuardState, 1)
	go func() { done <- g.Evaluate(context.Background()) }()

	// Wait for the allowing lookup to be in flight, then sign out before
	// it lands. The finished lookup belongs to the dead session and must
	// not put the guard in allowed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resolver.mu.Lock()
		n := len(resolver.calls)
		resolver.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lookup was never started")
		}
		time.Sleep(time.Millisecond)
	}
	session.Clear()
	close(release)

	state := <-done
	if state == StateAllowed {
		t.Fatal("resolution finished after sign-out must not allow")
	}
	if state != StateDeniedNoSession {
		t.Errorf("state = %v, want %v", state, StateDeniedNoSession)
	}
	if final := g.State(); final == StateAllowed {
		t.Fatalf("guard state after sign-out = %v, want anything but allowed", final)
	}
}

func TestGuard_SessionCheckTimeoutDeniesClosed(t *testing.T) {
	resolver := newFakeResolver()
	session := NewSession() // never settles

	g := NewGuard(RoleFaculty, session, resolver, 30*time.Millisecond)
	defer g.Close()

	state := g.Evaluate(context.Background())
	if state != StateDeniedNoSession {
		t.Errorf("state after timeout = %v, want %v", state, StateDeniedNoSession)
	}
}

func TestGuard_SessionCheckFailureDeniesClosed(t *testing.T) {
	resolver := newFakeResolver()
	session := NewSession()
	session.Fail(errors.New("identity provider unreachable"))

	g := NewGuard(RoleAdmin, session, resolver, time.Second)
	defer g.Close()

	if state := g.Evaluate(context.Background()); state != StateDeniedNoSession {
		t.Errorf("state = %v, want %v", state, StateDeniedNoSession)
	}
}

func TestGuardState_Decisions(t *testing.T) {
	tests := []struct {
		state GuardState
		want  GuardDecision
	}{
		{StateLoading, DecisionWait},
		{StateAllowed, DecisionAllow},
		{StateDeniedNoSession, DecisionRedirectSignIn},
		{StateDeniedWrongRole, DecisionRedirectUnauthorized},
		{StateDeniedUnresolvedRole, DecisionRedirectUnauthorized},
	}
	for _, tt := range tests {
		if got := tt.state.Decision(); got != tt.want {
			t.Errorf("%v.Decision() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
