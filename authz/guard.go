package authz

import (
	"context"
	"log"
	"sync"
	"time"
)

// GuardState is the state of one mounted route guard.
type GuardState int

const (
	// StateLoading waits on session settle and/or role resolution. It is
	// the only state allowed to render a wait indicator instead of content
	// or a redirect.
	StateLoading GuardState = iota
	// StateAllowed renders the protected subtree.
	StateAllowed
	// StateDeniedNoSession redirects to the sign-in page.
	StateDeniedNoSession
	// StateDeniedWrongRole redirects to the unauthorized page.
	StateDeniedWrongRole
	// StateDeniedUnresolvedRole is a failed or missing role lookup for a
	// live principal. Redirects like StateDeniedWrongRole (fails closed).
	StateDeniedUnresolvedRole
)

func (s GuardState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAllowed:
		return "allowed"
	case StateDeniedNoSession:
		return "denied_no_session"
	case StateDeniedWrongRole:
		return "denied_wrong_role"
	case StateDeniedUnresolvedRole:
		return "denied_unresolved_role"
	}
	return "unknown"
}

// GuardDecision is the consumer-facing outcome computed fresh for every
// navigation; it is never persisted.
type GuardDecision int

const (
	DecisionWait GuardDecision = iota
	DecisionAllow
	DecisionRedirectSignIn
	DecisionRedirectUnauthorized
)

// Decision maps a guard state to what the router should do with it.
func (s GuardState) Decision() GuardDecision {
	switch s {
	case StateAllowed:
		return DecisionAllow
	case StateDeniedNoSession:
		return DecisionRedirectSignIn
	case StateDeniedWrongRole, StateDeniedUnresolvedRole:
		return DecisionRedirectUnauthorized
	}
	return DecisionWait
}

// RedirectPath returns the redirect target for a denied decision.
func (d GuardDecision) RedirectPath() (string, bool) {
	switch d {
	case DecisionRedirectSignIn:
		return SignInPath, true
	case DecisionRedirectUnauthorized:
		return UnauthorizedPath, true
	}
	return "", false
}

// Guard gates one protected route subtree on a single required role.
//
// The guard subscribes to its session: any principal change drops it back
// to loading, so a stale allow never survives an identity swap. Role
// lookups carry the session epoch they started under and are discarded if
// the epoch moved before they landed.
type Guard struct {
	required Role
	session  *Session
	resolver RoleResolver
	timeout  time.Duration

	mu    sync.Mutex
	state GuardState
	stop  chan struct{}
}

// NewGuard mounts a guard for the given required role. timeout bounds the
// wait on the initial session check; zero means no bound.
func NewGuard(required Role, session *Session, resolver RoleResolver, timeout time.Duration) *Guard {
	g := &Guard{
		required: required,
		session:  session,
		resolver: resolver,
		timeout:  timeout,
		state:    StateLoading,
		stop:     make(chan struct{}),
	}
	// Capture the change channel before the goroutine starts. A closed
	// channel stays readable, so a mutation landing before watch is
	// scheduled still wakes it.
	go g.watch(session.Changed())
	return g
}

// watch drops the guard back to loading whenever the principal changes.
func (g *Guard) watch(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
			g.setState(StateLoading)
		case <-g.stop:
			return
		}
		ch = g.session.Changed()
	}
}

// Close unmounts the guard and cancels its subscription.
func (g *Guard) Close() {
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
}

// State reports the last evaluated state without re-evaluating.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) setState(s GuardState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Required returns the role this guard demands.
func (g *Guard) Required() Role {
	return g.required
}

// Evaluate drives the guard from loading to a terminal state for the
// current navigation and returns it. The protected subtree must only be
// rendered after StateAllowed comes back; every denied state carries an
// outgoing redirect through Decision().
func (g *Guard) Evaluate(ctx context.Context) GuardState {
	var deadline <-chan time.Time
	if g.timeout > 0 {
		t := time.NewTimer(g.timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		// Capture the change channel before the snapshot so a mutation
		// between the two cannot be missed.
		changed := g.session.Changed()
		state, principal, epoch := g.session.Snapshot()

		switch state {
		case PrincipalPending:
			g.setState(StateLoading)
			select {
			case <-changed:
				continue
			case <-deadline:
				// Bounded wait expired with session state unknown.
				// Never fail open.
				log.Printf("GUARD session check timed out after %v, denying", g.timeout)
				g.setState(StateDeniedNoSession)
				return StateDeniedNoSession
			case <-ctx.Done():
				g.setState(StateDeniedNoSession)
				return StateDeniedNoSession
			}

		case PrincipalFailed:
			log.Printf("GUARD session check failed: %v", g.session.Err())
			if st, ok := g.settle(StateDeniedNoSession, epoch); ok {
				return st
			}
			continue

		case PrincipalReady:
			if principal == nil {
				if st, ok := g.settle(StateDeniedNoSession, epoch); ok {
					return st
				}
				continue
			}

			res := g.resolver.Resolve(ctx, principal.ID)

			// Stale lookup discard: if the principal changed while the
			// lookup was in flight, this resolution belongs to the old
			// identity and must not decide for the new one.
			if _, _, now := g.session.Snapshot(); now != epoch {
				g.setState(StateLoading)
				continue
			}

			outcome := StateDeniedUnresolvedRole
			switch res.State {
			case ResolutionReady:
				if res.Role == g.required {
					outcome = StateAllowed
				} else {
					outcome = StateDeniedWrongRole
				}
			default:
				if res.Err != nil {
					log.Printf("GUARD role unresolved for %s: %v", principal.ID, res.Err)
				}
			}
			if st, ok := g.settle(outcome, epoch); ok {
				return st
			}
			continue
		}
	}
}

// settle records a terminal state for the epoch the evaluation started
// under. If the session moved in the meantime the outcome is stale; the
// guard drops back to loading instead, so a finished evaluation never
// overwrites the invalidation done by watch.
func (g *Guard) settle(s GuardState, epoch uint64) (GuardState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, _, now := g.session.Snapshot(); now != epoch {
		g.state = StateLoading
		return StateLoading, false
	}
	g.state = s
	return s, true
}
