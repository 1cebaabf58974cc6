package authz

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys set for handlers once a guard allows the request.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
)

// ErrNoToken means the request carried no usable bearer token: there is no
// session, as opposed to an invalid or expired one.
var ErrNoToken = errors.New("no bearer token")

// Authenticator turns a bearer token into a principal. Implemented by the
// Supabase identity integration in the services package.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// ProfileSyncer ensures a profile row exists for a freshly authenticated
// principal. Sync failures are logged, never fatal to the request.
type ProfileSyncer interface {
	EnsureProfile(ctx context.Context, p *Principal) error
}

// GuardMiddleware mounts route guards in front of role-scoped subtrees.
// Every input is explicit: the identity integration, the role resolver and
// the bounded session-check timeout all arrive through the constructor.
type GuardMiddleware struct {
	Auth     Authenticator
	Resolver RoleResolver
	Syncer   ProfileSyncer
	Timeout  time.Duration
}

func NewGuardMiddleware(auth Authenticator, resolver RoleResolver, syncer ProfileSyncer, timeout time.Duration) *GuardMiddleware {
	return &GuardMiddleware{Auth: auth, Resolver: resolver, Syncer: syncer, Timeout: timeout}
}

// checkSession settles a fresh session for this navigation from the
// request's bearer token. A missing token settles to signed-out; an invalid
// token also settles to signed-out; a provider outage settles to failed, so
// the guard denies closed rather than granting or crashing.
func (m *GuardMiddleware) checkSession(c *gin.Context, session *Session) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		session.Clear()
		return
	}

	ctx := c.Request.Context()
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	principal, err := m.Auth.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			session.Clear()
		} else {
			session.Fail(err)
		}
		return
	}

	if m.Syncer != nil {
		if err := m.Syncer.EnsureProfile(ctx, principal); err != nil {
			log.Printf("AUTH profile sync failed for %s: %v", principal.ID, err)
		}
	}

	session.SetPrincipal(principal)
}

// ErrTokenInvalid marks tokens that parsed or verified badly, as opposed to
// provider/network failures. Declared here so Authenticator implementations
// and the middleware agree on the distinction.
var ErrTokenInvalid = errors.New("invalid token")

// RequireRoute guards a route subtree using the declarative requirement
// table. Unregistered prefixes deny everything: a guard with no policy
// fails closed.
func (m *GuardMiddleware) RequireRoute(prefix string) gin.HandlerFunc {
	role, ok := RequirementFor(prefix)
	if !ok {
		log.Printf("GUARD no route requirement registered for %s, denying all", prefix)
		return func(c *gin.Context) {
			m.deny(c, DecisionRedirectUnauthorized)
		}
	}
	return m.RequireRole(role)
}

// RequireRole gates the wrapped subtree on exact role equality. The
// handlers behind it only ever run after the guard reaches Allowed, so
// protected content cannot leak while the check is in flight.
func (m *GuardMiddleware) RequireRole(required Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := NewSession()
		guard := NewGuard(required, session, m.Resolver, m.Timeout)
		defer guard.Close()

		m.checkSession(c, session)

		state := guard.Evaluate(c.Request.Context())
		decision := state.Decision()

		if decision != DecisionAllow {
			log.Printf("GUARD %s: %s -> %s", c.Request.URL.Path, state, c.Request.Method)
			m.deny(c, decision)
			return
		}

		_, principal, _ := session.Snapshot()
		c.Set(ContextKeyUserID, principal.ID)
		c.Set(ContextKeyUserEmail, principal.Email)
		c.Set(ContextKeyUserRole, string(required))
		c.Next()
	}
}

// RequireSession admits any settled, signed-in principal without a role
// gate. Used for profile endpoints shared by every dashboard.
func (m *GuardMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := NewSession()
		m.checkSession(c, session)

		state, principal, _ := session.Snapshot()
		if state != PrincipalReady || principal == nil {
			if err := session.Err(); err != nil {
				log.Printf("AUTH session check failed: %v", err)
			}
			m.deny(c, DecisionRedirectSignIn)
			return
		}

		c.Set(ContextKeyUserID, principal.ID)
		c.Set(ContextKeyUserEmail, principal.Email)

		res := m.Resolver.Resolve(c.Request.Context(), principal.ID)
		if res.State == ResolutionReady {
			c.Set(ContextKeyUserRole, string(res.Role))
		}
		c.Next()
	}
}

// deny terminates the navigation with the decision's redirect. Browser
// navigations get a replace-style redirect; API clients get the status and
// the target to follow.
func (m *GuardMiddleware) deny(c *gin.Context, decision GuardDecision) {
	path, _ := decision.RedirectPath()

	if acceptsHTML(c.GetHeader("Accept")) {
		c.Redirect(http.StatusFound, path)
		c.Abort()
		return
	}

	status := http.StatusForbidden
	message := "You don't have access to this page"
	if decision == DecisionRedirectSignIn {
		status = http.StatusUnauthorized
		message = "Sign in to continue"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":    http.StatusText(status),
		"message":  message,
		"redirect": path,
	})
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrNoToken
	}
	return parts[1], nil
}

func acceptsHTML(accept string) bool {
	return strings.Contains(accept, "text/html")
}

// PrincipalFromContext reads the allowed principal's identity back out of
// the gin context.
func PrincipalFromContext(c *gin.Context) (id, email string, ok bool) {
	id = c.GetString(ContextKeyUserID)
	email = c.GetString(ContextKeyUserEmail)
	return id, email, id != ""
}
