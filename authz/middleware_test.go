package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// mapAuthenticator resolves bearer tokens from a fixed table. Unknown
// tokens are invalid; a nil table simulates a provider outage.
type mapAuthenticator struct {
	principals map[string]*Principal
	down       bool
}

func (a *mapAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if a.down {
		return nil, errors.New("identity provider unreachable")
	}
	p, ok := a.principals[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", ErrTokenInvalid)
	}
	return p, nil
}

func newTestRouter(m *GuardMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, prefix := range ProtectedPrefixes() {
		group := r.Group(prefix)
		group.Use(m.RequireRoute(prefix))
		group.GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "dashboard for %s", c.GetString(ContextKeyUserRole))
		})
	}
	return r
}

func guardEnv(t *testing.T) (*fakeResolver, *mapAuthenticator, *gin.Engine) {
	t.Helper()
	resolver := newFakeResolver()
	auth := &mapAuthenticator{principals: map[string]*Principal{
		"tok-public": {ID: "user-public", Email: "member@iste.org", Token: "tok-public"},
		"tok-execom": {ID: "user-execom", Email: "execom@iste.org", Token: "tok-execom"},
	}}
	resolver.set("user-public", Resolution{State: ResolutionReady, Role: RolePublic})
	resolver.set("user-execom", Resolution{State: ResolutionReady, Role: RoleExecom})

	m := NewGuardMiddleware(auth, resolver, nil, time.Second)
	return resolver, auth, newTestRouter(m)
}

func browserGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRole_AnonymousRedirectsToSignIn(t *testing.T) {
	_, _, r := guardEnv(t)

	w := browserGet(r, "/dashboard/execom", "")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != SignInPath {
		t.Errorf("redirect = %q, want %q (sign-in, not unauthorized)", loc, SignInPath)
	}
}

func TestRequireRole_WrongRoleRedirectsToUnauthorized(t *testing.T) {
	_, _, r := guardEnv(t)

	w := browserGet(r, "/dashboard/execom", "tok-public")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != UnauthorizedPath {
		t.Errorf("redirect = %q, want %q", loc, UnauthorizedPath)
	}
}

func TestRequireRole_MatchingRoleRenders(t *testing.T) {
	_, _, r := guardEnv(t)

	w := browserGet(r, "/dashboard/execom", "tok-execom")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %q", w.Code, http.StatusOK, w.Body.String())
	}
	if got := w.Body.String(); got != "dashboard for execom" {
		t.Errorf("body = %q", got)
	}
}

func TestRequireRole_ResolverErrorRedirectsToUnauthorized(t *testing.T) {
	resolver, _, r := guardEnv(t)
	resolver.set("user-execom", Resolution{State: ResolutionFailed, Err: errors.New("profiles backend down")})

	w := browserGet(r, "/dashboard/execom", "tok-execom")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect, body %q", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != UnauthorizedPath {
		t.Errorf("redirect = %q, want %q", loc, UnauthorizedPath)
	}
}

func TestRequireRole_ProviderOutageDeniesClosed(t *testing.T) {
	_, auth, r := guardEnv(t)
	auth.down = true

	w := browserGet(r, "/dashboard/treasurer", "tok-execom")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != SignInPath {
		t.Errorf("redirect = %q, want %q", loc, SignInPath)
	}
}

func TestRequireRole_InvalidTokenTreatedAsSignedOut(t *testing.T) {
	_, _, r := guardEnv(t)

	w := browserGet(r, "/dashboard/member", "tok-expired")
	if loc := w.Header().Get("Location"); loc != SignInPath {
		t.Errorf("redirect = %q, want %q", loc, SignInPath)
	}
}

func TestRequireRole_APIClientGetsJSON(t *testing.T) {
	_, _, r := guardEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/execom", nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer tok-public")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Errorf("API denial must not redirect, got Location %q", loc)
	}
}

func TestRequireRoute_UnregisteredPrefixDeniesAll(t *testing.T) {
	resolver := newFakeResolver()
	auth := &mapAuthenticator{}
	m := NewGuardMiddleware(auth, resolver, nil, time.Second)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/dashboard/secret", m.RequireRoute("/dashboard/secret"), func(c *gin.Context) {
		c.String(http.StatusOK, "leaked")
	})

	w := browserGet(r, "/dashboard/secret", "")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != UnauthorizedPath {
		t.Errorf("redirect = %q, want %q", loc, UnauthorizedPath)
	}
}

func TestRequireSession_SignedInPassesWithRole(t *testing.T) {
	resolver := newFakeResolver()
	resolver.set("user-public", Resolution{State: ResolutionReady, Role: RolePublic})
	auth := &mapAuthenticator{principals: map[string]*Principal{
		"tok-public": {ID: "user-public", Email: "member@iste.org"},
	}}
	m := NewGuardMiddleware(auth, resolver, nil, time.Second)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", m.RequireSession(), func(c *gin.Context) {
		c.String(http.StatusOK, "%s:%s", c.GetString(ContextKeyUserID), c.GetString(ContextKeyUserRole))
	})

	w := browserGet(r, "/me", "tok-public")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "user-public:public" {
		t.Errorf("body = %q", got)
	}

	w = browserGet(r, "/me", "")
	if loc := w.Header().Get("Location"); loc != SignInPath {
		t.Errorf("anonymous redirect = %q, want %q", loc, SignInPath)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, got, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("bearerToken(%q) expected error", tt.header)
		}
	}
}
