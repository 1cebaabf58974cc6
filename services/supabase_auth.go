package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iste-sc/portal/authz"
)

// SupabaseAuthService validates Supabase-issued JWTs and maps their claims
// to a principal. ES256/RS256 tokens are verified against the project's
// JWKS; HS256 verification against the legacy shared secret is kept as a
// fallback for older projects.
type SupabaseAuthService struct {
	SupabaseURL string
	JWTSecret   string // legacy HS256 only
	HTTPClient  *http.Client

	keysMu       sync.RWMutex
	rsaKeys      map[string]*rsa.PublicKey
	ecdsaKeys    map[string]*ecdsa.PublicKey
	lastKeyFetch time.Time
}

// PrincipalClaims is the claim set Supabase puts in access tokens.
type PrincipalClaims struct {
	Email    string                 `json:"email"`
	UserMeta map[string]interface{} `json:"user_metadata"`
	AppMeta  map[string]interface{} `json:"app_metadata"`
	jwt.RegisteredClaims
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
	// EC
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// Supabase edge-caches JWKS for 10 minutes; no point refetching sooner.
const jwksCacheTTL = 10 * time.Minute

func NewSupabaseAuthService(supabaseURL, jwtSecret string) *SupabaseAuthService {
	return &SupabaseAuthService{
		SupabaseURL: supabaseURL,
		JWTSecret:   jwtSecret,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		rsaKeys:     make(map[string]*rsa.PublicKey),
		ecdsaKeys:   make(map[string]*ecdsa.PublicKey),
	}
}

var _ authz.Authenticator = (*SupabaseAuthService)(nil)

// Authenticate verifies an access token and returns the principal it names.
// Verification failures come back wrapped in authz.ErrTokenInvalid so the
// route guard can tell a bad token from a provider outage.
func (s *SupabaseAuthService) Authenticate(ctx context.Context, token string) (*authz.Principal, error) {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &authz.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Token: token,
	}, nil
}

// ValidateToken parses and verifies a Supabase JWT.
func (s *SupabaseAuthService) ValidateToken(ctx context.Context, tokenString string) (*PrincipalClaims, error) {
	// Parse unverified first to pick the key and method from the header.
	unverified, _, err := new(jwt.Parser).ParseUnverified(tokenString, &PrincipalClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authz.ErrTokenInvalid, err)
	}

	alg, _ := unverified.Header["alg"].(string)
	kid, _ := unverified.Header["kid"].(string)

	var keyfunc jwt.Keyfunc
	switch alg {
	case "HS256":
		if s.JWTSecret == "" {
			return nil, fmt.Errorf("%w: HS256 token but no legacy secret configured", authz.ErrTokenInvalid)
		}
		keyfunc = func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.JWTSecret), nil
		}
	case "ES256":
		key, err := s.ecdsaKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		keyfunc = func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		}
	case "RS256":
		key, err := s.rsaKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		keyfunc = func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		}
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", authz.ErrTokenInvalid, alg)
	}

	token, err := jwt.ParseWithClaims(tokenString, &PrincipalClaims{}, keyfunc,
		jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{alg}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authz.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*PrincipalClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", authz.ErrTokenInvalid)
	}
	return claims, nil
}

// FullName pulls the display name out of the metadata claims, falling back
// through the fields the various OAuth providers populate.
func (c *PrincipalClaims) FullName() string {
	for _, meta := range []map[string]interface{}{c.UserMeta, c.AppMeta} {
		if meta == nil {
			continue
		}
		for _, key := range []string{"full_name", "name", "user_name"} {
			if v, ok := meta[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// AvatarURL pulls the avatar out of the user metadata, if the provider set one.
func (c *PrincipalClaims) AvatarURL() string {
	if c.UserMeta == nil {
		return ""
	}
	v, _ := c.UserMeta["avatar_url"].(string)
	return v
}

func (s *SupabaseAuthService) fetchJWKS(ctx context.Context) (*jwksResponse, error) {
	url := fmt.Sprintf("%s/auth/v1/.well-known/jwks.json", s.SupabaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read JWKS response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("parse JWKS: %w", err)
	}
	return &jwks, nil
}

func (s *SupabaseAuthService) ecdsaKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	s.keysMu.RLock()
	key, exists := s.ecdsaKeys[kid]
	fresh := time.Since(s.lastKeyFetch) < jwksCacheTTL
	s.keysMu.RUnlock()
	if exists && fresh {
		return key, nil
	}

	jwks, err := s.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range jwks.Keys {
		if k.Kid != kid || k.Kty != "EC" {
			continue
		}
		pub, err := parseECDSAKey(k.Crv, k.X, k.Y)
		if err != nil {
			return nil, fmt.Errorf("parse ECDSA key %s: %w", kid, err)
		}
		s.keysMu.Lock()
		s.ecdsaKeys[kid] = pub
		s.lastKeyFetch = time.Now()
		s.keysMu.Unlock()
		return pub, nil
	}
	return nil, fmt.Errorf("%w: no ECDSA key %q in JWKS", authz.ErrTokenInvalid, kid)
}

func (s *SupabaseAuthService) rsaKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.keysMu.RLock()
	key, exists := s.rsaKeys[kid]
	fresh := time.Since(s.lastKeyFetch) < jwksCacheTTL
	s.keysMu.RUnlock()
	if exists && fresh {
		return key, nil
	}

	jwks, err := s.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range jwks.Keys {
		if k.Kid != kid || k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("parse RSA key %s: %w", kid, err)
		}
		s.keysMu.Lock()
		s.rsaKeys[kid] = pub
		s.lastKeyFetch = time.Now()
		s.keysMu.Unlock()
		return pub, nil
	}
	return nil, fmt.Errorf("%w: no RSA key %q in JWKS", authz.ErrTokenInvalid, kid)
}

func parseECDSAKey(crv, xStr, yStr string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xStr)
	if err != nil {
		return nil, fmt.Errorf("decode X coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yStr)
	if err != nil {
		return nil, fmt.Errorf("decode Y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func parseRSAKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
