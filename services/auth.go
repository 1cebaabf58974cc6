package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/iste-sc/portal/authz"
)

// Typed sign-in/sign-up failures, surfaced to the caller as an inline
// message at the form boundary. Never retried automatically.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrRateLimited        = errors.New("too many attempts, try again later")
)

// AuthService drives sign-in, sign-up and sign-out against the Supabase
// auth (GoTrue) REST API. It only brokers credentials; the session tokens
// it returns stay opaque to the rest of the application.
type AuthService struct {
	SupabaseURL string
	AnonKey     string
	HTTPClient  *http.Client
}

func NewAuthService(supabaseURL, anonKey string) *AuthService {
	return &AuthService{
		SupabaseURL: supabaseURL,
		AnonKey:     anonKey,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SignInResult carries the authenticated principal plus its session tokens.
type SignInResult struct {
	Principal    authz.Principal
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

type gotrueTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type gotrueError struct {
	Code             string `json:"error_code"`
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// SignIn exchanges credentials for a session. A wrong password comes back
// as ErrInvalidCredentials; network failures are wrapped and left to the
// caller to surface.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out gotrueTokenResponse
	if err := s.post(ctx, "/auth/v1/token?grant_type=password", "", body, &out); err != nil {
		return nil, err
	}
	log.Printf("AUTH sign-in for %s", out.User.ID)
	return &SignInResult{
		Principal:    authz.Principal{ID: out.User.ID, Email: out.User.Email, Token: out.AccessToken},
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}

// SignUp registers a new account. The full name rides along in the user
// metadata so the profile sync can pick it up on first authentication.
func (s *AuthService) SignUp(ctx context.Context, email, password, fullName string) (*SignInResult, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var out gotrueTokenResponse
	if err := s.post(ctx, "/auth/v1/signup", "", body, &out); err != nil {
		return nil, err
	}
	log.Printf("AUTH sign-up for %s", out.User.ID)
	return &SignInResult{
		Principal:    authz.Principal{ID: out.User.ID, Email: out.User.Email, Token: out.AccessToken},
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}

// SignOut revokes the session behind the given access token. After this
// returns the token no longer authenticates and every guard re-evaluating
// the session denies it.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	return s.post(ctx, "/auth/v1/logout", accessToken, struct{}{}, nil)
}

func (s *AuthService) post(ctx context.Context, path, bearer string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.SupabaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.AnonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+s.AnonKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("auth response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return s.mapError(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("auth response: %w", err)
		}
	}
	return nil
}

// mapError folds GoTrue error payloads into the typed failures the forms
// know how to surface.
func (s *AuthService) mapError(status int, raw []byte) error {
	var ge gotrueError
	_ = json.Unmarshal(raw, &ge)

	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case ge.Code == "invalid_credentials", status == http.StatusBadRequest && ge.text() == "Invalid login credentials":
		return ErrInvalidCredentials
	case ge.Code == "user_already_exists", ge.Code == "email_exists":
		return ErrEmailTaken
	case ge.Code == "weak_password":
		return ErrWeakPassword
	case status == http.StatusUnprocessableEntity:
		return fmt.Errorf("signup rejected: %s", ge.text())
	}
	if msg := ge.text(); msg != "" {
		return fmt.Errorf("auth provider: %s", msg)
	}
	return fmt.Errorf("auth provider returned status %d", status)
}
