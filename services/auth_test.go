package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fakeGoTrue stands in for the Supabase auth REST API.
func fakeGoTrue(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		readJSON(r, &body)
		if body.Password != "correct-horse" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok-abc","refresh_token":"ref-abc","expires_in":3600,
			"user":{"id":"user-1","email":"` + body.Email + `"}}`))
	})
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		readJSON(r, &body)
		if len(body.Password) < 8 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error_code":"weak_password","msg":"Password should be at least 8 characters"}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok-new","refresh_token":"ref-new","expires_in":3600,
			"user":{"id":"user-2","email":"new@college.edu"}}`))
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return httptest.NewServer(mux)
}

func readJSON(r *http.Request, out interface{}) {
	_ = json.NewDecoder(r.Body).Decode(out)
}

func TestAuthService_SignIn(t *testing.T) {
	srv := fakeGoTrue(t)
	defer srv.Close()

	svc := NewAuthService(srv.URL, "anon-key")
	res, err := svc.SignIn(context.Background(), "alice@college.edu", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if res.AccessToken != "tok-abc" {
		t.Errorf("AccessToken = %q", res.AccessToken)
	}
	if res.Principal.ID != "user-1" {
		t.Errorf("Principal.ID = %q", res.Principal.ID)
	}
}

func TestAuthService_SignInWrongPassword(t *testing.T) {
	srv := fakeGoTrue(t)
	defer srv.Close()

	svc := NewAuthService(srv.URL, "anon-key")
	_, err := svc.SignIn(context.Background(), "alice@college.edu", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_SignUpWeakPassword(t *testing.T) {
	srv := fakeGoTrue(t)
	defer srv.Close()

	svc := NewAuthService(srv.URL, "anon-key")
	_, err := svc.SignUp(context.Background(), "new@college.edu", "short", "New Member")
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("Expected ErrWeakPassword, got %v", err)
	}
}

func TestSupabaseAuthService_HS256(t *testing.T) {
	const secret = "legacy-shared-secret"
	svc := NewSupabaseAuthService("https://example.supabase.co", secret)

	makeToken := func(mutate func(jwt.MapClaims)) string {
		claims := jwt.MapClaims{
			"sub":   "user-1",
			"email": "alice@college.edu",
			"exp":   time.Now().Add(time.Hour).Unix(),
		}
		if mutate != nil {
			mutate(claims)
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := tok.SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("Failed to sign token: %v", err)
		}
		return signed
	}

	principal, err := svc.Authenticate(context.Background(), makeToken(nil))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if principal.ID != "user-1" || principal.Email != "alice@college.edu" {
		t.Errorf("Principal = %+v", principal)
	}

	expired := makeToken(func(c jwt.MapClaims) {
		c["exp"] = time.Now().Add(-time.Hour).Unix()
	})
	if _, err := svc.Authenticate(context.Background(), expired); err == nil {
		t.Error("Expected error for expired token")
	}

	forged := makeToken(nil) + "x"
	if _, err := svc.Authenticate(context.Background(), forged); err == nil {
		t.Error("Expected error for tampered token")
	}
}
