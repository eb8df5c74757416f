package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fernhollow/sprout/internal/store"
	"github.com/fernhollow/sprout/internal/token"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *store.UserStore, *token.Service) {
	t.Helper()
	db := openHandlerTestDB(t)
	users := store.NewUserStore(db)
	tokens := token.NewService("auth-test-secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(users, tokens, logger), users, tokens
}

func postJSON(url string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	return httptest.NewRequest("POST", url, bytes.NewReader(body))
}

func TestSignup(t *testing.T) {
	h, _, tokens := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Signup(rec, postJSON("/auth/signup", map[string]string{
		"email": "  Alice@Example.COM ", "password": "secret-pass", "name": "Alice",
	}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)

	sessionTok, _ := body["token"].(string)
	claims, err := tokens.VerifySession(sessionTok)
	if err != nil {
		t.Fatalf("verify issued session: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("session email = %q, want normalized alice@example.com", claims.Email)
	}

	user := body["user"].(map[string]any)
	if user["email"] != "alice@example.com" {
		t.Errorf("user email = %v", user["email"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash must not appear in responses")
	}
}

func TestSignupValidation(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	cases := []map[string]string{
		{"email": "", "password": "secret-pass"},
		{"email": "not-an-email", "password": "secret-pass"},
		{"email": "a@x.com", "password": "short"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.Signup(rec, postJSON("/auth/signup", c))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %v: status = %d, want %d", c, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	payload := map[string]string{"email": "alice@x.com", "password": "secret-pass"}
	rec := httptest.NewRecorder()
	h.Signup(rec, postJSON("/auth/signup", payload))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first signup: status = %d", rec.Code)
	}

	// Same address in a different case is the same account.
	rec = httptest.NewRecorder()
	h.Signup(rec, postJSON("/auth/signup", map[string]string{"email": "ALICE@x.com", "password": "secret-pass"}))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup: status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestLogin(t *testing.T) {
	h, users, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Signup(rec, postJSON("/auth/signup", map[string]string{
		"email": "alice@x.com", "password": "secret-pass", "name": "Alice",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, postJSON("/auth/login", map[string]string{
		"email": "alice@x.com", "password": "secret-pass",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if tok, _ := body["token"].(string); tok == "" {
		t.Error("expected a session token")
	}

	u, err := users.GetByEmail("alice@x.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.LastLoginAt == nil {
		t.Error("expected last_login_at set after login")
	}
}

func TestLoginGenericFailure(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Signup(rec, postJSON("/auth/signup", map[string]string{
		"email": "alice@x.com", "password": "secret-pass",
	}))

	// Wrong password and unknown email must be indistinguishable.
	for _, payload := range []map[string]string{
		{"email": "alice@x.com", "password": "wrong-pass"},
		{"email": "nobody@x.com", "password": "secret-pass"},
	} {
		rec := httptest.NewRecorder()
		h.Login(rec, postJSON("/auth/login", payload))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("payload %v: status = %d, want %d", payload, rec.Code, http.StatusUnauthorized)
		}
		body := decodeBody(t, rec)
		if body["message"] != "invalid email or password" {
			t.Errorf("message = %v, want the generic failure message", body["message"])
		}
	}
}

func TestMe(t *testing.T) {
	h, users, _ := setupAuthHandler(t)

	u, err := users.Create("alice@x.com", "hash", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	req := authedRequest("GET", "/auth/me", nil, u)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["email"] != "alice@x.com" {
		t.Errorf("email = %v", body["email"])
	}
}
