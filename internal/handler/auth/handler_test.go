package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/config"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	authService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/auth"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := authService.NewService(logger.NewNop(), config.AuthConfig{
		Username:        "admin",
		Password:        "S3cret!pass",
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		TokenTTL:        time.Hour,
		MaxAttempts:     2,
		LockoutDuration: time.Minute,
	}, authService.NewMemorySessionStore())
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Route("/api", New(logger.NewNop(), svc).RegisterRoutes)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return doFrom(t, h, method, path, body, token, "")
}

func doFrom(t *testing.T, h http.Handler, method, path, body, token, forwardedFor string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %q", rec.Body.String())
	}
	return rec, env
}

func TestLoginMeLogout(t *testing.T) {
	router := newRouter(t)

	rec, env := do(t, router, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"S3cret!pass"}`, "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var tok authService.Token
	if err := json.Unmarshal(env.Data, &tok); err != nil || tok.Token == "" {
		t.Fatalf("missing token in %s", env.Data)
	}

	rec, env = do(t, router, http.MethodGet, "/api/auth/me", "", tok.Token)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"admin"`) {
		t.Fatalf("me failed: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, router, http.MethodPost, "/api/auth/logout", "", tok.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", rec.Code)
	}

	rec, env = do(t, router, http.MethodGet, "/api/auth/me", "", tok.Token)
	if rec.Code != http.StatusUnauthorized || env.Success {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentialsThenLocks(t *testing.T) {
	router := newRouter(t)
	bad := `{"username":"admin","password":"nope"}`

	for i := 0; i < 2; i++ {
		rec, env := do(t, router, http.MethodPost, "/api/auth/login", bad, "")
		if rec.Code != http.StatusUnauthorized || env.Error == "" {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}

	rec, _ := do(t, router, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"S3cret!pass"}`, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while locked, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestLoginValidatesBody(t *testing.T) {
	router := newRouter(t)
	for _, body := range []string{`{`, `{"username":"admin"}`} {
		rec, _ := do(t, router, http.MethodPost, "/api/auth/login", body, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestLogoutWithoutToken(t *testing.T) {
	rec, _ := do(t, newRouter(t), http.MethodPost, "/api/auth/logout", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLockoutIgnoresForwardedFor(t *testing.T) {
	router := newRouter(t)
	bad := `{"username":"admin","password":"nope"}`

	var codes []int
	for i := 0; i < 5; i++ {
		rec, _ := doFrom(t, router, http.MethodPost, "/api/auth/login", bad, "", fmt.Sprintf("203.0.113.%d", i+1))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized {
		t.Fatalf("expected the first attempts to be rejected, got %v", codes)
	}
	for _, code := range codes[2:] {
		if code != http.StatusTooManyRequests {
			t.Fatalf("expected lockout despite rotating addresses, got %v", codes)
		}
	}
}
