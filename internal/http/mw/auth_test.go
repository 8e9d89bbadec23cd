package mw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/genmedia-api/internal/auth"
)

const testSecret = "mw-test-secret"

type recordingUsers struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (u *recordingUsers) EnsureUser(_ context.Context, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seen = append(u.seen, userID)
	return u.err
}

func issue(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.NewVerifier(testSecret, "").Issue(userID, userID+"@example.com", role, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

type whoamiOutput struct {
	Body struct {
		UserID string `json:"user_id"`
		Admin  bool   `json:"admin"`
	}
}

func whoami(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
	out := &whoamiOutput{}
	if c := GetUserClaims(ctx); c != nil {
		out.Body.UserID = c.UserID
		out.Body.Admin = c.Admin
	}
	return out, nil
}

func newTestAPI(users UserProvisioner) http.Handler {
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("test", "1.0.0"))
	api.UseMiddleware(HumaAuth(api, HumaAuthConfig{
		Verifier: auth.NewVerifier(testSecret, ""),
		Users:    users,
	}))

	PublicGet(api, "/public", whoami)
	ProtectedGet(api, "/me", whoami)
	ProtectedGet(api, "/admin", whoami, WithAdmin())
	return router
}

// ========================================
// HumaAuth Tests
// ========================================

func TestHumaAuth(t *testing.T) {
	users := &recordingUsers{}
	handler := newTestAPI(users)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"public without token", "/public", "", http.StatusOK},
		{"protected without token", "/me", "", http.StatusUnauthorized},
		{"protected with garbage", "/me", "Bearer nope", http.StatusUnauthorized},
		{"protected with token", "/me", "Bearer " + issue(t, "user_1", ""), http.StatusOK},
		{"raw token accepted", "/me", issue(t, "user_1", ""), http.StatusOK},
		{"admin route as user", "/admin", "Bearer " + issue(t, "user_1", ""), http.StatusForbidden},
		{"admin route as admin", "/admin", "Bearer " + issue(t, "root", auth.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	// Only successful protected requests provision accounts.
	if len(users.seen) != 3 {
		t.Errorf("EnsureUser calls = %v, want 3", users.seen)
	}
}

func TestHumaAuth_ProvisioningFailure(t *testing.T) {
	handler := newTestAPI(&recordingUsers{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, "user_1", ""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"abc":          "abc",
		"":             "",
	}
	for in, want := range tests {
		if got := bearerToken(in); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
