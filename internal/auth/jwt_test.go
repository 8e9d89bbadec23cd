package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ========================================
// Verifier Tests
// ========================================

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", "genmedia")

	token, err := v.Issue("user_1", "a@example.com", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.UserID() != "user_1" {
		t.Errorf("UserID() = %q, want user_1", claims.UserID())
	}
	if claims.Email != "a@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if !claims.IsAdmin() {
		t.Error("IsAdmin() = false, want true")
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("test-secret", "genmedia")
	past := time.Now().Add(-2 * time.Hour)

	expired := &Verifier{secret: []byte("test-secret"), issuer: "genmedia", now: func() time.Time { return past }}
	expiredToken, _ := expired.Issue("user_1", "", "", time.Minute)

	otherKey, _ := NewVerifier("other-secret", "genmedia").Issue("user_1", "", "", time.Hour)
	otherIssuer, _ := NewVerifier("test-secret", "someone-else").Issue("user_1", "", "", time.Hour)
	noSubject, _ := v.Issue("", "", "", time.Hour)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user_1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"expired", expiredToken, ErrTokenExpired},
		{"wrong key", otherKey, ErrInvalidToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"unsigned", none, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"no subject", noSubject, ErrMissingClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClaims_IsAdmin(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"", false},
		{"user", false},
		{"Admin", false},
	}
	for _, tt := range tests {
		c := &Claims{Role: tt.role}
		if got := c.IsAdmin(); got != tt.want {
			t.Errorf("IsAdmin(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
