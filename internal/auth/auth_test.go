package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"paworker/internal/auth"
)

func TestJWTRoundTrip(t *testing.T) {
	j := auth.NewJWT("secret", time.Hour)

	token, err := j.Sign(42)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	id, err := j.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d", id)
	}
}

func TestJWTRejects(t *testing.T) {
	j := auth.NewJWT("secret", time.Hour)
	good, _ := j.Sign(7)

	otherKey, _ := auth.NewJWT("other", time.Hour).Sign(7)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "7"}).SignedString([]byte("secret"))
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	badSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"tampered", good + "x"},
		{"other key", otherKey},
		{"no expiry", noExp},
		{"expired", expired},
		{"non numeric subject", badSub},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := j.Verify(tc.token); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !auth.ComparePassword(hash, "correct horse") {
		t.Fatal("expected match")
	}
	if auth.ComparePassword(hash, "wrong") {
		t.Fatal("expected mismatch")
	}
}

func TestRequireAuth(t *testing.T) {
	j := auth.NewJWT("secret", time.Hour)
	token, _ := j.Sign(9)

	var seen uint64
	h := auth.RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
	if seen != 9 {
		t.Fatalf("user id = %d", seen)
	}
	if auth.Actor(9) != "USER:9" {
		t.Fatalf("actor = %s", auth.Actor(9))
	}
}
