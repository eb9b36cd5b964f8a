package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matiasleandrokruk/procstatus/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/procstatus/internal/api/middleware"
	pkgauth "github.com/matiasleandrokruk/procstatus/pkg/auth"
)

const testSecret = "test-secret-key-32-chars-min!!!"

// TestMain sets JWT_SECRET before any test runs.
func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", testSecret) //nolint:errcheck
	os.Exit(m.Run())
}

// nextHandler returns an http.Handler that sets called=true and records the context.
func nextHandler(called *bool, capturedCtx *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if capturedCtx != nil {
			*capturedCtx = r.Context()
		}
		w.WriteHeader(http.StatusOK)
	})
}

// makeRequest creates a GET request with an optional Authorization header.
func makeRequest(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/record-states", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	t.Parallel()

	valid, err := pkgauth.GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT error = %v", err)
	}
	expired := signToken(t, "user-1", time.Now().Add(-time.Second))

	tests := map[string]string{
		"no header":     "",
		"empty bearer":  "Bearer ",
		"wrong scheme":  "Basic dXNlcjpwYXNz",
		"garbage token": "Bearer not.a.real.jwt",
		"tampered":      "Bearer " + valid[:len(valid)-10] + "TAMPERED!!",
		"expired":       "Bearer " + expired,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			called := false
			handler := middleware.AuthMiddleware(nextHandler(&called, nil))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, makeRequest(header))

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
			}
			if got := rr.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q; want application/json", got)
			}
			if called {
				t.Error("next handler should NOT be called")
			}
		})
	}
}

func TestAuthMiddleware_InjectsUserIDInContext(t *testing.T) {
	t.Parallel()

	token, err := pkgauth.GenerateJWT("user-abc-123")
	if err != nil {
		t.Fatalf("GenerateJWT error = %v", err)
	}

	var capturedCtx context.Context
	called := false
	handler := middleware.AuthMiddleware(nextHandler(&called, &capturedCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeRequest("Bearer "+token))

	if rr.Code != http.StatusOK || !called {
		t.Fatalf("status = %d, called = %v; want 200 and called", rr.Code, called)
	}
	if got, _ := capturedCtx.Value(ctxkeys.UserID).(string); got != "user-abc-123" {
		t.Errorf("context UserID = %q; want %q", got, "user-abc-123")
	}
}

func signToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()

	claims := &pkgauth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-2 * time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	return signed
}
