package auth

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestMain sets JWT_SECRET before any test runs; t.Setenv is not available
// to parallel tests.
func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-key-32-chars-min!!!") //nolint:errcheck
	os.Exit(m.Run())
}

func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	token, err := GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	if parts := strings.Count(token, ".") + 1; parts != 3 {
		t.Errorf("JWT should have 3 parts, got %d", parts)
	}
}

func TestGenerateJWT_EmptyUser(t *testing.T) {
	t.Parallel()

	if _, err := GenerateJWT(""); err == nil {
		t.Error("GenerateJWT should reject an empty user id")
	}
}

func TestParseJWT_ValidToken(t *testing.T) {
	t.Parallel()

	token, _ := GenerateJWT("user-1")
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT failed for valid token: %v", err)
	}
	if claims.UserID != "user-1" || claims.Subject != "user-1" {
		t.Errorf("claims = %+v; want user-1", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		t.Error("JWT ExpiresAt should be set in the future")
	}
	if claims.IssuedAt == nil {
		t.Error("JWT missing IssuedAt claim")
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty":     "",
		"malformed": "not-a-jwt",
		"garbage":   "invalid.token.here",
	}
	for name, token := range tests {
		if _, err := ParseJWT(token); err == nil {
			t.Errorf("ParseJWT(%s) should return error", name)
		}
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	t.Parallel()

	claims := &Claims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token); err == nil {
		t.Error("ParseJWT should reject a token signed with another secret")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	t.Parallel()

	claims := &Claims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("ParseJWT(expired) error = %v; want ErrTokenExpired", err)
	}
}

func TestParseJWTExpiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", DefaultJWTExpiry * time.Hour},
		{"48", 48 * time.Hour},
		{"not-a-number", DefaultJWTExpiry * time.Hour},
		{"0", 0},
		{"1", time.Hour},
	}
	for _, tt := range tests {
		if got := parseJWTExpiry(tt.in); got != tt.want {
			t.Errorf("parseJWTExpiry(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

// Not parallel: mutates JWT_EXPIRY.
func TestJWT_CustomExpiry(t *testing.T) {
	t.Setenv("JWT_EXPIRY", "2")

	before := time.Now()
	token, err := GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT failed: %v", err)
	}
	diff := claims.ExpiresAt.Time.Sub(before.Add(2 * time.Hour)).Abs()
	if diff > 5*time.Second {
		t.Errorf("Expected expiry ~2h from now, diff is %v", diff)
	}
}

// Not parallel: clears JWT_SECRET.
func TestCheckSecret_Missing(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if err := CheckSecret(); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("CheckSecret() error = %v; want ErrMissingSecret", err)
	}
	if _, err := GenerateJWT("user-1"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("GenerateJWT() error = %v; want ErrMissingSecret", err)
	}
}
