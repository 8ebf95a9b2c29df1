package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestJWT(t *testing.T, now time.Time) *JWTAuthenticator {
	t.Helper()
	a, err := NewJWTAuthenticator(JWTConfig{
		Secret:   testSecret,
		Issuer:   "gallery",
		Audience: "gallery-api",
		Leeway:   time.Second,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}
	return a
}

func TestNewJWTAuthenticatorValidatesSecret(t *testing.T) {
	if _, err := NewJWTAuthenticator(JWTConfig{}); !errors.Is(err, ErrJWTMissingSigningKey) {
		t.Fatalf("expected ErrJWTMissingSigningKey, got %v", err)
	}
	if _, err := NewJWTAuthenticator(JWTConfig{Secret: []byte("short")}); !errors.Is(err, ErrJWTWeakSigningKey) {
		t.Fatalf("expected ErrJWTWeakSigningKey, got %v", err)
	}
	if _, err := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Algorithms: []string{"HS512"}}); !errors.Is(err, ErrJWTWeakSigningKey) {
		t.Fatalf("expected ErrJWTWeakSigningKey for HS512, got %v", err)
	}
	if _, err := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Algorithms: []string{"RS256"}}); !errors.Is(err, ErrJWTUnsupportedAlgo) {
		t.Fatalf("expected ErrJWTUnsupportedAlgo, got %v", err)
	}
}

func TestJWTIssueAndAuthenticate(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := newTestJWT(t, now)

	raw, err := a.Issue(Identity{ID: "user-1", Name: "Ada", Email: "ada@example.com", Roles: []string{RoleConsumer}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	id, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.ID != "user-1" || id.Name != "Ada" || id.Email != "ada@example.com" || !id.HasRole(RoleConsumer) {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestJWTAuthenticateMissingToken(t *testing.T) {
	a := newTestJWT(t, time.Now())
	if _, err := a.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestJWTParseRejections(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := newTestJWT(t, now)
	valid, _ := a.Issue(Identity{ID: "u"}, time.Minute)

	expired, _ := newTestJWT(t, now.Add(-time.Hour)).Issue(Identity{ID: "u"}, time.Minute)

	otherIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u",
		Issuer:    "someone-else",
		Audience:  jwt.ClaimStrings{"gallery-api"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString(testSecret)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "gallery",
		Audience:  jwt.ClaimStrings{"gallery-api"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString(testSecret)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  "u",
		Issuer:   "gallery",
		Audience: jwt.ClaimStrings{"gallery-api"},
	}}).SignedString(testSecret)

	wrongKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u",
		Issuer:    "gallery",
		Audience:  jwt.ClaimStrings{"gallery-api"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString([]byte(strings.Repeat("x", 32)))

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"garbage", "not.a.jwt", ErrJWTInvalid},
		{"expired", expired, ErrJWTInvalid},
		{"issuer mismatch", otherIssuer, ErrJWTInvalid},
		{"missing expiry", noExpiry, ErrJWTInvalid},
		{"wrong key", wrongKey, ErrJWTInvalid},
		{"tampered", tamperSignature(valid), ErrJWTInvalid},
		{"missing subject", noSubject, ErrJWTMissingSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Parse(tt.raw); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := a.Parse(valid); err != nil {
		t.Fatalf("Parse(valid) error = %v", err)
	}
}

func TestJWTIssueRequiresSubject(t *testing.T) {
	if _, err := newTestJWT(t, time.Now()).Issue(Identity{}, time.Minute); !errors.Is(err, ErrJWTMissingSubject) {
		t.Fatalf("expected ErrJWTMissingSubject, got %v", err)
	}
}

func tamperSignature(raw string) string {
	parts := strings.Split(raw, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}
