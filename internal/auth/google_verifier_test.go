package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwksFixture struct {
	server   *httptest.Server
	keys     map[string]*rsa.PrivateKey
	requests atomic.Int32
}

func newJWKSFixture(t *testing.T, keyIDs ...string) *jwksFixture {
	t.Helper()
	fixture := &jwksFixture{keys: make(map[string]*rsa.PrivateKey)}
	for _, keyID := range keyIDs {
		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("failed to generate key: %v", err)
		}
		fixture.keys[keyID] = privateKey
	}
	fixture.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fixture.requests.Add(1)
		if r.URL.Path != "/oauth2/v3/certs" {
			http.NotFound(w, r)
			return
		}
		keys := make([]any, 0, len(fixture.keys))
		for keyID, privateKey := range fixture.keys {
			keys = append(keys, map[string]string{
				"kty": "RSA",
				"alg": "RS256",
				"kid": keyID,
				"use": "sig",
				"n":   encodeBigInt(privateKey.PublicKey.N),
				"e":   encodeBigInt(privateKey.PublicKey.E),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *jwksFixture) url() string {
	return f.server.URL + "/oauth2/v3/certs"
}

func (f *jwksFixture) sign(t *testing.T, keyID string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	signed, err := token.SignedString(f.keys[keyID])
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func googleClaims(now time.Time, audience string) jwt.MapClaims {
	return jwt.MapClaims{
		"aud":            audience,
		"iss":            "https://accounts.google.com",
		"sub":            "g1",
		"email":          "a@x.com",
		"email_verified": true,
		"name":           "Ada",
		"picture":        "https://example.com/ada.png",
		"exp":            now.Add(5 * time.Minute).Unix(),
		"iat":            now.Unix(),
	}
}

func newTestVerifier(t *testing.T, fixture *jwksFixture) *GoogleVerifier {
	t.Helper()
	return newClockedTestVerifier(t, fixture, nil)
}

func newClockedTestVerifier(t *testing.T, fixture *jwksFixture, clock func() time.Time) *GoogleVerifier {
	t.Helper()
	verifier, err := NewGoogleVerifier(GoogleVerifierConfig{
		Audience:   "test-client",
		JWKSURL:    fixture.url(),
		HTTPClient: fixture.server.Client(),
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return verifier
}

func TestGoogleVerifierValidatesTokenUsingJWKS(t *testing.T) {
	fixture := newJWKSFixture(t, "test-key")
	verifier := newTestVerifier(t, fixture)

	signed := fixture.sign(t, "test-key", googleClaims(time.Now().UTC(), "test-client"))
	verified, err := verifier.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}
	if verified.Subject != "g1" || verified.Email != "a@x.com" || verified.Name != "Ada" {
		t.Fatalf("unexpected claims %#v", verified)
	}
	if verified.Picture != "https://example.com/ada.png" || verified.Audience != "test-client" {
		t.Fatalf("unexpected claims %#v", verified)
	}

	if _, err := verifier.Verify(context.Background(), signed); err != nil {
		t.Fatalf("second verification failed: %v", err)
	}
	if fixture.requests.Load() != 1 {
		t.Fatalf("expected keys to be cached, got %d fetches", fixture.requests.Load())
	}
}

func TestGoogleVerifierRejectsInvalidTokens(t *testing.T) {
	fixture := newJWKSFixture(t, "test-key")
	verifier := newTestVerifier(t, fixture)
	now := time.Now().UTC()

	wrongAudience := googleClaims(now, "unexpected-client")
	wrongIssuer := googleClaims(now, "test-client")
	wrongIssuer["iss"] = "https://evil.example.com"
	unverified := googleClaims(now, "test-client")
	unverified["email_verified"] = false
	expired := googleClaims(now, "test-client")
	expired["exp"] = now.Add(-time.Minute).Unix()

	testCases := map[string]string{
		"empty":      "",
		"audience":   fixture.sign(t, "test-key", wrongAudience),
		"issuer":     fixture.sign(t, "test-key", wrongIssuer),
		"unverified": fixture.sign(t, "test-key", unverified),
		"expired":    fixture.sign(t, "test-key", expired),
		"malformed":  "not.a.token",
	}
	for name, token := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrInvalidIDToken) {
				t.Fatalf("expected ErrInvalidIDToken, got %v", err)
			}
		})
	}
}

func TestGoogleVerifierRefreshesOnUnknownKey(t *testing.T) {
	fixture := newJWKSFixture(t, "first")
	now := time.Now().UTC()
	verifier := newClockedTestVerifier(t, fixture, func() time.Time { return now })

	if _, err := verifier.Verify(context.Background(), fixture.sign(t, "first", googleClaims(now, "test-client"))); err != nil {
		t.Fatalf("verification failed: %v", err)
	}

	rotated, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	fixture.keys["second"] = rotated
	now = now.Add(2 * time.Minute)

	if _, err := verifier.Verify(context.Background(), fixture.sign(t, "second", googleClaims(now, "test-client"))); err != nil {
		t.Fatalf("verification with rotated key failed: %v", err)
	}
	if fixture.requests.Load() != 2 {
		t.Fatalf("expected a refresh for the unknown key, got %d fetches", fixture.requests.Load())
	}
}

func TestGoogleVerifierThrottlesUnknownKeyRefetch(t *testing.T) {
	fixture := newJWKSFixture(t, "known")
	now := time.Now().UTC()
	verifier := newClockedTestVerifier(t, fixture, func() time.Time { return now })

	if _, err := verifier.Verify(context.Background(), fixture.sign(t, "known", googleClaims(now, "test-client"))); err != nil {
		t.Fatalf("verification failed: %v", err)
	}

	unknown, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, googleClaims(now, "test-client"))
	token.Header["kid"] = "unknown"
	forged, err := token.SignedString(unknown)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		if _, err := verifier.Verify(context.Background(), forged); !errors.Is(err, ErrInvalidIDToken) {
			t.Fatalf("expected invalid token, got %v", err)
		}
	}
	if fixture.requests.Load() != 1 {
		t.Fatalf("unknown kids within the interval must not refetch, got %d fetches", fixture.requests.Load())
	}

	now = now.Add(time.Minute)
	if _, err := verifier.Verify(context.Background(), forged); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if fixture.requests.Load() != 2 {
		t.Fatalf("expected one refetch once the interval elapsed, got %d fetches", fixture.requests.Load())
	}
}

func TestNewGoogleVerifierRequiresAudienceAndJWKS(t *testing.T) {
	_, err := NewGoogleVerifier(GoogleVerifierConfig{
		Audience: "",
		JWKSURL:  "https://example.com/jwks",
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
	if !strings.Contains(err.Error(), errNoAudience.Error()) {
		t.Fatalf("expected audience validation error to be reported, got %v", err)
	}

	_, err = NewGoogleVerifier(GoogleVerifierConfig{
		Audience: "test-client",
		JWKSURL:  " ",
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
	if !strings.Contains(err.Error(), errNoJWKSURL.Error()) {
		t.Fatalf("expected jwks validation error to be reported, got %v", err)
	}
}

func TestNewGoogleVerifierRejectsEmptyIssuerList(t *testing.T) {
	_, err := NewGoogleVerifier(GoogleVerifierConfig{
		Audience:       "test-client",
		JWKSURL:        "https://example.com/jwks",
		AllowedIssuers: []string{"", "   "},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
	if !strings.Contains(err.Error(), errEmptyIssuerList.Error()) {
		t.Fatalf("expected allowed issuers validation error to be reported, got %v", err)
	}
}

func encodeBigInt(value interface{}) string {
	switch v := value.(type) {
	case *big.Int:
		return base64.RawURLEncoding.EncodeToString(v.Bytes())
	case int:
		return base64.RawURLEncoding.EncodeToString(big.NewInt(int64(v)).Bytes())
	default:
		return ""
	}
}
