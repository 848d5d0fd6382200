package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// DefaultGoogleJWKSURL is Google's published signing key set for ID tokens.
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	googleKeyRefreshInterval    = 10 * time.Minute
	googleKeyMinRefetchInterval = time.Minute
)

var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

var (
	errEmptyIDToken          = errors.New("id token is empty")
	errNoKeyID               = errors.New("id token header has no kid")
	errKeyNotFound           = errors.New("kid not present in google key set")
	errIssuerNotAllowed      = errors.New("id token issued by an unexpected party")
	errNoSubject             = errors.New("id token has no sub claim")
	errUnverifiedEmail       = errors.New("google account email is not verified")
	errNoAudience            = errors.New("client id (audience) is required")
	errNoJWKSURL             = errors.New("jwks url is required")
	errEmptyIssuerList       = errors.New("allowed issuers list has no usable entries")
	ErrInvalidVerifierConfig = errors.New("auth: invalid google verifier config")
	// ErrInvalidIDToken wraps every verification failure.
	ErrInvalidIDToken = errors.New("auth: invalid id token")
)

// GoogleVerifierConfig configures ID token verification. Audience is the OAuth client id.
type GoogleVerifierConfig struct {
	Audience       string
	JWKSURL        string
	AllowedIssuers []string
	HTTPClient     *http.Client
	CacheTTL       time.Duration
	// MinRefetchInterval bounds how often an unknown kid may refetch a still-fresh key set.
	MinRefetchInterval time.Duration
	Logger             *zap.Logger
	Clock              func() time.Time
}

// GoogleClaims is the verified identity carried by a Google ID token.
type GoogleClaims struct {
	Subject  string
	Email    string
	Name     string
	Picture  string
	Audience string
	Issuer   string
	Expiry   time.Time
}

type googleIDClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier verifies Google ID tokens offline using a cached key set.
type GoogleVerifier struct {
	audience string
	logger   *zap.Logger
	clock    func() time.Time
	keys     *keySet
	issuers  map[string]struct{}
}

// NewGoogleVerifier validates cfg and returns a verifier. The key set is fetched lazily on
// the first Verify call.
func NewGoogleVerifier(cfg GoogleVerifierConfig) (*GoogleVerifier, error) {
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errNoAudience)
	}
	keySetURL := strings.TrimSpace(cfg.JWKSURL)
	if keySetURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errNoJWKSURL)
	}
	issuers, err := issuerSet(cfg.AllowedIssuers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, err)
	}

	verifier := &GoogleVerifier{
		audience: audience,
		issuers:  issuers,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
	}
	if verifier.logger == nil {
		verifier.logger = zap.NewNop()
	}
	if verifier.clock == nil {
		verifier.clock = time.Now
	}
	refresh := cfg.CacheTTL
	if refresh <= 0 {
		refresh = googleKeyRefreshInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	minRefetch := cfg.MinRefetchInterval
	if minRefetch <= 0 {
		minRefetch = googleKeyMinRefetchInterval
	}
	verifier.keys = newKeySet(keySetURL, client, refresh, minRefetch, verifier.logger)
	return verifier, nil
}

func issuerSet(configured []string) (map[string]struct{}, error) {
	if len(configured) == 0 {
		configured = googleIssuers
	}
	issuers := make(map[string]struct{}, len(configured))
	for _, issuer := range configured {
		if trimmed := strings.TrimSpace(issuer); trimmed != "" {
			issuers[trimmed] = struct{}{}
		}
	}
	if len(issuers) == 0 {
		return nil, errEmptyIssuerList
	}
	return issuers, nil
}

// Verify validates the provided ID token and returns the identity it asserts.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (GoogleClaims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return GoogleClaims{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, errEmptyIDToken)
	}

	claims := &googleIDClaims{}
	_, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(token *jwt.Token) (any, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errNoKeyID
			}
			return v.keys.lookup(ctx, kid, v.clock())
		},
		jwt.WithAudience(v.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return GoogleClaims{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	if _, ok := v.issuers[claims.Issuer]; !ok {
		return GoogleClaims{}, fmt.Errorf("%w: %v (%q)", ErrInvalidIDToken, errIssuerNotAllowed, claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return GoogleClaims{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, errNoSubject)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return GoogleClaims{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, errUnverifiedEmail)
	}

	result := GoogleClaims{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Audience: v.audience,
		Issuer:   claims.Issuer,
	}
	if expiry := claims.ExpiresAt; expiry != nil {
		result.Expiry = expiry.Time
	}
	return result, nil
}
