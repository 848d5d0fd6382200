package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionIssuer = "inkwell-api"

var (
	ErrMissingSessionSigningKey = errors.New("session tokens: signing key required")
	ErrMissingSessionToken      = errors.New("session tokens: token required")
	ErrInvalidSessionToken      = errors.New("session tokens: invalid token")
	ErrExpiredSessionToken      = errors.New("session tokens: token expired")
	ErrMissingSessionSubject    = errors.New("session tokens: subject required")
)

// SessionClaims is the payload carried by the session cookie. The sid claim names the
// server-side session record; the subject is the decimal user identifier.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c SessionClaims) UserID() (uint64, error) {
	userID, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, ErrMissingSessionSubject
	}
	return userID, nil
}

// SessionTokenConfig configures HS256 session token signing.
type SessionTokenConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// SessionTokens signs and validates session cookies.
type SessionTokens struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewSessionTokens constructs a codec with the provided configuration.
func NewSessionTokens(cfg SessionTokenConfig) (*SessionTokens, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionTokens{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		clock:         clock,
	}, nil
}

// Issue signs a token bound to the session record and user.
func (s *SessionTokens) Issue(sessionID string, userID uint64, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(sessionID) == "" || userID == 0 {
		return "", ErrMissingSessionSubject
	}
	now := s.clock().UTC()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingSecret)
}

// Parse validates the signature, issuer and expiry of a session token.
func (s *SessionTokens) Parse(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
			}
			return s.signingSecret, nil
		},
		jwt.WithTimeFunc(s.clock),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpiredSessionToken
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.SessionID) == "" {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if _, err := claims.UserID(); err != nil {
		return SessionClaims{}, err
	}
	return *claims, nil
}
