package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSessionTTL = 24 * time.Hour

// IssuedSession is returned to the transport layer so it can set the cookie.
type IssuedSession struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// SessionManagerConfig describes the dependencies of a SessionManager.
type SessionManagerConfig struct {
	Store  SessionStore
	Tokens *SessionTokens
	TTL    time.Duration
	Clock  func() time.Time
	Logger *zap.Logger
}

// SessionManager binds signed cookies to revocable server-side session records.
type SessionManager struct {
	store  SessionStore
	tokens *SessionTokens
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// NewSessionManager validates its dependencies and returns a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("auth: session store required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("auth: session tokens required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:  cfg.Store,
		tokens: cfg.Tokens,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}, nil
}

// TTL reports the lifetime of newly started sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Start records a new session for the user and returns its signed token.
func (m *SessionManager) Start(ctx context.Context, userID uint64) (IssuedSession, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return IssuedSession{}, fmt.Errorf("auth: session id: %w", err)
	}
	now := m.clock().UTC().Truncate(time.Second)
	session := Session{
		ID:        id.String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return IssuedSession{}, fmt.Errorf("auth: save session: %w", err)
	}
	token, err := m.tokens.Issue(session.ID, userID, session.ExpiresAt)
	if err != nil {
		_ = m.store.Delete(ctx, session.ID)
		return IssuedSession{}, err
	}
	if removed, pruneErr := m.store.DeleteExpired(ctx, now); pruneErr != nil {
		m.logger.Warn("failed to prune expired sessions", zap.Error(pruneErr))
	} else if removed > 0 {
		m.logger.Debug("pruned expired sessions", zap.Int64("count", removed))
	}
	return IssuedSession{ID: session.ID, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Resolve validates the token and confirms its session record is still active.
func (m *SessionManager) Resolve(ctx context.Context, token string) (uint64, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return 0, err
	}
	session, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return 0, err
	}
	if !m.clock().Before(session.ExpiresAt) {
		_ = m.store.Delete(ctx, session.ID)
		return 0, ErrExpiredSessionToken
	}
	userID, _ := claims.UserID()
	if session.UserID != userID {
		return 0, ErrInvalidSessionToken
	}
	return session.UserID, nil
}

// End revokes the session named by the token. Unknown or already revoked sessions are not
// an error; a token that fails signature validation is.
func (m *SessionManager) End(ctx context.Context, token string) error {
	claims, err := m.tokens.Parse(token)
	if errors.Is(err, ErrExpiredSessionToken) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, claims.SessionID)
}
