package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrSessionNotFound indicates that the session record does not exist or was revoked.
var ErrSessionNotFound = errors.New("auth: session not found")

// Session is the server-side record a session cookie refers to.
type Session struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	UserID    uint64    `gorm:"column:user_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "sessions"
}

// SessionStore persists session records.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemorySessionStore constructs an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// GormSessionStore persists sessions through gorm.
type GormSessionStore struct {
	db *gorm.DB
}

// NewGormSessionStore wraps an already migrated database handle.
func NewGormSessionStore(db *gorm.DB) (*GormSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("auth: database connection required")
	}
	return &GormSessionStore{db: db}, nil
}

func (s *GormSessionStore) Save(ctx context.Context, session Session) error {
	return s.db.WithContext(ctx).Create(&session).Error
}

func (s *GormSessionStore) Get(ctx context.Context, id string) (Session, error) {
	var session Session
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

func (s *GormSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&Session{}).Error
}

func (s *GormSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&Session{})
	return result.RowsAffected, result.Error
}
