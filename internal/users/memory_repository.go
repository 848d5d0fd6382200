package users

import (
	"context"
	"sync"
)

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	users  map[uint64]User
	nextID uint64
}

// NewMemoryRepository constructs an empty in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:  make(map[uint64]User),
		nextID: 1,
	}
}

func (r *MemoryRepository) Get(_ context.Context, id uint64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryRepository) ByEmail(_ context.Context, email string) (User, error) {
	return r.find(func(user User) bool { return user.Email == email })
}

func (r *MemoryRepository) ByExternalID(_ context.Context, googleID string) (User, error) {
	return r.find(func(user User) bool { return user.GoogleID == googleID })
}

func (r *MemoryRepository) Create(_ context.Context, profile Profile) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.GoogleID == profile.GoogleID || existing.Email == profile.Email {
			return User{}, ErrDuplicateIdentity
		}
	}
	user := User{
		ID:       r.nextID,
		Email:    profile.Email,
		Name:     profile.Name,
		Picture:  profile.Picture,
		GoogleID: profile.GoogleID,
	}
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepository) UpdateCredentials(_ context.Context, id uint64, credentials Credentials) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	user.AccessToken = optional(credentials.AccessToken)
	if refresh := optional(credentials.RefreshToken); refresh != nil {
		user.RefreshToken = refresh
	}
	r.users[id] = user
	return user, nil
}

func (r *MemoryRepository) find(match func(User) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}
