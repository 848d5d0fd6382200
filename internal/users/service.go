package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Identity is the external identity assertion presented at sign-in.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
	PictureURL  string
}

// SignInResult reports the resolved user and whether it was created by this sign-in.
type SignInResult struct {
	User    User
	Created bool
}

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Repository Repository
	Logger     *zap.Logger
}

// Service resolves external identities to canonical users.
type Service struct {
	repository Repository
	logger     *zap.Logger
	cache      sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("users: repository required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repository: cfg.Repository,
		logger:     logger,
	}, nil
}

// SignIn upserts the user keyed by external identity. Email is never used to match an
// existing account.
func (s *Service) SignIn(ctx context.Context, identity Identity) (SignInResult, error) {
	externalID := normalize(identity.ExternalID)
	email := normalize(identity.Email)
	if externalID == "" {
		return SignInResult{}, fmt.Errorf("%w: missing external id", ErrInvalidIdentity)
	}
	if email == "" {
		return SignInResult{}, fmt.Errorf("%w: missing email", ErrInvalidIdentity)
	}

	if cached, ok := s.cache.Load(externalID); ok {
		if userID, ok := cached.(uint64); ok {
			user, err := s.repository.Get(ctx, userID)
			if err == nil {
				return SignInResult{User: user}, nil
			}
			s.cache.Delete(externalID)
		}
	}

	user, err := s.repository.ByExternalID(ctx, externalID)
	if err == nil {
		s.cache.Store(externalID, user.ID)
		return SignInResult{User: user}, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return SignInResult{}, fmt.Errorf("users: lookup by external id: %w", err)
	}

	user, err = s.repository.Create(ctx, Profile{
		GoogleID: externalID,
		Email:    email,
		Name:     displayName(identity.DisplayName, email),
		Picture:  optional(identity.PictureURL),
	})
	if errors.Is(err, ErrDuplicateIdentity) {
		// A concurrent sign-in for the same identity may have won the insert.
		existing, lookupErr := s.repository.ByExternalID(ctx, externalID)
		if lookupErr == nil {
			s.cache.Store(externalID, existing.ID)
			return SignInResult{User: existing}, nil
		}
		return SignInResult{}, err
	}
	if err != nil {
		return SignInResult{}, fmt.Errorf("users: create: %w", err)
	}

	s.logger.Info("user created", zap.Uint64("user_id", user.ID))
	s.cache.Store(externalID, user.ID)
	return SignInResult{User: user, Created: true}, nil
}

// Get returns the user with the given identifier.
func (s *Service) Get(ctx context.Context, userID uint64) (User, error) {
	return s.repository.Get(ctx, userID)
}

// GrantDriveAccess stores OAuth credentials on the user.
func (s *Service) GrantDriveAccess(ctx context.Context, userID uint64, credentials Credentials) (User, error) {
	if normalize(credentials.AccessToken) == "" {
		return User{}, fmt.Errorf("users: access token required")
	}
	user, err := s.repository.UpdateCredentials(ctx, userID, credentials)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("drive access granted", zap.Uint64("user_id", userID))
	return user, nil
}

func displayName(supplied, email string) string {
	if name := normalize(supplied); name != "" {
		return name
	}
	localPart, _, _ := strings.Cut(email, "@")
	return localPart
}
