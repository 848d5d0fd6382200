package users

import "context"

// Repository is the keyed user store. Implementations must keep GoogleID and Email unique
// and must never reuse identifiers.
type Repository interface {
	Get(ctx context.Context, id uint64) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	ByExternalID(ctx context.Context, googleID string) (User, error)
	Create(ctx context.Context, profile Profile) (User, error)
	UpdateCredentials(ctx context.Context, id uint64, credentials Credentials) (User, error)
}
