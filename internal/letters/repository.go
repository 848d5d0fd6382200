package letters

import "context"

// Repository is the keyed letter store. Update fails with ErrLetterNotFound for unknown ids;
// Delete is idempotent. Identifiers are never reused.
type Repository interface {
	Get(ctx context.Context, id uint64) (Letter, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]Letter, error)
	Create(ctx context.Context, draft Draft) (Letter, error)
	Update(ctx context.Context, id uint64, patch Patch) (Letter, error)
	Delete(ctx context.Context, id uint64) error
}
