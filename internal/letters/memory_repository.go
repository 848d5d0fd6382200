package letters

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps letters in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	letters map[uint64]Letter
	nextID  uint64
	clock   func() time.Time
}

// NewMemoryRepository constructs an empty in-memory letter store.
func NewMemoryRepository(clock func() time.Time) *MemoryRepository {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRepository{
		letters: make(map[uint64]Letter),
		nextID:  1,
		clock:   clock,
	}
}

func (r *MemoryRepository) Get(_ context.Context, id uint64) (Letter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	letter, ok := r.letters[id]
	if !ok {
		return Letter{}, ErrLetterNotFound
	}
	return letter, nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID uint64) ([]Letter, error) {
	r.mu.RLock()
	result := make([]Letter, 0)
	for _, letter := range r.letters {
		if letter.UserID == ownerID {
			result = append(result, letter)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryRepository) Create(_ context.Context, draft Draft) (Letter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := timestamp(r.clock())
	letter := Letter{
		ID:        r.nextID,
		Title:     titleOrDefault(draft.Title),
		Content:   draft.Content,
		UserID:    draft.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.nextID++
	r.letters[letter.ID] = letter
	return letter, nil
}

func (r *MemoryRepository) Update(_ context.Context, id uint64, patch Patch) (Letter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.letters[id]
	if !ok {
		return Letter{}, ErrLetterNotFound
	}
	updated := patch.apply(existing)
	updated.UpdatedAt = nextUpdatedAt(existing.UpdatedAt, r.clock())
	r.letters[id] = updated
	return updated, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	delete(r.letters, id)
	r.mu.Unlock()
	return nil
}
