package letters

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository persists letters through gorm.
type GormRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewGormRepository wraps an already migrated database handle.
func NewGormRepository(db *gorm.DB, clock func() time.Time) (*GormRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("letters: database connection required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &GormRepository{db: db, clock: clock}, nil
}

// storable reports whether id fits the signed 64-bit primary key column.
func storable(id uint64) bool {
	return id <= math.MaxInt64
}

func (r *GormRepository) Get(ctx context.Context, id uint64) (Letter, error) {
	if !storable(id) {
		return Letter{}, ErrLetterNotFound
	}
	var letter Letter
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&letter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Letter{}, ErrLetterNotFound
	}
	if err != nil {
		return Letter{}, err
	}
	return normalizeTimes(letter), nil
}

func (r *GormRepository) ListByOwner(ctx context.Context, ownerID uint64) ([]Letter, error) {
	var result []Letter
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("id ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	for index := range result {
		result[index] = normalizeTimes(result[index])
	}
	if result == nil {
		result = []Letter{}
	}
	return result, nil
}

func (r *GormRepository) Create(ctx context.Context, draft Draft) (Letter, error) {
	now := timestamp(r.clock())
	letter := Letter{
		Title:     titleOrDefault(draft.Title),
		Content:   draft.Content,
		UserID:    draft.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&letter).Error; err != nil {
		return Letter{}, err
	}
	return letter, nil
}

func (r *GormRepository) Update(ctx context.Context, id uint64, patch Patch) (Letter, error) {
	if !storable(id) {
		return Letter{}, ErrLetterNotFound
	}
	var updated Letter
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Letter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&existing).Error; err != nil {
			return err
		}
		existing = normalizeTimes(existing)
		updated = patch.apply(existing)
		updated.UpdatedAt = nextUpdatedAt(existing.UpdatedAt, r.clock())

		columns := map[string]interface{}{"updated_at": updated.UpdatedAt}
		if patch.Title != nil {
			columns["title"] = updated.Title
		}
		if patch.Content != nil {
			columns["content"] = updated.Content
		}
		if patch.GoogleDriveID != nil {
			columns["google_drive_id"] = updated.GoogleDriveID
		}
		if patch.GoogleDriveURL != nil {
			columns["google_drive_url"] = updated.GoogleDriveURL
		}
		return tx.Model(&Letter{}).Where("id = ?", id).Updates(columns).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Letter{}, ErrLetterNotFound
	}
	if err != nil {
		return Letter{}, err
	}
	return updated, nil
}

func (r *GormRepository) Delete(ctx context.Context, id uint64) error {
	if !storable(id) {
		return nil
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Letter{}).Error
}

func normalizeTimes(letter Letter) Letter {
	letter.CreatedAt = letter.CreatedAt.UTC()
	letter.UpdatedAt = letter.UpdatedAt.UTC()
	return letter
}
