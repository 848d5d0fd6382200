package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormRepository persists users through gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps an already migrated database handle.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Get(ctx context.Context, id uint64) (User, error) {
	return r.take(ctx, "id = ?", id)
}

func (r *GormRepository) ByEmail(ctx context.Context, email string) (User, error) {
	return r.take(ctx, "email = ?", email)
}

func (r *GormRepository) ByExternalID(ctx context.Context, googleID string) (User, error) {
	return r.take(ctx, "google_id = ?", googleID)
}

func (r *GormRepository) Create(ctx context.Context, profile Profile) (User, error) {
	user := User{
		Email:    profile.Email,
		Name:     profile.Name,
		Picture:  profile.Picture,
		GoogleID: profile.GoogleID,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).
			Where("google_id = ? OR email = ?", profile.GoogleID, profile.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateIdentity
		}
		return tx.Create(&user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return User{}, ErrDuplicateIdentity
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *GormRepository) UpdateCredentials(ctx context.Context, id uint64, credentials Credentials) (User, error) {
	var user User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{"access_token": optional(credentials.AccessToken)}
		if refresh := optional(credentials.RefreshToken); refresh != nil {
			updates["refresh_token"] = refresh
		}
		if err := tx.Model(&User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *GormRepository) take(ctx context.Context, query string, value interface{}) (User, error) {
	var user User
	err := r.db.WithContext(ctx).Where(query, value).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
