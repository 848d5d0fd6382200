package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationClearBlankDriveLinks = "2026-10-01_clear_blank_drive_links"
	migrationPruneExpiredSessions = "2026-10-02_prune_expired_sessions"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClearBlankDriveLinks, apply: clearBlankDriveLinks},
		{name: migrationPruneExpiredSessions, apply: pruneExpiredSessions},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clearBlankDriveLinks nulls export columns that were written as empty strings so that
// only genuinely exported letters carry a drive id.
func clearBlankDriveLinks(db *gorm.DB) error {
	return db.Model(&letters.Letter{}).
		Where("google_drive_id = ?", "").
		Updates(map[string]interface{}{"google_drive_id": nil, "google_drive_url": nil}).Error
}

func pruneExpiredSessions(db *gorm.DB) error {
	return db.Where("expires_at <= ?", time.Now().UTC()).Delete(&auth.Session{}).Error
}
