package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and locates the backing database.
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Open connects to the configured database, migrates the schema and applies named migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		db, err = openSQLite(cfg.Path, gormConfig)
	case DriverPostgres:
		db, err = openPostgres(cfg.DSN, gormConfig)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&users.User{}, &letters.Letter{}, &auth.Session{}, &migrationRecord{}); err != nil {
		return nil, fmt.Errorf("database: automigrate: %w", err)
	}
	if err := applyMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database: migrations: %w", err)
	}

	logger.Info("database initialized", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	return Open(Config{Driver: DriverSQLite, Path: path}, logger)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	return gorm.Open(postgres.Open(dsn), gormConfig)
}
