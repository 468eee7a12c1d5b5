package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hearthvault/backend/internal/attachments"
	"github.com/hearthvault/backend/internal/catalog"
	"github.com/hearthvault/backend/internal/entries"
	"github.com/hearthvault/backend/internal/identity"
	"github.com/hearthvault/backend/internal/invites"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&identity.Family{},
		&identity.User{},
		&identity.Session{},
		&invites.Invite{},
		&catalog.Section{},
		&entries.Entry{},
		&entries.EntryHistory{},
		&attachments.Attachment{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
