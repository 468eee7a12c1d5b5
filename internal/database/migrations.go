package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationLowercaseAccountEmails = "2026-06-12_lowercase_account_emails"

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
		{name: migrationLowercaseAccountEmails, apply: lowercaseAccountEmails},
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
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// lowercaseAccountEmails repairs rows written before email normalization
// moved into the identity service. Lookups compare against the lowercased
// form, so mixed-case rows would be unreachable.
func lowercaseAccountEmails(db *gorm.DB) error {
	if err := db.Exec("UPDATE users SET email = lower(email) WHERE email <> lower(email);").Error; err != nil {
		return err
	}
	return db.Exec("UPDATE invites SET email = lower(email) WHERE email <> lower(email);").Error
}
