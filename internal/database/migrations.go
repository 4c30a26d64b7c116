package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationRenameGrowthTags = "2024-06-01_rename_growth_tags"
	legacyGrowthTagsColumn    = "growth_tags"
	negativeTagsColumn        = "negative_tags"
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

// applyMigrations runs one-shot migrations against the schema as found on disk,
// before AutoMigrate reconciles it with the current models.
func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRenameGrowthTags, apply: renameGrowthTags},
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

// renameGrowthTags moves the legacy growth_tags column to negative_tags.
// It only acts on what it finds, so running it against any schema is safe.
func renameGrowthTags(db *gorm.DB) error {
	migrator := db.Migrator()
	entry := &journal.Entry{}
	if !migrator.HasTable(entry) || !migrator.HasColumn(entry, legacyGrowthTagsColumn) {
		return nil
	}
	if !migrator.HasColumn(entry, negativeTagsColumn) {
		return migrator.RenameColumn(entry, legacyGrowthTagsColumn, negativeTagsColumn)
	}
	if err := db.Exec(
		"UPDATE daily_entries SET negative_tags = growth_tags " +
			"WHERE (negative_tags IS NULL OR negative_tags = '' OR negative_tags = '[]') " +
			"AND growth_tags IS NOT NULL AND growth_tags <> ''",
	).Error; err != nil {
		return err
	}
	return migrator.DropColumn(entry, legacyGrowthTagsColumn)
}
