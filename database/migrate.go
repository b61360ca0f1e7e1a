package database

import (
	"github.com/hqanh/qbank/internal/model"
	"gorm.io/gorm"
)

// Migrate runs the schema migration plus the partial unique index that
// enforces "at most one open attempt per test definition". The index is
// what makes OpenOrGetAttempt idempotent under concurrent calls: the loser
// of a create race gets a uniqueness error and re-reads the winner's row.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Question{},
		&model.TestDefinition{},
		&model.Attempt{},
		&model.Answer{},
		&model.QuestionProgress{},
	); err != nil {
		return err
	}

	// Partial index syntax is shared by postgres and sqlite.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_open_per_test
		ON attempts (test_definition_id)
		WHERE finished_at IS NULL AND deleted_at IS NULL`).Error
}
