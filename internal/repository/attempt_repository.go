package repository

import (
	"context"
	"time"

	"github.com/hqanh/qbank/internal/model"
	"gorm.io/gorm"
)

// AttemptBookkeeping is the bulk-overwritable slice of an attempt, applied
// by suspend snapshots and by the final snapshot at finish time.
type AttemptBookkeeping struct {
	MarkedIDs      []string
	TimeSpent      map[string]int
	ElapsedSeconds int
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *model.Attempt) error
	FindByID(ctx context.Context, tx *gorm.DB, id string) (*model.Attempt, error)
	FindByIDWithAnswers(ctx context.Context, tx *gorm.DB, id string) (*model.Attempt, error)
	FindOpenByTestDefinition(ctx context.Context, tx *gorm.DB, testDefinitionID string) (*model.Attempt, error)
	// UpdateBookkeepingIfOpen overwrites the attempt's bookkeeping fields
	// with a conditional `finished_at IS NULL` guard and reports the
	// affected-row count, so a lost race against a concurrent finish is
	// detected instead of silently corrupting a closed attempt.
	UpdateBookkeepingIfOpen(ctx context.Context, tx *gorm.DB, id string, bk AttemptBookkeeping) (int64, error)
	// CloseIfOpen sets finished_at under the same conditional guard.
	CloseIfOpen(ctx context.Context, tx *gorm.DB, id string, finishedAt time.Time, bk AttemptBookkeeping) (int64, error)
	// TouchIfOpen bumps updated_at under the open-attempt guard. Inside a
	// transaction this both verifies the attempt is still open and takes
	// the row lock that serializes answer writes against a concurrent
	// finish.
	TouchIfOpen(ctx context.Context, tx *gorm.DB, id string) (int64, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *attemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *model.Attempt) error {
	// Creates the seeded Answer rows in the same insert via the
	// association; the partial unique index on open attempts per test
	// definition turns a concurrent double-create into an error the
	// service resolves by re-reading.
	return r.getDB(tx).WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) FindByID(ctx context.Context, tx *gorm.DB, id string) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.getDB(tx).WithContext(ctx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIDWithAnswers(ctx context.Context, tx *gorm.DB, id string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.getDB(tx).WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.id ASC")
		}).
		First(&attempt, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindOpenByTestDefinition(ctx context.Context, tx *gorm.DB, testDefinitionID string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.getDB(tx).WithContext(ctx).
		Where("test_definition_id = ? AND finished_at IS NULL", testDefinitionID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) UpdateBookkeepingIfOpen(ctx context.Context, tx *gorm.DB, id string, bk AttemptBookkeeping) (int64, error) {
	res := r.getDB(tx).WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND finished_at IS NULL", id).
		Updates(map[string]interface{}{
			"marked_ids":      datatypesSlice(bk.MarkedIDs),
			"time_spent":      datatypesMap(bk.TimeSpent),
			"elapsed_seconds": bk.ElapsedSeconds,
		})
	return res.RowsAffected, res.Error
}

func (r *attemptRepository) TouchIfOpen(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	res := r.getDB(tx).WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND finished_at IS NULL", id).
		UpdateColumn("updated_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

func (r *attemptRepository) CloseIfOpen(ctx context.Context, tx *gorm.DB, id string, finishedAt time.Time, bk AttemptBookkeeping) (int64, error) {
	res := r.getDB(tx).WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND finished_at IS NULL", id).
		Updates(map[string]interface{}{
			"finished_at":     finishedAt,
			"marked_ids":      datatypesSlice(bk.MarkedIDs),
			"time_spent":      datatypesMap(bk.TimeSpent),
			"elapsed_seconds": bk.ElapsedSeconds,
		})
	return res.RowsAffected, res.Error
}
