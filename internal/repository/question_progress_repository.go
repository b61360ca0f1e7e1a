package repository

import (
	"context"
	"errors"

	"github.com/hqanh/qbank/internal/model"
	"gorm.io/gorm"
)

type QuestionProgressRepository interface {
	Find(ctx context.Context, tx *gorm.DB, userID, productID, questionID string) (*model.QuestionProgress, error)
	FindAllByUserProduct(ctx context.Context, userID, productID string) ([]model.QuestionProgress, error)
	Save(ctx context.Context, tx *gorm.DB, progress *model.QuestionProgress) error
}

type questionProgressRepository struct {
	db *gorm.DB
}

func NewQuestionProgressRepository(db *gorm.DB) QuestionProgressRepository {
	return &questionProgressRepository{db: db}
}

func (r *questionProgressRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Find returns nil (no error) when the user has never been exposed to the
// question; callers create the row on first exposure.
func (r *questionProgressRepository) Find(ctx context.Context, tx *gorm.DB, userID, productID, questionID string) (*model.QuestionProgress, error) {
	var progress model.QuestionProgress
	err := r.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND question_id = ?", userID, productID, questionID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *questionProgressRepository) FindAllByUserProduct(ctx context.Context, userID, productID string) ([]model.QuestionProgress, error) {
	var rows []model.QuestionProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Order("question_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *questionProgressRepository) Save(ctx context.Context, tx *gorm.DB, progress *model.QuestionProgress) error {
	return r.getDB(tx).WithContext(ctx).Save(progress).Error
}
