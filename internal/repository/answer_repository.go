package repository

import (
	"context"

	"github.com/hqanh/qbank/internal/model"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	FindByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID string) (*model.Answer, error)
	FindAllByAttempt(ctx context.Context, tx *gorm.DB, attemptID string) ([]model.Answer, error)
	Save(ctx context.Context, tx *gorm.DB, answer *model.Answer) error
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *answerRepository) FindByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID string) (*model.Answer, error) {
	var answer model.Answer
	err := r.getDB(tx).WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *answerRepository) FindAllByAttempt(ctx context.Context, tx *gorm.DB, attemptID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) Save(ctx context.Context, tx *gorm.DB, answer *model.Answer) error {
	return r.getDB(tx).WithContext(ctx).Save(answer).Error
}
