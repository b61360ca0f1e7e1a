package repository

import (
	"context"

	"github.com/hqanh/qbank/internal/model"
	"gorm.io/gorm"
)

// PoolFilters narrows the eligible pool by content taxonomy and by the
// user's accumulated usage state per question.
type PoolFilters struct {
	Subjects    []string
	Systems     []string
	UsageStates []string // unused, correct, incorrect, omitted, marked
}

type QuestionRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]model.Question, error)
	CountPublished(ctx context.Context, productID string) (int64, error)
	// ResolveEligible joins the product's published questions against the
	// user's per-question progress and returns matching ids in ascending
	// id order, so the result is deterministic and testable. Random
	// selection happens in the caller, never here.
	ResolveEligible(ctx context.Context, userID, productID string, filters PoolFilters) ([]string, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Question, error) {
	var questions []model.Question
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) CountPublished(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Question{}).
		Where("product_id = ? AND published = ?", productID, true).
		Count(&count).Error
	return count, err
}

func (r *questionRepository) ResolveEligible(ctx context.Context, userID, productID string, filters PoolFilters) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&model.Question{}).
		Joins("LEFT JOIN question_progresses p ON p.question_id = questions.id AND p.user_id = ? AND p.product_id = ? AND p.deleted_at IS NULL",
			userID, productID).
		Where("questions.product_id = ? AND questions.published = ?", productID, true)

	if len(filters.Subjects) > 0 {
		query = query.Where("questions.subject IN ?", filters.Subjects)
	}
	if len(filters.Systems) > 0 {
		query = query.Where("questions.system IN ?", filters.Systems)
	}

	if len(filters.UsageStates) > 0 {
		// Usage-state filters are additive: a question matches if it is in
		// any of the requested states. "marked" is orthogonal to status.
		state := r.db.Session(&gorm.Session{NewDB: true})
		var cond *gorm.DB
		for _, s := range filters.UsageStates {
			var c *gorm.DB
			switch s {
			case model.StatusUnused:
				c = state.Where("p.id IS NULL OR p.status = ?", model.StatusUnused)
			case "marked":
				c = state.Where("p.marked = ?", true)
			default:
				c = state.Where("p.status = ?", s)
			}
			if cond == nil {
				cond = c
			} else {
				cond = cond.Or(c)
			}
		}
		query = query.Where(cond)
	}

	var ids []string
	if err := query.Order("questions.id ASC").Pluck("questions.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
