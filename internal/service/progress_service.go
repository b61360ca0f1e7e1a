package service

import (
	"context"
	"fmt"

	"github.com/hqanh/qbank/internal/model"
	"github.com/hqanh/qbank/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ProgressService derives the long-lived per-user-per-question usage state
// from finished attempts. It runs inside the Finish transaction and must
// be all-or-nothing: a partial update would leave progress rows stale
// relative to the attempt they came from.
type ProgressService interface {
	ApplyFinishedAttempt(ctx context.Context, tx *gorm.DB, attempt *model.Attempt, answers []model.Answer) error
}

type progressService struct {
	progressRepo repository.QuestionProgressRepository
}

func NewProgressService(progressRepo repository.QuestionProgressRepository) ProgressService {
	return &progressService{progressRepo: progressRepo}
}

func (s *progressService) ApplyFinishedAttempt(ctx context.Context, tx *gorm.DB, attempt *model.Attempt, answers []model.Answer) error {
	marked := make(map[string]bool, len(attempt.MarkedIDs))
	for _, qid := range attempt.MarkedIDs {
		marked[qid] = true
	}

	for i := range answers {
		ans := &answers[i]

		progress, err := s.progressRepo.Find(ctx, tx, attempt.UserID, attempt.ProductID, ans.QuestionID)
		if err != nil {
			return fmt.Errorf("load progress for question %s: %w", ans.QuestionID, err)
		}
		if progress == nil {
			// First-ever exposure of this question for this user+product.
			progress = &model.QuestionProgress{
				UserID:     attempt.UserID,
				ProductID:  attempt.ProductID,
				QuestionID: ans.QuestionID,
				Status:     model.StatusUnused,
			}
		}

		answered := ans.Selected != nil
		correct := answered && ans.IsCorrect != nil && *ans.IsCorrect

		progress.Status = model.NextStatus(progress.Status, answered, correct)
		if answered {
			progress.LastAnswer = ans.Selected
		}
		progress.TotalAttempts++
		progress.TimeSpentSec += ans.TimeSpentSec
		progress.Marked = marked[ans.QuestionID]

		if err := s.progressRepo.Save(ctx, tx, progress); err != nil {
			return fmt.Errorf("save progress for question %s: %w", ans.QuestionID, err)
		}
	}

	log.Debug().Str("attemptID", attempt.ID).Int("questions", len(answers)).Msg("Applied finished attempt to question progress")
	return nil
}
