package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusUnused    = "unused"
	StatusCorrect   = "correct"
	StatusIncorrect = "incorrect"
	StatusOmitted   = "omitted"
)

// QuestionProgress is the long-lived per-user-per-question usage state
// derived from finished attempts. It drives future pool selection and is
// updated only at finalize time, never during a live session.
type QuestionProgress struct {
	ID         uint   `json:"id" gorm:"primarykey"`
	UserID     string `json:"user_id" gorm:"not null;size:64;uniqueIndex:idx_progress_user_product_question"`
	ProductID  string `json:"product_id" gorm:"not null;size:64;uniqueIndex:idx_progress_user_product_question"`
	QuestionID string `json:"question_id" gorm:"not null;size:64;uniqueIndex:idx_progress_user_product_question"`

	Status        string  `json:"status" gorm:"not null;default:'unused';size:16"`
	LastAnswer    *string `json:"last_answer,omitempty" gorm:"size:16"`
	TotalAttempts int     `json:"total_attempts" gorm:"not null;default:0"`
	TimeSpentSec  int     `json:"time_spent_sec" gorm:"not null;default:0"`
	Marked        bool    `json:"marked" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// NextStatus applies the one-way ratchet: an unused question left
// unanswered becomes omitted; any answered question becomes correct or
// incorrect regardless of prior status; a question already scored that is
// later left unanswered keeps its prior status.
func NextStatus(prior string, answered bool, correct bool) string {
	if answered {
		if correct {
			return StatusCorrect
		}
		return StatusIncorrect
	}
	if prior == "" || prior == StatusUnused {
		return StatusOmitted
	}
	return prior
}
