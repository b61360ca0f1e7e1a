package model

import (
	"time"

	"gorm.io/gorm"
)

// Answer is one row per (attempt, question), seeded with null selection
// when the attempt opens and frozen at finalize.
//
// CorrectOption is copied from the question at attempt-seed time so later
// content edits cannot retroactively change history. IsCorrect is derived,
// never trusted from a prior write: every mutation recomputes it as
// selected == CorrectOption.
type Answer struct {
	ID         uint   `json:"id" gorm:"primarykey"`
	AttemptID  string `json:"attempt_id" gorm:"not null;size:36;uniqueIndex:idx_answers_attempt_question"`
	QuestionID string `json:"question_id" gorm:"not null;size:64;uniqueIndex:idx_answers_attempt_question"`

	Selected      *string `json:"selected,omitempty" gorm:"size:16"`
	IsCorrect     *bool   `json:"is_correct,omitempty"`
	CorrectOption string  `json:"correct_option" gorm:"not null;size:16"`

	Flagged      bool `json:"flagged" gorm:"not null;default:false"`
	TimeSpentSec int  `json:"time_spent_sec"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Recompute derives IsCorrect from the current selection and the frozen
// correct option. Unanswered rows have nil correctness.
func (ans *Answer) Recompute() {
	if ans.Selected == nil {
		ans.IsCorrect = nil
		return
	}
	correct := *ans.Selected == ans.CorrectOption
	ans.IsCorrect = &correct
}
