package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ModeTutor = "tutor"
	ModeTimed = "timed"
)

// SelectionCriteria records the filters a student used to build the pool a
// test was generated from. Bookkeeping only; never re-evaluated.
type SelectionCriteria struct {
	Subjects    []string `json:"subjects,omitempty"`
	Systems     []string `json:"systems,omitempty"`
	UsageStates []string `json:"usage_states,omitempty"`
}

// TestDefinition is the immutable ordered question list and mode chosen at
// test creation. The ID is caller-supplied and stable across resume.
// Question ordering is fixed at creation and never reordered; only
// bookkeeping fields (current index, elapsed time, marks, answer mirror,
// suspended flag) are updated in place.
type TestDefinition struct {
	ID        string `json:"id" gorm:"primarykey;size:64"`
	UserID    string `json:"user_id" gorm:"not null;index;size:64"`
	ProductID string `json:"product_id" gorm:"not null;index;size:64"`
	Mode      string `json:"mode" gorm:"not null;size:16"`

	QuestionIDs datatypes.JSONSlice[string] `json:"question_ids" gorm:"not null"`

	// Pool metadata captured at generation time.
	PoolUniverseSize int                                   `json:"pool_universe_size"`
	PoolEligibleSize int                                   `json:"pool_eligible_size"`
	Criteria         datatypes.JSONType[SelectionCriteria] `json:"criteria"`

	// UI bookkeeping. Mutable until an attempt finalizes the test.
	IsSuspended    bool                            `json:"is_suspended" gorm:"not null;default:false"`
	CurrentIndex   int                             `json:"current_index"`
	ElapsedSeconds int                             `json:"elapsed_seconds"`
	MarkedIDs      datatypes.JSONSlice[string]     `json:"marked_ids"`
	AnswerMirror   datatypes.JSONType[map[string]string] `json:"answer_mirror"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TimeLimitSeconds returns the timed-mode limit, or 0 for tutor mode.
func (t *TestDefinition) TimeLimitSeconds(secondsPerQuestion int) int {
	if t.Mode != ModeTimed {
		return 0
	}
	return len(t.QuestionIDs) * secondsPerQuestion
}
