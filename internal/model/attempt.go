package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Attempt is one durable, time-bounded record of a student working through
// a test definition's questions; the unit of scoring. At most one open
// (finished_at IS NULL) attempt may exist per test definition, enforced by
// a partial unique index (see database.Migrate).
//
// The attempt carries a frozen snapshot of question content taken once at
// creation; everything scoring-relevant is resolved against that snapshot,
// never against the live catalog.
type Attempt struct {
	ID               string `json:"id" gorm:"primarykey;size:36"`
	TestDefinitionID string `json:"test_definition_id" gorm:"not null;index;size:64"`
	UserID           string `json:"user_id" gorm:"not null;index;size:64"`
	ProductID        string `json:"product_id" gorm:"not null;size:64"`

	StartedAt  time.Time  `json:"started_at" gorm:"not null"`
	FinishedAt *time.Time `json:"finished_at,omitempty" gorm:"index"`

	QuestionIDs datatypes.JSONSlice[string]           `json:"question_ids" gorm:"not null"`
	Snapshot    datatypes.JSONSlice[QuestionSnapshot] `json:"snapshot" gorm:"not null"`

	MarkedIDs      datatypes.JSONSlice[string]        `json:"marked_ids"`
	TimeSpent      datatypes.JSONType[map[string]int] `json:"time_spent"`
	ElapsedSeconds int                                `json:"elapsed_seconds"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Finished reports whether the attempt is closed. Closed attempts and
// their answers are immutable; mutations must fail, not silently succeed.
func (a *Attempt) Finished() bool {
	return a.FinishedAt != nil
}

// SnapshotByID returns the frozen content for one question of the attempt.
func (a *Attempt) SnapshotByID(questionID string) (QuestionSnapshot, bool) {
	for _, qs := range a.Snapshot {
		if qs.ID == questionID {
			return qs, true
		}
	}
	return QuestionSnapshot{}, false
}
