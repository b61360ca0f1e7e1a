package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Choice is a single selectable option of a multiple-choice question.
type Choice struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is the catalog row the attempt runtime reads from. Content is
// owned by the authoring subsystem; this service only ever copies it into
// attempt snapshots and never mutates it.
type Question struct {
	ID            string                      `json:"id" gorm:"primarykey;size:64"`
	ProductID     string                      `json:"product_id" gorm:"not null;index;size:64"`
	Stem          string                      `json:"stem" gorm:"type:text;not null"`
	Choices       datatypes.JSONSlice[Choice] `json:"choices" gorm:"not null"`
	CorrectOption string                      `json:"correct_option" gorm:"not null;size:16"`
	Subject       string                      `json:"subject" gorm:"index;size:128"`
	System        string                      `json:"system" gorm:"index;size:128"`
	Topic         string                      `json:"topic" gorm:"size:128"`
	Published     bool                        `json:"published" gorm:"not null;default:false;index"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	DeletedAt     gorm.DeletedAt              `gorm:"index" json:"-"`
}

// QuestionSnapshot is the frozen copy of a question taken at attempt-open
// time. Later catalog edits or deprecations never alter it, which keeps
// historical review content-stable.
type QuestionSnapshot struct {
	ID            string   `json:"id"`
	Stem          string   `json:"stem"`
	Choices       []Choice `json:"choices"`
	CorrectOption string   `json:"correct_option"`
	Subject       string   `json:"subject"`
	System        string   `json:"system"`
	Topic         string   `json:"topic"`
}
