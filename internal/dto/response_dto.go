package dto

import "time"

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// AttemptQuestionDTO is the frozen question content served to the session.
// The correct option is deliberately absent; correctness only ever comes
// back through answer rows the server has scored.
type AttemptQuestionDTO struct {
	ID      string      `json:"id"`
	Stem    string      `json:"stem"`
	Choices []ChoiceDTO `json:"choices"`
	Subject string      `json:"subject,omitempty"`
	System  string      `json:"system,omitempty"`
	Topic   string      `json:"topic,omitempty"`
}

type ChoiceDTO struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type AnswerDTO struct {
	QuestionID   string  `json:"question_id"`
	Selected     *string `json:"selected,omitempty"`
	IsCorrect    *bool   `json:"is_correct,omitempty"`
	Flagged      bool    `json:"flagged"`
	TimeSpentSec int     `json:"time_spent_sec"`
}

// AttemptDTO is the authoritative attempt state; the session cache is
// resynchronized from this shape on load/resume.
type AttemptDTO struct {
	ID               string               `json:"id"`
	TestDefinitionID string               `json:"test_definition_id"`
	UserID           string               `json:"user_id"`
	ProductID        string               `json:"product_id"`
	Mode             string               `json:"mode"`
	StartedAt        time.Time            `json:"started_at"`
	FinishedAt       *time.Time           `json:"finished_at,omitempty"`
	QuestionIDs      []string             `json:"question_ids"`
	Questions        []AttemptQuestionDTO `json:"questions"`
	Answers          []AnswerDTO          `json:"answers"`
	MarkedIDs        []string             `json:"marked_ids"`
	TimeSpent        map[string]int       `json:"time_spent"`
	ElapsedSeconds   int                  `json:"elapsed_seconds"`
	TimeLimitSeconds int                  `json:"time_limit_seconds,omitempty"`
}

// QuestionResultDTO is one row of the per-question breakdown of a finished
// attempt. The correct option is exposed here because the attempt is over.
type QuestionResultDTO struct {
	QuestionID    string  `json:"question_id"`
	Selected      *string `json:"selected,omitempty"`
	CorrectOption string  `json:"correct_option"`
	IsCorrect     *bool   `json:"is_correct,omitempty"`
	Status        string  `json:"status"`
	Flagged       bool    `json:"flagged"`
	TimeSpentSec  int     `json:"time_spent_sec"`
}

type AttemptSummaryDTO struct {
	AttemptID            string              `json:"attempt_id"`
	TestID               string              `json:"test_id"`
	TotalQuestions       int                 `json:"total_questions"`
	Correct              int                 `json:"correct"`
	Incorrect            int                 `json:"incorrect"`
	Omitted              int                 `json:"omitted"`
	Flagged              int                 `json:"flagged"`
	Percentage           int                 `json:"percentage"`
	FinishedAt           *time.Time          `json:"finished_at,omitempty"`
	PerQuestionBreakdown []QuestionResultDTO `json:"per_question_breakdown"`
}

// TestCreateOrUpdateResponseDTO links the persisted definition with its
// open attempt, so every test has an attempt from first persistence on.
type TestCreateOrUpdateResponseDTO struct {
	TestID    string `json:"test_id"`
	AttemptID string `json:"attempt_id"`
}

// TestHistoryDTO is one row of the newest-first history list, joined with
// the latest finished attempt's aggregate stats.
type TestHistoryDTO struct {
	TestID         string     `json:"test_id"`
	ProductID      string     `json:"product_id"`
	Mode           string     `json:"mode"`
	QuestionCount  int        `json:"question_count"`
	IsSuspended    bool       `json:"is_suspended"`
	CreatedAt      time.Time  `json:"created_at"`
	AttemptID      *string    `json:"attempt_id,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Correct        int        `json:"correct"`
	Incorrect      int        `json:"incorrect"`
	Omitted        int        `json:"omitted"`
	FlaggedCount   int        `json:"flagged_count"`
}

// SessionStateDTO is the session mirror served to a resuming client. Never
// authoritative; the attempt row is.
type SessionStateDTO struct {
	CurrentIndex       int                `json:"current_index"`
	ElapsedSeconds     int                `json:"elapsed_seconds"`
	PerQuestionSeconds map[string]int     `json:"per_question_seconds"`
	Answers            map[string]*string `json:"answers"`
	Flags              map[string]bool    `json:"flags"`
	LockedAnswers      []string           `json:"locked_answers"`
	SyncedAt           time.Time          `json:"synced_at"`
}

type PoolResolveResponseDTO struct {
	QuestionIDs   []string `json:"question_ids"`
	EligibleCount int      `json:"eligible_count"`
	UniverseCount int      `json:"universe_count"`
}
