package dto

// TestCreateOrUpdateDTO is the find-or-update payload for a test
// definition. The test ID is caller-supplied and stable across resume.
type TestCreateOrUpdateDTO struct {
	TestID      string   `json:"test_id" binding:"required"`
	UserID      string   `json:"user_id" binding:"required"`
	ProductID   string   `json:"product_id" binding:"required"`
	Mode        string   `json:"mode" binding:"required,oneof=tutor timed"`
	QuestionIDs []string `json:"question_ids" binding:"required,min=1,dive,required"`

	PoolUniverseSize int                  `json:"pool_universe_size"`
	PoolEligibleSize int                  `json:"pool_eligible_size"`
	Criteria         SelectionCriteriaDTO `json:"criteria"`

	// Bookkeeping mirror, optional on update.
	CurrentIndex   int               `json:"current_index"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	MarkedIDs      []string          `json:"marked_ids"`
	AnswerMirror   map[string]string `json:"answer_mirror"`
}

type SelectionCriteriaDTO struct {
	Subjects    []string `json:"subjects,omitempty"`
	Systems     []string `json:"systems,omitempty"`
	UsageStates []string `json:"usage_states,omitempty" binding:"omitempty,dive,oneof=unused correct incorrect omitted marked"`
}

// TestSuspendDTO persists UI bookkeeping when a session is suspended. It
// never closes the linked attempt; suspension is a resume concept, attempt
// closure is a scoring concept.
type TestSuspendDTO struct {
	UserID         string            `json:"user_id" binding:"required"`
	CurrentIndex   int               `json:"current_index"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	MarkedIDs      []string          `json:"marked_ids"`
	AnswerMirror   map[string]string `json:"answer_mirror"`
}

// PoolResolveDTO asks for the set of eligible question ids for a new test.
type PoolResolveDTO struct {
	UserID    string               `json:"user_id" binding:"required"`
	ProductID string               `json:"product_id" binding:"required"`
	Filters   SelectionCriteriaDTO `json:"filters"`
}

// OpenAttemptDTO opens (or returns) the single open attempt of a test.
type OpenAttemptDTO struct {
	UserID string `json:"user_id" binding:"required"`
}

// RecordAnswerDTO writes one answer. A null selection clears the answer
// (timed mode only; tutor-mode selections are locked once submitted).
type RecordAnswerDTO struct {
	Selected *string `json:"selected"`
}

// RecordFlagDTO toggles the review flag on one question.
type RecordFlagDTO struct {
	Flagged bool `json:"flagged"`
}

// MirrorProgressDTO is the optimistic UI heartbeat. None of these fields
// affect scoring, so they may reach the cache before any durable write.
type MirrorProgressDTO struct {
	CurrentIndex       int            `json:"current_index"`
	ElapsedSeconds     int            `json:"elapsed_seconds"`
	PerQuestionSeconds map[string]int `json:"per_question_seconds"`
}

// AttemptSnapshotDTO is the bulk state applied by both suspend and finish.
// Answers maps question id to the selected option (null = unanswered).
type AttemptSnapshotDTO struct {
	MarkedIDs      []string           `json:"marked_ids"`
	TimeSpent      map[string]int     `json:"time_spent"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	Answers        map[string]*string `json:"answers"`
	Flags          map[string]bool    `json:"flags"`
}
