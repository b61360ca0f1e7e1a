package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hqanh/qbank/database"
	"github.com/hqanh/qbank/internal/cache"
	"github.com/hqanh/qbank/internal/model"
	"github.com/hqanh/qbank/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testUser    = "user-1"
	testProduct = "product-1"
)

// memoryMirror is the in-memory SessionMirror used by tests in place of the
// redis implementation.
type memoryMirror struct {
	mu     sync.Mutex
	states map[string]*cache.SessionState
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{states: map[string]*cache.SessionState{}}
}

func (m *memoryMirror) get(attemptID string) *cache.SessionState {
	if s, ok := m.states[attemptID]; ok {
		return s
	}
	s := &cache.SessionState{
		PerQuestionSeconds: map[string]int{},
		Answers:            map[string]*string{},
		Flags:              map[string]bool{},
	}
	m.states[attemptID] = s
	return s
}

func (m *memoryMirror) MirrorProgress(_ context.Context, attemptID string, currentIndex, elapsedSeconds int, perQuestionSeconds map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(attemptID)
	s.CurrentIndex = currentIndex
	s.ElapsedSeconds = elapsedSeconds
	for qid, sec := range perQuestionSeconds {
		s.PerQuestionSeconds[qid] = sec
	}
	return nil
}

func (m *memoryMirror) ConfirmAnswer(_ context.Context, attemptID, questionID string, selected *string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(attemptID)
	s.Answers[questionID] = selected
	if locked {
		s.LockedAnswers = append(s.LockedAnswers, questionID)
	}
	return nil
}

func (m *memoryMirror) ConfirmFlag(_ context.Context, attemptID, questionID string, flagged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(attemptID).Flags[questionID] = flagged
	return nil
}

func (m *memoryMirror) Resync(_ context.Context, attemptID string, state cache.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[attemptID] = &state
	return nil
}

func (m *memoryMirror) Load(_ context.Context, attemptID string) (*cache.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[attemptID]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (m *memoryMirror) Invalidate(_ context.Context, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, attemptID)
	return nil
}

type testEnv struct {
	db           *gorm.DB
	questionRepo repository.QuestionRepository
	testDefRepo  repository.TestDefinitionRepository
	attemptRepo  repository.AttemptRepository
	answerRepo   repository.AnswerRepository
	progressRepo repository.QuestionProgressRepository
	mirror       *memoryMirror
	attempts     AttemptService
	tests        TestDefinitionService
	pool         PoolService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Shared-cache in-memory database so every pooled connection (and every
	// transaction) sees the same data.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	env := &testEnv{
		db:           db,
		questionRepo: repository.NewQuestionRepository(db),
		testDefRepo:  repository.NewTestDefinitionRepository(db),
		attemptRepo:  repository.NewAttemptRepository(db),
		answerRepo:   repository.NewAnswerRepository(db),
		progressRepo: repository.NewQuestionProgressRepository(db),
		mirror:       newMemoryMirror(),
	}
	env.attempts = NewAttemptService(env.testDefRepo, env.attemptRepo, env.answerRepo, env.questionRepo,
		NewProgressService(env.progressRepo), env.mirror, 90, db)
	env.tests = NewTestDefinitionService(env.testDefRepo, env.attemptRepo, env.attempts)
	env.pool = NewPoolService(env.questionRepo)
	return env
}

func (e *testEnv) seedQuestion(t *testing.T, id, correctOption, subject, system string) {
	t.Helper()
	q := model.Question{
		ID:        id,
		ProductID: testProduct,
		Stem:      "Stem of " + id,
		Choices: datatypes.NewJSONSlice([]model.Choice{
			{Key: "A", Text: "Option A"},
			{Key: "B", Text: "Option B"},
			{Key: "C", Text: "Option C"},
		}),
		CorrectOption: correctOption,
		Subject:       subject,
		System:        system,
		Published:     true,
	}
	require.NoError(t, e.db.Create(&q).Error)
}

func (e *testEnv) createTest(t *testing.T, id, mode string, questionIDs ...string) *model.TestDefinition {
	t.Helper()
	def := &model.TestDefinition{
		ID:           id,
		UserID:       testUser,
		ProductID:    testProduct,
		Mode:         mode,
		QuestionIDs:  datatypes.NewJSONSlice(questionIDs),
		MarkedIDs:    datatypes.NewJSONSlice([]string{}),
		AnswerMirror: datatypes.NewJSONType(map[string]string{}),
	}
	require.NoError(t, e.testDefRepo.Create(context.Background(), nil, def))
	return def
}

func strptr(s string) *string {
	return &s
}
