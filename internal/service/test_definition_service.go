package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hqanh/qbank/internal/apperr"
	"github.com/hqanh/qbank/internal/dto"
	"github.com/hqanh/qbank/internal/model"
	"github.com/hqanh/qbank/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestDefinitionService persists the immutable question ordering and mode
// chosen for a test session, plus the mutable UI bookkeeping around it.
type TestDefinitionService interface {
	// CreateOrUpdate finds-or-updates by (testID, userID). First creation
	// also opens the linked attempt, so every test has an attempt from
	// its very first persistence onward.
	CreateOrUpdate(ctx context.Context, payload dto.TestCreateOrUpdateDTO) (*dto.TestCreateOrUpdateResponseDTO, error)
	// Suspend marks the definition suspended and stores bookkeeping. It
	// never closes the linked attempt: suspension is a resume concept,
	// attempt closure is a scoring concept, and the two stay decoupled.
	Suspend(ctx context.Context, testID string, payload dto.TestSuspendDTO) error
	ListForUser(ctx context.Context, userID, productID string) ([]dto.TestHistoryDTO, error)
	Archive(ctx context.Context, testID, userID string) error
}

type testDefinitionService struct {
	testDefRepo    repository.TestDefinitionRepository
	attemptRepo    repository.AttemptRepository
	attemptService AttemptService
}

func NewTestDefinitionService(
	testDefRepo repository.TestDefinitionRepository,
	attemptRepo repository.AttemptRepository,
	attemptService AttemptService,
) TestDefinitionService {
	return &testDefinitionService{
		testDefRepo:    testDefRepo,
		attemptRepo:    attemptRepo,
		attemptService: attemptService,
	}
}

func (s *testDefinitionService) CreateOrUpdate(ctx context.Context, payload dto.TestCreateOrUpdateDTO) (*dto.TestCreateOrUpdateResponseDTO, error) {
	existing, err := s.testDefRepo.FindByIDAndUser(ctx, payload.TestID, payload.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find test definition %s: %w", payload.TestID, err)
	}

	if existing == nil {
		def := &model.TestDefinition{
			ID:               payload.TestID,
			UserID:           payload.UserID,
			ProductID:        payload.ProductID,
			Mode:             payload.Mode,
			QuestionIDs:      datatypes.NewJSONSlice(payload.QuestionIDs),
			PoolUniverseSize: payload.PoolUniverseSize,
			PoolEligibleSize: payload.PoolEligibleSize,
			Criteria: datatypes.NewJSONType(model.SelectionCriteria{
				Subjects:    payload.Criteria.Subjects,
				Systems:     payload.Criteria.Systems,
				UsageStates: payload.Criteria.UsageStates,
			}),
			CurrentIndex:   payload.CurrentIndex,
			ElapsedSeconds: payload.ElapsedSeconds,
			MarkedIDs:      datatypes.NewJSONSlice(emptyIfNil(payload.MarkedIDs)),
			AnswerMirror:   datatypes.NewJSONType(emptyMapIfNil(payload.AnswerMirror)),
		}
		if err := s.testDefRepo.Create(ctx, nil, def); err != nil {
			return nil, fmt.Errorf("create test definition %s: %w", payload.TestID, err)
		}
		log.Info().Str("testID", def.ID).Str("mode", def.Mode).Int("questions", len(def.QuestionIDs)).Msg("Test definition created")

		// Link the attempt immediately so the one-open-attempt invariant
		// holds even if the client dies right after creation.
		attempt, err := s.attemptService.OpenOrGetAttempt(ctx, def.ID, def.UserID)
		if err != nil {
			return nil, fmt.Errorf("open attempt for new test %s: %w", def.ID, err)
		}
		return &dto.TestCreateOrUpdateResponseDTO{TestID: def.ID, AttemptID: attempt.ID}, nil
	}

	// Update path: the question ordering and mode are fixed at creation;
	// only bookkeeping fields move. A re-persisting client is an active
	// session again, so suspension is lifted here.
	existing.IsSuspended = false
	existing.CurrentIndex = payload.CurrentIndex
	existing.ElapsedSeconds = payload.ElapsedSeconds
	existing.MarkedIDs = datatypes.NewJSONSlice(emptyIfNil(payload.MarkedIDs))
	existing.AnswerMirror = datatypes.NewJSONType(emptyMapIfNil(payload.AnswerMirror))
	if err := s.testDefRepo.UpdateBookkeeping(ctx, nil, existing); err != nil {
		return nil, fmt.Errorf("update test definition %s: %w", payload.TestID, err)
	}

	resp := &dto.TestCreateOrUpdateResponseDTO{TestID: existing.ID}
	if open, err := s.attemptRepo.FindOpenByTestDefinition(ctx, nil, existing.ID); err == nil {
		resp.AttemptID = open.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find open attempt for test %s: %w", existing.ID, err)
	}
	return resp, nil
}

func (s *testDefinitionService) Suspend(ctx context.Context, testID string, payload dto.TestSuspendDTO) error {
	def, err := s.testDefRepo.FindByIDAndUser(ctx, testID, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", apperr.ErrTestNotFound, testID)
		}
		return fmt.Errorf("find test definition %s: %w", testID, err)
	}

	def.IsSuspended = true
	def.CurrentIndex = payload.CurrentIndex
	def.ElapsedSeconds = payload.ElapsedSeconds
	def.MarkedIDs = datatypes.NewJSONSlice(emptyIfNil(payload.MarkedIDs))
	def.AnswerMirror = datatypes.NewJSONType(emptyMapIfNil(payload.AnswerMirror))

	if err := s.testDefRepo.UpdateBookkeeping(ctx, nil, def); err != nil {
		return fmt.Errorf("suspend test definition %s: %w", testID, err)
	}
	log.Info().Str("testID", testID).Int("currentIndex", payload.CurrentIndex).Msg("Test definition suspended")
	return nil
}

func (s *testDefinitionService) ListForUser(ctx context.Context, userID, productID string) ([]dto.TestHistoryDTO, error) {
	defs, err := s.testDefRepo.ListForUser(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("list test definitions: %w", err)
	}
	stats, err := s.testDefRepo.LatestFinishedStats(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("load attempt stats: %w", err)
	}

	history := make([]dto.TestHistoryDTO, 0, len(defs))
	for _, def := range defs {
		row := dto.TestHistoryDTO{
			TestID:        def.ID,
			ProductID:     def.ProductID,
			Mode:          def.Mode,
			QuestionCount: len(def.QuestionIDs),
			IsSuspended:   def.IsSuspended,
			CreatedAt:     def.CreatedAt,
		}
		if st, ok := stats[def.ID]; ok {
			attemptID := st.AttemptID
			row.AttemptID = &attemptID
			row.FinishedAt = st.FinishedAt
			row.Correct = st.Correct
			row.Incorrect = st.Incorrect
			row.Omitted = st.Omitted
			row.FlaggedCount = st.Flagged
		}
		history = append(history, row)
	}
	return history, nil
}

func (s *testDefinitionService) Archive(ctx context.Context, testID, userID string) error {
	if err := s.testDefRepo.Archive(ctx, testID, userID); err != nil {
		return fmt.Errorf("archive test definition %s: %w", testID, err)
	}
	log.Info().Str("testID", testID).Msg("Test definition archived")
	return nil
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func emptyMapIfNil(v map[string]string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v
}
