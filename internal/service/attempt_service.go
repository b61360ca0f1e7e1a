package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hqanh/qbank/internal/apperr"
	"github.com/hqanh/qbank/internal/cache"
	"github.com/hqanh/qbank/internal/dto"
	"github.com/hqanh/qbank/internal/model"
	"github.com/hqanh/qbank/internal/repository"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptService owns the attempt state machine: lazy idempotent creation
// from a test definition, per-answer/per-flag persistence, suspend
// snapshotting, idempotent finalization, and the progress recompute that
// finalization triggers.
type AttemptService interface {
	OpenOrGetAttempt(ctx context.Context, testDefinitionID, userID string) (*dto.AttemptDTO, error)
	GetAttempt(ctx context.Context, attemptID string) (*dto.AttemptDTO, error)
	RecordAnswer(ctx context.Context, attemptID, questionID string, selected *string) (*dto.AnswerDTO, error)
	RecordFlag(ctx context.Context, attemptID, questionID string, flagged bool) (*dto.AnswerDTO, error)
	SnapshotSuspend(ctx context.Context, attemptID string, snap dto.AttemptSnapshotDTO) error
	Finish(ctx context.Context, attemptID string, snap dto.AttemptSnapshotDTO) (*dto.AttemptSummaryDTO, error)
	MirrorProgress(ctx context.Context, attemptID string, currentIndex, elapsedSeconds int, perQuestionSeconds map[string]int) error
	LoadSession(ctx context.Context, attemptID string) (*dto.SessionStateDTO, error)
}

type attemptService struct {
	testDefRepo        repository.TestDefinitionRepository
	attemptRepo        repository.AttemptRepository
	answerRepo         repository.AnswerRepository
	questionRepo       repository.QuestionRepository
	progressService    ProgressService
	mirror             cache.SessionMirror
	secondsPerQuestion int
	db                 *gorm.DB
}

func NewAttemptService(
	testDefRepo repository.TestDefinitionRepository,
	attemptRepo repository.AttemptRepository,
	answerRepo repository.AnswerRepository,
	questionRepo repository.QuestionRepository,
	progressService ProgressService,
	mirror cache.SessionMirror,
	secondsPerQuestion int,
	db *gorm.DB,
) AttemptService {
	return &attemptService{
		testDefRepo:        testDefRepo,
		attemptRepo:        attemptRepo,
		answerRepo:         answerRepo,
		questionRepo:       questionRepo,
		progressService:    progressService,
		mirror:             mirror,
		secondsPerQuestion: secondsPerQuestion,
		db:                 db,
	}
}

// OpenOrGetAttempt returns the open attempt for a test definition,
// creating and seeding one if none exists. Idempotent under concurrent
// calls: the partial unique index on open attempts makes the loser of a
// create race fall back to re-reading the winner's row.
func (s *attemptService) OpenOrGetAttempt(ctx context.Context, testDefinitionID, userID string) (*dto.AttemptDTO, error) {
	def, err := s.testDefRepo.FindByIDAndUser(ctx, testDefinitionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrTestNotFound, testDefinitionID)
		}
		return nil, fmt.Errorf("load test definition %s: %w", testDefinitionID, err)
	}

	if existing, err := s.attemptRepo.FindOpenByTestDefinition(ctx, nil, def.ID); err == nil {
		return s.loadAttemptDTO(ctx, existing.ID, def)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find open attempt for test %s: %w", def.ID, err)
	}

	attempt, err := s.buildSeededAttempt(ctx, def)
	if err != nil {
		return nil, err
	}

	if err := s.attemptRepo.Create(ctx, nil, attempt); err != nil {
		// Lost the create race: the unique "one open attempt per test"
		// index rejected us, so the winner's row must exist now.
		winner, findErr := s.attemptRepo.FindOpenByTestDefinition(ctx, nil, def.ID)
		if findErr != nil {
			return nil, fmt.Errorf("create attempt for test %s: %w", def.ID, err)
		}
		log.Info().Str("testID", def.ID).Str("attemptID", winner.ID).Msg("OpenOrGetAttempt: lost create race, returning existing open attempt")
		return s.loadAttemptDTO(ctx, winner.ID, def)
	}

	log.Info().Str("testID", def.ID).Str("attemptID", attempt.ID).Int("questions", len(attempt.QuestionIDs)).Msg("Opened new attempt")
	return s.loadAttemptDTO(ctx, attempt.ID, def)
}

// buildSeededAttempt freezes the catalog content and seeds one null answer
// row per question, copying each question's correct option so later
// catalog edits cannot retroactively change history.
func (s *attemptService) buildSeededAttempt(ctx context.Context, def *model.TestDefinition) (*model.Attempt, error) {
	questions, err := s.questionRepo.FindByIDs(ctx, def.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions for test %s: %w", def.ID, err)
	}
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	attempt := &model.Attempt{
		ID:               uuid.NewString(),
		TestDefinitionID: def.ID,
		UserID:           def.UserID,
		ProductID:        def.ProductID,
		StartedAt:        time.Now().UTC(),
		QuestionIDs:      datatypes.NewJSONSlice(append([]string(nil), def.QuestionIDs...)),
		MarkedIDs:        datatypes.NewJSONSlice([]string{}),
		TimeSpent:        datatypes.NewJSONType(map[string]int{}),
	}

	snapshot := make([]model.QuestionSnapshot, 0, len(def.QuestionIDs))
	for _, qid := range def.QuestionIDs {
		q, ok := byID[qid]
		if !ok {
			return nil, fmt.Errorf("question %s of test %s not found in catalog", qid, def.ID)
		}
		snapshot = append(snapshot, model.QuestionSnapshot{
			ID:            q.ID,
			Stem:          q.Stem,
			Choices:       q.Choices,
			CorrectOption: q.CorrectOption,
			Subject:       q.Subject,
			System:        q.System,
			Topic:         q.Topic,
		})
		attempt.Answers = append(attempt.Answers, model.Answer{
			QuestionID:    q.ID,
			CorrectOption: q.CorrectOption,
		})
	}
	attempt.Snapshot = datatypes.NewJSONSlice(snapshot)
	return attempt, nil
}

func (s *attemptService) GetAttempt(ctx context.Context, attemptID string) (*dto.AttemptDTO, error) {
	attempt, err := s.attemptRepo.FindByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAttemptNotFound, attemptID)
		}
		return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	def, err := s.testDefRepo.FindByIDAndUser(ctx, attempt.TestDefinitionID, attempt.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load test definition %s: %w", attempt.TestDefinitionID, err)
	}
	return s.buildAttemptDTO(attempt, def), nil
}

// RecordAnswer is the unit of real-time persistence: a synchronous,
// confirmable write. The session mirror is updated only after the durable
// write succeeds, which is what prevents phantom answers.
func (s *attemptService) RecordAnswer(ctx context.Context, attemptID, questionID string, selected *string) (*dto.AnswerDTO, error) {
	var (
		answer *model.Answer
		mode   string
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		attempt, guardErr := s.guardOpen(ctx, tx, attemptID)
		if guardErr != nil {
			return guardErr
		}

		def, err := s.testDefRepo.FindByIDAndUser(ctx, attempt.TestDefinitionID, attempt.UserID)
		if err != nil {
			return fmt.Errorf("load test definition %s: %w", attempt.TestDefinitionID, err)
		}
		mode = def.Mode

		ans, err := s.answerRepo.FindByAttemptAndQuestion(ctx, tx, attemptID, questionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", apperr.ErrQuestionNotInAttempt, questionID)
			}
			return fmt.Errorf("load answer row: %w", err)
		}

		if mode == model.ModeTutor && ans.Selected != nil {
			// Tutor mode: a submitted selection is immutable. Identical
			// re-submits are treated as idempotent retries.
			if selected != nil && *selected == *ans.Selected {
				answer = ans
				return nil
			}
			return fmt.Errorf("%w: question %s", apperr.ErrAnswerLocked, questionID)
		}

		ans.Selected = selected
		ans.Recompute()
		if err := s.answerRepo.Save(ctx, tx, ans); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		answer = ans
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Durable write confirmed; now the mirror may learn about it.
	locked := mode == model.ModeTutor && answer.Selected != nil
	if mirrorErr := s.mirror.ConfirmAnswer(ctx, attemptID, questionID, answer.Selected, locked); mirrorErr != nil {
		log.Warn().Err(mirrorErr).Str("attemptID", attemptID).Msg("Failed to mirror confirmed answer")
	}

	out := answerToDTO(*answer)
	if mode == model.ModeTimed {
		// No feedback mid-block in timed mode.
		out.IsCorrect = nil
	}
	return &out, nil
}

func (s *attemptService) RecordFlag(ctx context.Context, attemptID, questionID string, flagged bool) (*dto.AnswerDTO, error) {
	var answer *model.Answer

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, guardErr := s.guardOpen(ctx, tx, attemptID); guardErr != nil {
			return guardErr
		}

		ans, err := s.answerRepo.FindByAttemptAndQuestion(ctx, tx, attemptID, questionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", apperr.ErrQuestionNotInAttempt, questionID)
			}
			return fmt.Errorf("load answer row: %w", err)
		}

		ans.Flagged = flagged
		if err := s.answerRepo.Save(ctx, tx, ans); err != nil {
			return fmt.Errorf("save flag: %w", err)
		}
		answer = ans
		return nil
	})
	if err != nil {
		return nil, err
	}

	if mirrorErr := s.mirror.ConfirmFlag(ctx, attemptID, questionID, flagged); mirrorErr != nil {
		log.Warn().Err(mirrorErr).Str("attemptID", attemptID).Msg("Failed to mirror confirmed flag")
	}

	out := answerToDTO(*answer)
	return &out, nil
}

// guardOpen verifies the attempt exists and is still open, taking the row
// lock that serializes this transaction against a concurrent finish.
func (s *attemptService) guardOpen(ctx context.Context, tx *gorm.DB, attemptID string) (*model.Attempt, error) {
	rows, err := s.attemptRepo.TouchIfOpen(ctx, tx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("guard attempt %s: %w", attemptID, err)
	}
	if rows == 0 {
		if _, findErr := s.attemptRepo.FindByID(ctx, tx, attemptID); errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAttemptNotFound, attemptID)
		}
		return nil, fmt.Errorf("%w: %s", apperr.ErrAttemptAlreadyFinished, attemptID)
	}
	attempt, err := s.attemptRepo.FindByID(ctx, tx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	return attempt, nil
}

// SnapshotSuspend bulk-overwrites the attempt bookkeeping and every answer
// row in one transaction so a suspended session resumes with exact
// fidelity. It must never silently succeed on a closed attempt.
func (s *attemptService) SnapshotSuspend(ctx context.Context, attemptID string, snap dto.AttemptSnapshotDTO) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rows, err := s.attemptRepo.UpdateBookkeepingIfOpen(ctx, tx, attemptID, repository.AttemptBookkeeping{
			MarkedIDs:      snap.MarkedIDs,
			TimeSpent:      snap.TimeSpent,
			ElapsedSeconds: snap.ElapsedSeconds,
		})
		if err != nil {
			return fmt.Errorf("suspend snapshot for attempt %s: %w", attemptID, err)
		}
		if rows == 0 {
			if _, findErr := s.attemptRepo.FindByID(ctx, tx, attemptID); errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", apperr.ErrAttemptNotFound, attemptID)
			}
			return fmt.Errorf("%w: %s", apperr.ErrRaceLost, attemptID)
		}

		_, err = s.applySnapshotToAnswers(ctx, tx, attemptID, snap)
		return err
	})
	if err != nil {
		return err
	}

	// Rebuild the mirror from what was durably stored, tutor locks included.
	s.resyncMirrorFromStore(ctx, attemptID)

	log.Info().Str("attemptID", attemptID).Msg("Attempt suspended with snapshot")
	return nil
}

// Finish closes the attempt exactly once. A repeat call returns the stored
// result without rewriting anything, which makes late timed-mode
// auto-submits and double-submits safe.
func (s *attemptService) Finish(ctx context.Context, attemptID string, snap dto.AttemptSnapshotDTO) (*dto.AttemptSummaryDTO, error) {
	var (
		summary  *dto.AttemptSummaryDTO
		closedBy bool
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		rows, err := s.attemptRepo.CloseIfOpen(ctx, tx, attemptID, time.Now().UTC(), repository.AttemptBookkeeping{
			MarkedIDs:      snap.MarkedIDs,
			TimeSpent:      snap.TimeSpent,
			ElapsedSeconds: snap.ElapsedSeconds,
		})
		if err != nil {
			return fmt.Errorf("close attempt %s: %w", attemptID, err)
		}

		if rows == 0 {
			// Already finished: idempotent success from stored state.
			attempt, findErr := s.attemptRepo.FindByIDWithAnswers(ctx, tx, attemptID)
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", apperr.ErrAttemptNotFound, attemptID)
			}
			if findErr != nil {
				return fmt.Errorf("load finished attempt %s: %w", attemptID, findErr)
			}
			summary = buildSummary(attempt, attempt.Answers)
			return nil
		}

		closedBy = true
		answers, err := s.applySnapshotToAnswers(ctx, tx, attemptID, snap)
		if err != nil {
			return err
		}

		attempt, err := s.attemptRepo.FindByID(ctx, tx, attemptID)
		if err != nil {
			return fmt.Errorf("reload attempt %s: %w", attemptID, err)
		}

		// Progress recompute runs in the same transaction as the close:
		// either the attempt finishes and every progress row moves, or
		// neither happens.
		if err := s.progressService.ApplyFinishedAttempt(ctx, tx, attempt, answers); err != nil {
			return err
		}

		// A finished test is no longer a suspended one.
		if err := s.testDefRepo.ClearSuspension(ctx, tx, attempt.TestDefinitionID); err != nil {
			return fmt.Errorf("clear suspension for test %s: %w", attempt.TestDefinitionID, err)
		}

		summary = buildSummary(attempt, answers)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closedBy {
		if mirrorErr := s.mirror.Invalidate(ctx, attemptID); mirrorErr != nil {
			log.Warn().Err(mirrorErr).Str("attemptID", attemptID).Msg("Failed to invalidate session mirror after finish")
		}
		log.Info().Str("attemptID", attemptID).Int("correct", summary.Correct).Int("incorrect", summary.Incorrect).Int("omitted", summary.Omitted).Msg("Attempt finished")
	} else {
		log.Info().Str("attemptID", attemptID).Msg("Finish called on already-finished attempt, returning stored result")
	}
	return summary, nil
}

// MirrorProgress forwards UI-convenience state to the session cache. Pure
// convenience fields may be mirrored optimistically; a failure here is not
// an error the session has to stop for.
func (s *attemptService) MirrorProgress(ctx context.Context, attemptID string, currentIndex, elapsedSeconds int, perQuestionSeconds map[string]int) error {
	return s.mirror.MirrorProgress(ctx, attemptID, currentIndex, elapsedSeconds, perQuestionSeconds)
}

func (s *attemptService) applySnapshotToAnswers(ctx context.Context, tx *gorm.DB, attemptID string, snap dto.AttemptSnapshotDTO) ([]model.Answer, error) {
	answers, err := s.answerRepo.FindAllByAttempt(ctx, tx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load answers for attempt %s: %w", attemptID, err)
	}

	for i := range answers {
		ans := &answers[i]
		if selected, ok := snap.Answers[ans.QuestionID]; ok {
			ans.Selected = selected
		}
		// Correctness is always recomputed against the frozen correct
		// option, never carried over from a prior write.
		ans.Recompute()
		if flagged, ok := snap.Flags[ans.QuestionID]; ok {
			ans.Flagged = flagged
		}
		if sec, ok := snap.TimeSpent[ans.QuestionID]; ok {
			ans.TimeSpentSec = sec
		}
		if err := s.answerRepo.Save(ctx, tx, ans); err != nil {
			return nil, fmt.Errorf("apply snapshot to answer %s: %w", ans.QuestionID, err)
		}
	}
	return answers, nil
}

// LoadSession serves the session mirror to a resuming client. A cache miss
// (or a corrupt/errored mirror) falls back to rebuilding the mirror from
// the authoritative attempt row.
func (s *attemptService) LoadSession(ctx context.Context, attemptID string) (*dto.SessionStateDTO, error) {
	state, err := s.mirror.Load(ctx, attemptID)
	if err != nil {
		log.Warn().Err(err).Str("attemptID", attemptID).Msg("Session mirror read failed, rebuilding from store")
		state = nil
	}
	if state == nil {
		attempt, err := s.attemptRepo.FindByIDWithAnswers(ctx, nil, attemptID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAttemptNotFound, attemptID)
		}
		if err != nil {
			return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
		}
		def, err := s.testDefRepo.FindByIDAndUser(ctx, attempt.TestDefinitionID, attempt.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load test definition %s: %w", attempt.TestDefinitionID, err)
		}
		rebuilt := buildSessionState(attempt, def)
		if mirrorErr := s.mirror.Resync(ctx, attemptID, rebuilt); mirrorErr != nil {
			log.Warn().Err(mirrorErr).Str("attemptID", attemptID).Msg("Failed to resync session mirror on session load")
		}
		state = &rebuilt
	}

	return &dto.SessionStateDTO{
		CurrentIndex:       state.CurrentIndex,
		ElapsedSeconds:     state.ElapsedSeconds,
		PerQuestionSeconds: state.PerQuestionSeconds,
		Answers:            state.Answers,
		Flags:              state.Flags,
		LockedAnswers:      state.LockedAnswers,
		SyncedAt:           state.SyncedAt,
	}, nil
}

// buildSessionState derives the full mirror payload from the authoritative
// attempt row: answers, flags, tutor locks, and the durable bookkeeping
// position of the owning test definition.
func buildSessionState(attempt *model.Attempt, def *model.TestDefinition) cache.SessionState {
	answers := make(map[string]*string, len(attempt.Answers))
	flags := make(map[string]bool, len(attempt.Answers))
	var locked []string
	for _, ans := range attempt.Answers {
		answers[ans.QuestionID] = ans.Selected
		flags[ans.QuestionID] = ans.Flagged
		if def != nil && def.Mode == model.ModeTutor && ans.Selected != nil {
			locked = append(locked, ans.QuestionID)
		}
	}
	state := cache.SessionState{
		ElapsedSeconds:     attempt.ElapsedSeconds,
		PerQuestionSeconds: attempt.TimeSpent.Data(),
		Answers:            answers,
		Flags:              flags,
		LockedAnswers:      locked,
	}
	if def != nil {
		state.CurrentIndex = def.CurrentIndex
	}
	return state
}

// resyncMirrorFromStore rebuilds the mirror from the durable rows. Mirror
// failures are logged, never surfaced: the cache is disposable.
func (s *attemptService) resyncMirrorFromStore(ctx context.Context, attemptID string) {
	attempt, err := s.attemptRepo.FindByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		log.Warn().Err(err).Str("attemptID", attemptID).Msg("Failed to reload attempt for mirror resync")
		return
	}
	def, err := s.testDefRepo.FindByIDAndUser(ctx, attempt.TestDefinitionID, attempt.UserID)
	if err != nil {
		def = nil
	}
	if mirrorErr := s.mirror.Resync(ctx, attemptID, buildSessionState(attempt, def)); mirrorErr != nil {
		log.Warn().Err(mirrorErr).Str("attemptID", attemptID).Msg("Failed to resync session mirror")
	}
}

func (s *attemptService) loadAttemptDTO(ctx context.Context, attemptID string, def *model.TestDefinition) (*dto.AttemptDTO, error) {
	attempt, err := s.attemptRepo.FindByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	out := s.buildAttemptDTO(attempt, def)

	// The authoritative row is the resync source for the session mirror.
	if mirrorErr := s.mirror.Resync(ctx, attempt.ID, buildSessionState(attempt, def)); mirrorErr != nil {
		log.Warn().Err(mirrorErr).Str("attemptID", attempt.ID).Msg("Failed to resync session mirror on load")
	}
	return out, nil
}

func (s *attemptService) buildAttemptDTO(attempt *model.Attempt, def *model.TestDefinition) *dto.AttemptDTO {
	out := &dto.AttemptDTO{
		ID:               attempt.ID,
		TestDefinitionID: attempt.TestDefinitionID,
		UserID:           attempt.UserID,
		ProductID:        attempt.ProductID,
		StartedAt:        attempt.StartedAt,
		FinishedAt:       attempt.FinishedAt,
		QuestionIDs:      attempt.QuestionIDs,
		MarkedIDs:        attempt.MarkedIDs,
		TimeSpent:        attempt.TimeSpent.Data(),
		ElapsedSeconds:   attempt.ElapsedSeconds,
	}
	if def != nil {
		out.Mode = def.Mode
		out.TimeLimitSeconds = def.TimeLimitSeconds(s.secondsPerQuestion)
	}

	out.Questions = make([]dto.AttemptQuestionDTO, 0, len(attempt.Snapshot))
	for _, qs := range attempt.Snapshot {
		var q dto.AttemptQuestionDTO
		if err := copier.Copy(&q, &qs); err != nil {
			log.Error().Err(err).Str("questionID", qs.ID).Msg("Failed to copy question snapshot to DTO")
			continue
		}
		out.Questions = append(out.Questions, q)
	}

	// The timed-mode no-feedback rule holds for the whole open block, not
	// just for individual answer writes.
	hideCorrectness := def != nil && def.Mode == model.ModeTimed && !attempt.Finished()

	out.Answers = make([]dto.AnswerDTO, 0, len(attempt.Answers))
	for _, ans := range attempt.Answers {
		d := answerToDTO(ans)
		if hideCorrectness {
			d.IsCorrect = nil
		}
		out.Answers = append(out.Answers, d)
	}
	return out
}

func answerToDTO(ans model.Answer) dto.AnswerDTO {
	return dto.AnswerDTO{
		QuestionID:   ans.QuestionID,
		Selected:     ans.Selected,
		IsCorrect:    ans.IsCorrect,
		Flagged:      ans.Flagged,
		TimeSpentSec: ans.TimeSpentSec,
	}
}

func buildSummary(attempt *model.Attempt, answers []model.Answer) *dto.AttemptSummaryDTO {
	summary := &dto.AttemptSummaryDTO{
		AttemptID:      attempt.ID,
		TestID:         attempt.TestDefinitionID,
		TotalQuestions: len(answers),
		FinishedAt:     attempt.FinishedAt,
	}

	for _, ans := range answers {
		status := model.StatusOmitted
		switch {
		case ans.Selected == nil:
			summary.Omitted++
		case ans.IsCorrect != nil && *ans.IsCorrect:
			summary.Correct++
			status = model.StatusCorrect
		default:
			summary.Incorrect++
			status = model.StatusIncorrect
		}
		if ans.Flagged {
			summary.Flagged++
		}
		summary.PerQuestionBreakdown = append(summary.PerQuestionBreakdown, dto.QuestionResultDTO{
			QuestionID:    ans.QuestionID,
			Selected:      ans.Selected,
			CorrectOption: ans.CorrectOption,
			IsCorrect:     ans.IsCorrect,
			Status:        status,
			Flagged:       ans.Flagged,
			TimeSpentSec:  ans.TimeSpentSec,
		})
	}

	if summary.TotalQuestions > 0 {
		summary.Percentage = int(math.Round(float64(summary.Correct) * 100 / float64(summary.TotalQuestions)))
	}
	return summary
}
