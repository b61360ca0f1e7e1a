package service

import (
	"context"
	"testing"

	"github.com/hqanh/qbank/internal/apperr"
	"github.com/hqanh/qbank/internal/dto"
	"github.com/hqanh/qbank/internal/model"
	"github.com/stretchr/testify/require"
)

func seedThreeQuestionTest(t *testing.T, env *testEnv, testID, mode string) {
	t.Helper()
	env.seedQuestion(t, "q1", "A", "Biochemistry", "Cardiovascular")
	env.seedQuestion(t, "q2", "B", "Pharmacology", "Renal")
	env.seedQuestion(t, "q3", "C", "Pathology", "Pulmonary")
	env.createTest(t, testID, mode, "q1", "q2", "q3")
}

func TestOpenOrGetAttemptIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	first, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, []string{"q1", "q2", "q3"}, first.QuestionIDs)
	require.Len(t, first.Questions, 3)
	require.Len(t, first.Answers, 3)
	for _, ans := range first.Answers {
		require.Nil(t, ans.Selected)
		require.Nil(t, ans.IsCorrect)
	}

	second, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestOpenAttemptUnknownTest(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.attempts.OpenOrGetAttempt(context.Background(), "missing", testUser)
	require.ErrorIs(t, err, apperr.ErrTestNotFound)
}

func TestOnlyOneOpenAttemptPerTest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	first, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	// A raw second insert for the same test must be rejected by the partial
	// unique index while the first attempt is still open.
	def, err := env.testDefRepo.FindByIDAndUser(ctx, "test-1", testUser)
	require.NoError(t, err)
	dup, err := env.attempts.(*attemptService).buildSeededAttempt(ctx, def)
	require.NoError(t, err)
	require.Error(t, env.attemptRepo.Create(ctx, nil, dup))

	// The service resolves the same situation by returning the winner.
	again, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
}

func TestAttemptSnapshotFreezesQuestionContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	// Catalog edits after the attempt opened must not leak into it.
	require.NoError(t, env.db.Model(&model.Question{}).Where("id = ?", "q1").
		Updates(map[string]interface{}{"stem": "rewritten", "correct_option": "B", "published": false}).Error)

	loaded, err := env.attempts.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, "Stem of q1", loaded.Questions[0].Stem)

	// Grading runs against the frozen correct option, not the edited one.
	ans, err := env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)
	require.NotNil(t, ans.IsCorrect)
	require.True(t, *ans.IsCorrect)
}

func TestRecordAnswerRecomputesCorrectness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	right, err := env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)
	require.NotNil(t, right.IsCorrect)
	require.True(t, *right.IsCorrect)

	wrong, err := env.attempts.RecordAnswer(ctx, attempt.ID, "q2", strptr("A"))
	require.NoError(t, err)
	require.NotNil(t, wrong.IsCorrect)
	require.False(t, *wrong.IsCorrect)

	// Confirmed writes reach the session mirror.
	state, err := env.mirror.Load(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, strptr("A"), state.Answers["q1"])
	require.Contains(t, state.LockedAnswers, "q1")
}

func TestRecordAnswerTutorLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)

	// Changing a submitted selection is rejected.
	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("B"))
	require.ErrorIs(t, err, apperr.ErrAnswerLocked)
	require.True(t, apperr.IsConflict(err))

	// Clearing it is rejected too.
	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", nil)
	require.ErrorIs(t, err, apperr.ErrAnswerLocked)

	// An identical resubmit is an idempotent retry, not a conflict.
	again, err := env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)
	require.Equal(t, strptr("A"), again.Selected)
}

func TestRecordAnswerTimedMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTimed)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.Equal(t, 3*90, attempt.TimeLimitSeconds)

	// No correctness feedback mid-block.
	ans, err := env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)
	require.Nil(t, ans.IsCorrect)

	// The durable row is still graded.
	row, err := env.answerRepo.FindByAttemptAndQuestion(ctx, nil, attempt.ID, "q1")
	require.NoError(t, err)
	require.NotNil(t, row.IsCorrect)
	require.True(t, *row.IsCorrect)

	// Timed mode allows changing and clearing a selection.
	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("B"))
	require.NoError(t, err)
	cleared, err := env.attempts.RecordAnswer(ctx, attempt.ID, "q1", nil)
	require.NoError(t, err)
	require.Nil(t, cleared.Selected)

	row, err = env.answerRepo.FindByAttemptAndQuestion(ctx, nil, attempt.ID, "q1")
	require.NoError(t, err)
	require.Nil(t, row.Selected)
	require.Nil(t, row.IsCorrect)
}

func TestRecordAnswerUnknownQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q99", strptr("A"))
	require.ErrorIs(t, err, apperr.ErrQuestionNotInAttempt)
}

func TestRecordFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	flagged, err := env.attempts.RecordFlag(ctx, attempt.ID, "q2", true)
	require.NoError(t, err)
	require.True(t, flagged.Flagged)

	state, err := env.mirror.Load(ctx, attempt.ID)
	require.NoError(t, err)
	require.True(t, state.Flags["q2"])

	unflagged, err := env.attempts.RecordFlag(ctx, attempt.ID, "q2", false)
	require.NoError(t, err)
	require.False(t, unflagged.Flagged)
}

func TestFinishScoresAndRecomputesProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	// Q1 answered correctly, Q2 answered incorrectly, Q3 left unanswered.
	summary, err := env.attempts.Finish(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{
			"q1": strptr("A"),
			"q2": strptr("A"),
		},
		Flags:          map[string]bool{"q2": true},
		TimeSpent:      map[string]int{"q1": 40, "q2": 65},
		MarkedIDs:      []string{"q3"},
		ElapsedSeconds: 120,
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalQuestions)
	require.Equal(t, 1, summary.Correct)
	require.Equal(t, 1, summary.Incorrect)
	require.Equal(t, 1, summary.Omitted)
	require.Equal(t, 1, summary.Flagged)
	require.Equal(t, 33, summary.Percentage)
	require.NotNil(t, summary.FinishedAt)
	require.Len(t, summary.PerQuestionBreakdown, 3)

	// Progress moved in lockstep with the close.
	p1, err := env.progressRepo.Find(ctx, nil, testUser, testProduct, "q1")
	require.NoError(t, err)
	require.Equal(t, model.StatusCorrect, p1.Status)
	require.Equal(t, strptr("A"), p1.LastAnswer)
	require.Equal(t, 1, p1.TotalAttempts)
	require.Equal(t, 40, p1.TimeSpentSec)

	p2, err := env.progressRepo.Find(ctx, nil, testUser, testProduct, "q2")
	require.NoError(t, err)
	require.Equal(t, model.StatusIncorrect, p2.Status)

	p3, err := env.progressRepo.Find(ctx, nil, testUser, testProduct, "q3")
	require.NoError(t, err)
	require.Equal(t, model.StatusOmitted, p3.Status)
	require.Nil(t, p3.LastAnswer)
	require.True(t, p3.Marked)

	// Finish tears the mirror down.
	state, err := env.mirror.Load(ctx, attempt.ID)
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestFinishIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	first, err := env.attempts.Finish(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{"q1": strptr("A")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Correct)

	// A late double-submit with a different payload returns the stored
	// result and rewrites nothing.
	second, err := env.attempts.Finish(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{
			"q1": strptr("C"),
			"q2": strptr("B"),
			"q3": strptr("C"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, first.Correct, second.Correct)
	require.Equal(t, first.Omitted, second.Omitted)
	require.Equal(t, first.FinishedAt.Unix(), second.FinishedAt.Unix())

	row, err := env.answerRepo.FindByAttemptAndQuestion(ctx, nil, attempt.ID, "q1")
	require.NoError(t, err)
	require.Equal(t, strptr("A"), row.Selected)

	p1, err := env.progressRepo.Find(ctx, nil, testUser, testProduct, "q1")
	require.NoError(t, err)
	require.Equal(t, 1, p1.TotalAttempts)
}

func TestFinishUnknownAttempt(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.attempts.Finish(context.Background(), "nope", dto.AttemptSnapshotDTO{})
	require.ErrorIs(t, err, apperr.ErrAttemptNotFound)
}

func TestClosedAttemptRejectsMutations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	_, err = env.attempts.Finish(ctx, attempt.ID, dto.AttemptSnapshotDTO{})
	require.NoError(t, err)

	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.ErrorIs(t, err, apperr.ErrAttemptAlreadyFinished)

	_, err = env.attempts.RecordFlag(ctx, attempt.ID, "q1", true)
	require.ErrorIs(t, err, apperr.ErrAttemptAlreadyFinished)

	err = env.attempts.SnapshotSuspend(ctx, attempt.ID, dto.AttemptSnapshotDTO{})
	require.ErrorIs(t, err, apperr.ErrRaceLost)
	require.True(t, apperr.IsConflict(err))
}

func TestSuspendResumeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	// Two answers in, then the session suspends with a full snapshot.
	err = env.attempts.SnapshotSuspend(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{
			"q1": strptr("A"),
			"q2": strptr("B"),
		},
		Flags:          map[string]bool{"q1": true},
		TimeSpent:      map[string]int{"q1": 30, "q2": 45},
		MarkedIDs:      []string{"q1"},
		ElapsedSeconds: 75,
	})
	require.NoError(t, err)

	// Resuming returns the same attempt with every answer intact.
	resumed, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.Equal(t, attempt.ID, resumed.ID)
	require.Equal(t, 75, resumed.ElapsedSeconds)
	require.Equal(t, []string{"q1"}, resumed.MarkedIDs)

	byQuestion := map[string]dto.AnswerDTO{}
	for _, ans := range resumed.Answers {
		byQuestion[ans.QuestionID] = ans
	}
	require.Equal(t, strptr("A"), byQuestion["q1"].Selected)
	require.True(t, byQuestion["q1"].Flagged)
	require.Equal(t, strptr("B"), byQuestion["q2"].Selected)
	require.Nil(t, byQuestion["q3"].Selected)

	// Finish the resumed session with all three correct.
	summary, err := env.attempts.Finish(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{
			"q1": strptr("A"),
			"q2": strptr("B"),
			"q3": strptr("C"),
		},
		TimeSpent:      map[string]int{"q1": 30, "q2": 45, "q3": 20},
		ElapsedSeconds: 95,
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Correct)
	require.Equal(t, 100, summary.Percentage)
}

func TestRetakeOpensFreshAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	first, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	_, err = env.attempts.Finish(ctx, first.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{"q1": strptr("A")},
	})
	require.NoError(t, err)

	retake, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, retake.ID)
	for _, ans := range retake.Answers {
		require.Nil(t, ans.Selected)
	}
}

func TestProgressRatchetAcrossAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	first, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	_, err = env.attempts.Finish(ctx, first.ID, dto.AttemptSnapshotDTO{
		Answers:   map[string]*string{"q1": strptr("A")},
		TimeSpent: map[string]int{"q1": 25},
	})
	require.NoError(t, err)

	// Retake with q1 left unanswered: the earned status survives.
	retake, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	_, err = env.attempts.Finish(ctx, retake.ID, dto.AttemptSnapshotDTO{
		Answers:   map[string]*string{"q2": strptr("C")},
		TimeSpent: map[string]int{"q1": 5},
	})
	require.NoError(t, err)

	p1, err := env.progressRepo.Find(ctx, nil, testUser, testProduct, "q1")
	require.NoError(t, err)
	require.Equal(t, model.StatusCorrect, p1.Status)
	require.Equal(t, 2, p1.TotalAttempts)
	require.Equal(t, 30, p1.TimeSpentSec)

	// Answering again does move the status.
	p2, err := env.progressRepo.Find(ctx, nil, testUser, testProduct, "q2")
	require.NoError(t, err)
	require.Equal(t, model.StatusIncorrect, p2.Status)
	require.Equal(t, strptr("C"), p2.LastAnswer)
}

func TestLoadSessionServesAndRebuildsMirror(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)

	// The durable position persisted by the session survives a reload:
	// resync builds the mirror from the definition's bookkeeping, not from
	// zero values.
	_, err = env.tests.CreateOrUpdate(ctx, dto.TestCreateOrUpdateDTO{
		TestID:       "test-1",
		UserID:       testUser,
		ProductID:    testProduct,
		Mode:         model.ModeTutor,
		QuestionIDs:  []string{"q1", "q2", "q3"},
		CurrentIndex: 2,
	})
	require.NoError(t, err)

	reopened, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	require.Equal(t, attempt.ID, reopened.ID)

	state, err := env.attempts.LoadSession(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 2, state.CurrentIndex)
	require.Equal(t, strptr("A"), state.Answers["q1"])
	require.Contains(t, state.LockedAnswers, "q1")

	// The optimistic heartbeat is what a live session reads back.
	require.NoError(t, env.attempts.MirrorProgress(ctx, attempt.ID, 5, 300, nil))
	state, err = env.attempts.LoadSession(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 5, state.CurrentIndex)

	// A lost mirror is rebuilt from the authoritative rows and restored.
	require.NoError(t, env.mirror.Invalidate(ctx, attempt.ID))
	state, err = env.attempts.LoadSession(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 2, state.CurrentIndex)
	require.Equal(t, strptr("A"), state.Answers["q1"])
	require.Len(t, state.Answers, 3)

	cached, err := env.mirror.Load(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
}

func TestLoadSessionUnknownAttempt(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.attempts.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrAttemptNotFound)
}

func TestTimedAttemptHidesCorrectnessUntilFinished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTimed)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)
	_, err = env.attempts.RecordAnswer(ctx, attempt.ID, "q1", strptr("A"))
	require.NoError(t, err)

	// Reads of the open block leak no grading either.
	loaded, err := env.attempts.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	for _, ans := range loaded.Answers {
		require.Nil(t, ans.IsCorrect)
	}

	_, err = env.attempts.Finish(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{"q1": strptr("A")},
	})
	require.NoError(t, err)

	// Once the block is over the review shows the grading.
	finished, err := env.attempts.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	byQuestion := map[string]dto.AnswerDTO{}
	for _, ans := range finished.Answers {
		byQuestion[ans.QuestionID] = ans
	}
	require.NotNil(t, byQuestion["q1"].IsCorrect)
	require.True(t, *byQuestion["q1"].IsCorrect)
}

func TestSuspendResyncKeepsTutorLocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	err = env.attempts.SnapshotSuspend(ctx, attempt.ID, dto.AttemptSnapshotDTO{
		Answers: map[string]*string{"q1": strptr("A")},
	})
	require.NoError(t, err)

	// The post-suspend mirror keeps the lock list; a resuming client must
	// not think a submitted tutor answer is still editable.
	state, err := env.mirror.Load(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Contains(t, state.LockedAnswers, "q1")
	require.Equal(t, strptr("A"), state.Answers["q1"])
}

func TestMirrorProgressIsUIOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedThreeQuestionTest(t, env, "test-1", model.ModeTutor)

	attempt, err := env.attempts.OpenOrGetAttempt(ctx, "test-1", testUser)
	require.NoError(t, err)

	require.NoError(t, env.attempts.MirrorProgress(ctx, attempt.ID, 2, 140, map[string]int{"q1": 60}))

	state, err := env.mirror.Load(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 2, state.CurrentIndex)
	require.Equal(t, 140, state.ElapsedSeconds)

	// The heartbeat never touches the durable attempt row.
	row, err := env.attemptRepo.FindByID(ctx, nil, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 0, row.ElapsedSeconds)
}
