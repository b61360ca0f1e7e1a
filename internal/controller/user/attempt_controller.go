package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hqanh/qbank/internal/dto"
	"github.com/hqanh/qbank/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	attemptService service.AttemptService
}

func NewAttemptController(attemptService service.AttemptService) *AttemptController {
	return &AttemptController{attemptService: attemptService}
}

// OpenAttempt godoc
// @Summary Open or get the attempt for a test
// @Description Returns the single open attempt for a test definition, creating and seeding one if none exists. Idempotent.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param test_id path string true "Test ID"
// @Param body body dto.OpenAttemptDTO true "User scope"
// @Success 200 {object} dto.AttemptDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests/{test_id}/attempts [post]
func (c *AttemptController) OpenAttempt(ctx *gin.Context) {
	testID := ctx.Param("test_id")

	var req dto.OpenAttemptDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("OpenAttempt: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	attempt, err := c.attemptService.OpenOrGetAttempt(ctx.Request.Context(), testID, req.UserID)
	if err != nil {
		log.Error().Err(err).Str("testID", testID).Msg("OpenAttempt: Service error")
		respondServiceError(ctx, err, "Failed to open attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetAttempt godoc
// @Summary Get an attempt
// @Description Authoritative attempt state, including the frozen question snapshot and all answer rows. Finished attempts stay reviewable regardless of current catalog publication state.
// @Tags Attempts
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Success 200 {object} dto.AttemptDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")

	attempt, err := c.attemptService.GetAttempt(ctx.Request.Context(), attemptID)
	if err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Msg("GetAttempt: Service error")
		respondServiceError(ctx, err, "Failed to load attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// RecordAnswer godoc
// @Summary Record an answer
// @Description Synchronous confirmable write of one selection. Correctness is recomputed against the frozen correct option. Tutor mode locks a submitted selection.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param question_id path string true "Question ID"
// @Param answer body dto.RecordAnswerDTO true "Selected option (null clears)"
// @Success 200 {object} dto.AnswerDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Attempt or question not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt finished or answer locked"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id}/answers/{question_id} [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")
	questionID := ctx.Param("question_id")

	var req dto.RecordAnswerDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("RecordAnswer: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	answer, err := c.attemptService.RecordAnswer(ctx.Request.Context(), attemptID, questionID, req.Selected)
	if err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Str("questionID", questionID).Msg("RecordAnswer: Service error")
		respondServiceError(ctx, err, "Failed to record answer")
		return
	}
	ctx.JSON(http.StatusOK, answer)
}

// RecordFlag godoc
// @Summary Flag or unflag a question
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param question_id path string true "Question ID"
// @Param flag body dto.RecordFlagDTO true "Flag state"
// @Success 200 {object} dto.AnswerDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Attempt or question not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already finished"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id}/flags/{question_id} [put]
func (c *AttemptController) RecordFlag(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")
	questionID := ctx.Param("question_id")

	var req dto.RecordFlagDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("RecordFlag: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	answer, err := c.attemptService.RecordFlag(ctx.Request.Context(), attemptID, questionID, req.Flagged)
	if err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Str("questionID", questionID).Msg("RecordFlag: Service error")
		respondServiceError(ctx, err, "Failed to record flag")
		return
	}
	ctx.JSON(http.StatusOK, answer)
}

// SuspendAttempt godoc
// @Summary Snapshot-suspend an attempt
// @Description Bulk-overwrites bookkeeping and every answer row in one transaction so the session can resume with exact fidelity. Hard-fails on a finished attempt.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param snapshot body dto.AttemptSnapshotDTO true "Suspend snapshot"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already finished"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id}/suspend [post]
func (c *AttemptController) SuspendAttempt(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")

	var req dto.AttemptSnapshotDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("SuspendAttempt: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := c.attemptService.SnapshotSuspend(ctx.Request.Context(), attemptID, req); err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Msg("SuspendAttempt: Service error")
		respondServiceError(ctx, err, "Failed to suspend attempt")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// FinishAttempt godoc
// @Summary Finalize an attempt
// @Description Applies the final snapshot, closes the attempt exactly once and recomputes question progress. Idempotent: a repeat call returns the stored result. Timed-mode auto-submits reuse this path.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param snapshot body dto.AttemptSnapshotDTO true "Final snapshot"
// @Success 200 {object} dto.AttemptSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id}/finish [post]
func (c *AttemptController) FinishAttempt(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")

	var req dto.AttemptSnapshotDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("FinishAttempt: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	summary, err := c.attemptService.Finish(ctx.Request.Context(), attemptID, req)
	if err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Msg("FinishAttempt: Service error")
		respondServiceError(ctx, err, "Failed to finish attempt")
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// LoadSession godoc
// @Summary Load the session mirror
// @Description Returns the cached session state for a resuming client. A cache miss rebuilds the mirror from the authoritative attempt row.
// @Tags Attempts
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Success 200 {object} dto.SessionStateDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id}/session [get]
func (c *AttemptController) LoadSession(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")

	state, err := c.attemptService.LoadSession(ctx.Request.Context(), attemptID)
	if err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Msg("LoadSession: Service error")
		respondServiceError(ctx, err, "Failed to load session state")
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// MirrorProgress godoc
// @Summary Mirror UI progress
// @Description Optimistic heartbeat of current index, elapsed time and per-question durations into the session cache. Never affects scoring.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param progress body dto.MirrorProgressDTO true "UI progress"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /attempts/{attempt_id}/progress [put]
func (c *AttemptController) MirrorProgress(ctx *gin.Context) {
	attemptID := ctx.Param("attempt_id")

	var req dto.MirrorProgressDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("MirrorProgress: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := c.attemptService.MirrorProgress(ctx.Request.Context(), attemptID, req.CurrentIndex, req.ElapsedSeconds, req.PerQuestionSeconds); err != nil {
		log.Error().Err(err).Str("attemptID", attemptID).Msg("MirrorProgress: Cache error")
		respondServiceError(ctx, err, "Failed to mirror progress")
		return
	}
	ctx.Status(http.StatusNoContent)
}
