package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hqanh/qbank/internal/dto"
	"github.com/hqanh/qbank/internal/service"
	"github.com/rs/zerolog/log"
)

type TestController struct {
	testDefService service.TestDefinitionService
	poolService    service.PoolService
}

func NewTestController(testDefService service.TestDefinitionService, poolService service.PoolService) *TestController {
	return &TestController{
		testDefService: testDefService,
		poolService:    poolService,
	}
}

// CreateOrUpdateTest godoc
// @Summary Create or update a test definition
// @Description Find-or-update by (test_id, user_id). First creation also opens the linked attempt.
// @Tags Tests
// @Accept json
// @Produce json
// @Param test body dto.TestCreateOrUpdateDTO true "Test definition payload"
// @Success 200 {object} dto.TestCreateOrUpdateResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [post]
func (c *TestController) CreateOrUpdateTest(ctx *gin.Context) {
	var req dto.TestCreateOrUpdateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("CreateOrUpdateTest: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.testDefService.CreateOrUpdate(ctx.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("testID", req.TestID).Msg("CreateOrUpdateTest: Service error")
		respondServiceError(ctx, err, "Failed to persist test definition")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SuspendTest godoc
// @Summary Suspend a test definition
// @Description Persists UI bookkeeping and marks the definition suspended. Does not close the linked attempt.
// @Tags Tests
// @Accept json
// @Produce json
// @Param test_id path string true "Test ID"
// @Param bookkeeping body dto.TestSuspendDTO true "Bookkeeping fields"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests/{test_id}/suspend [post]
func (c *TestController) SuspendTest(ctx *gin.Context) {
	testID := ctx.Param("test_id")

	var req dto.TestSuspendDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("SuspendTest: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := c.testDefService.Suspend(ctx.Request.Context(), testID, req); err != nil {
		log.Error().Err(err).Str("testID", testID).Msg("SuspendTest: Service error")
		respondServiceError(ctx, err, "Failed to suspend test")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ListTests godoc
// @Summary List test history for a user
// @Description Newest-first test definitions joined with latest finished-attempt aggregate stats.
// @Tags Tests
// @Produce json
// @Param user_id query string true "User ID"
// @Param product_id query string true "Product ID"
// @Success 200 {array} dto.TestHistoryDTO
// @Failure 400 {object} dto.ErrorResponse "Missing user_id or product_id"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	userID := ctx.Query("user_id")
	productID := ctx.Query("product_id")
	if userID == "" || productID == "" {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "user_id and product_id query params are required"})
		return
	}

	history, err := c.testDefService.ListForUser(ctx.Request.Context(), userID, productID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("ListTests: Service error")
		respondServiceError(ctx, err, "Failed to list tests")
		return
	}
	ctx.JSON(http.StatusOK, history)
}

// ArchiveTest godoc
// @Summary Archive a test definition
// @Description User-initiated history purge; archives (soft-deletes), never hard-deletes.
// @Tags Tests
// @Produce json
// @Param test_id path string true "Test ID"
// @Param user_id query string true "User ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Missing user_id"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests/{test_id} [delete]
func (c *TestController) ArchiveTest(ctx *gin.Context) {
	testID := ctx.Param("test_id")
	userID := ctx.Query("user_id")
	if userID == "" {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "user_id query param is required"})
		return
	}

	if err := c.testDefService.Archive(ctx.Request.Context(), testID, userID); err != nil {
		log.Error().Err(err).Str("testID", testID).Msg("ArchiveTest: Service error")
		respondServiceError(ctx, err, "Failed to archive test")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ResolvePool godoc
// @Summary Resolve the eligible question pool
// @Description Joins published questions against the user's usage state and applies subject/system/usage filters. Deterministic; random selection is the caller's job.
// @Tags Pool
// @Accept json
// @Produce json
// @Param filters body dto.PoolResolveDTO true "Pool filters"
// @Success 200 {object} dto.PoolResolveResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /pool/resolve [post]
func (c *TestController) ResolvePool(ctx *gin.Context) {
	var req dto.PoolResolveDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("ResolvePool: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.poolService.ResolveEligiblePool(ctx.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("userID", req.UserID).Msg("ResolvePool: Service error")
		respondServiceError(ctx, err, "Failed to resolve pool")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
