package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hqanh/qbank/internal/apperr"
	"github.com/hqanh/qbank/internal/dto"
)

// respondServiceError maps the error taxonomy onto HTTP statuses. Conflict
// errors (closed attempt, lost race, tutor lock) are fatal to the calling
// operation: the session layer must block further interaction and reload
// authoritative state rather than trust its local cache.
func respondServiceError(ctx *gin.Context, err error, fallback string) {
	switch {
	case apperr.IsNotFound(err):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
	case apperr.IsConflict(err):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: fallback, Details: []string{err.Error()}})
	}
}
