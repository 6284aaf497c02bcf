package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/qaboard/middleware"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
	"github.com/cppla/qaboard/votes"
)

// cache key prefixes shared by question/answer mutations.
const (
	questionListCachePrefix = "cache:questions:list:"
	statsCacheKey           = "cache:stats"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// respondCoreError maps the engine's typed outcomes onto the response
// envelope. Unknown errors are a 500 with the given fallback code.
func respondCoreError(ctx *gin.Context, err error, fallbackCode int, fallbackMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "target not found")
	case errors.Is(err, store.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40910, "concurrent update contention, retry")
	case errors.Is(err, votes.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	case errors.Is(err, votes.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40020, "missing required field")
	default:
		utils.Error(ctx, http.StatusInternalServerError, fallbackCode, fallbackMsg)
	}
}
