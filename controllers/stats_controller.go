package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
)

// StatsController reports board-level aggregate counts.
type StatsController struct {
	store *store.Store
}

// NewStatsController creates a StatsController.
func NewStatsController(st *store.Store) *StatsController {
	return &StatsController{store: st}
}

// GetStats returns user/question/answer totals, cached for five minutes.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(statsCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	users, err := s.store.Users.Count(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to count users")
		return
	}
	questions, err := s.store.Questions.Count(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to count questions")
		return
	}
	answers, err := s.store.Answers.Count(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to count answers")
		return
	}

	payload := gin.H{
		"users":     users,
		"questions": questions,
		"answers":   answers,
	}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(statsCacheKey, wrapper, 5*time.Minute)
	utils.Success(ctx, payload)
}
