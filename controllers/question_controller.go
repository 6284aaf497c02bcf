package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
	"github.com/cppla/qaboard/votes"
)

// QuestionController manages question creation, the aggregate listing and
// question vote toggles.
type QuestionController struct {
	store  *store.Store
	ledger *votes.Ledger
}

// NewQuestionController creates a QuestionController.
func NewQuestionController(st *store.Store, ledger *votes.Ledger) *QuestionController {
	return &QuestionController{store: st, ledger: ledger}
}

// CreateQuestion allows authenticated users to post a new question.
func (q *QuestionController) CreateQuestion(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required,min=1"`
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "content cannot be empty")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	question := models.Question{
		UserID:    userID,
		Title:     title,
		Content:   content,
		VoteState: models.VoteState{Voters: models.VoterSet{}},
		AnswerIDs: models.IDList{},
	}
	if err := q.store.Questions.Create(ctx, &question); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create question")
		return
	}

	utils.InvalidateByPrefix(questionListCachePrefix)
	utils.InvalidateByPrefix(statsCacheKey)

	utils.Success(ctx, gin.H{"question": question})
}

// ListQuestions returns every question with its nested answers and their
// owners' display names. Supports ?search= substring filtering and
// ?sortBy=upvotes|timestamp ordering. Read-only; serves the latest
// persisted snapshot.
func (q *QuestionController) ListQuestions(ctx *gin.Context) {
	search := strings.TrimSpace(ctx.Query("search"))
	sortBy := strings.TrimSpace(ctx.Query("sortBy"))
	if sortBy != store.SortByUpvotes {
		sortBy = store.SortByTimestamp
	}

	// Cache unfiltered listings only, to avoid cache key explosion.
	cacheKey := fmt.Sprintf("%ssort=%s", questionListCachePrefix, sortBy)
	if search == "" {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	questions, err := q.store.Questions.List(ctx, store.ListOptions{Search: search, SortBy: sortBy})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list questions")
		return
	}

	if err := q.attachAnswers(ctx, questions); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load answers")
		return
	}

	payload := gin.H{"items": questions, "total": len(questions)}
	if search == "" {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// attachAnswers loads the answers for the given questions in one query,
// attaches their owners' display info, and orders each question's answers
// by its embedded answer-ref list. Answers not yet linked into a ref list
// trail at the end in creation order.
func (q *QuestionController) attachAnswers(ctx *gin.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	qIDs := make([]uint, len(questions))
	for i := range questions {
		qIDs[i] = questions[i].ID
	}

	answers, err := q.store.Answers.ByQuestionIDs(ctx, qIDs)
	if err != nil {
		return err
	}

	var ownerIDs []uint
	byID := make(map[uint]models.Answer, len(answers))
	byQuestion := make(map[uint][]uint)
	for _, a := range answers {
		byID[a.ID] = a
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a.ID)
		ownerIDs = append(ownerIDs, a.UserID)
	}

	users, err := q.store.Users.ByIDs(ctx, utils.UniqueUint(ownerIDs))
	if err != nil {
		return err
	}
	userByID := make(map[uint]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	for i := range questions {
		qu := &questions[i]
		qu.Answers = make([]models.Answer, 0, len(byQuestion[qu.ID]))
		seen := make(map[uint]bool, len(qu.AnswerIDs))
		for _, aid := range qu.AnswerIDs {
			a, ok := byID[aid]
			if !ok {
				continue
			}
			seen[aid] = true
			a.User = userByID[a.UserID]
			qu.Answers = append(qu.Answers, a)
		}
		for _, aid := range byQuestion[qu.ID] {
			if seen[aid] {
				continue
			}
			a := byID[aid]
			a.User = userByID[a.UserID]
			qu.Answers = append(qu.Answers, a)
		}
	}
	return nil
}

// UpvoteQuestion toggles the caller's vote on a question and returns the
// question with its new count.
func (q *QuestionController) UpvoteQuestion(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid question id")
		return
	}
	userID, _ := getUserID(ctx)

	if _, err := q.ledger.Toggle(ctx, votes.QuestionRef(id), userID); err != nil {
		respondCoreError(ctx, err, 50023, "failed to toggle vote")
		return
	}

	question, err := q.store.Questions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "question not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load question")
		return
	}

	utils.InvalidateByPrefix(questionListCachePrefix)
	utils.Success(ctx, gin.H{"question": question})
}

func parseID(raw string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
