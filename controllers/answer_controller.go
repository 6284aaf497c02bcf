package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/qaboard/config"
	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
	"github.com/cppla/qaboard/votes"
)

// maxAttachmentSize caps reply attachment uploads at 50MB.
const maxAttachmentSize = 50 * 1024 * 1024

// AnswerController manages answers and their embedded replies, including
// reply attachments and vote toggles on both.
type AnswerController struct {
	store  *store.Store
	ledger *votes.Ledger
	tree   *votes.ReplyTree
}

// NewAnswerController creates an AnswerController.
func NewAnswerController(st *store.Store, ledger *votes.Ledger, tree *votes.ReplyTree) *AnswerController {
	return &AnswerController{store: st, ledger: ledger, tree: tree}
}

// CreateAnswer posts an answer under the question named in the path. The
// answer row is written first, then linked into the question's ordered
// ref list; a failed link is reported and leaves a retry-linkable orphan,
// it is never rolled back.
func (a *AnswerController) CreateAnswer(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "content cannot be empty")
		return
	}

	questionID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid question id")
		return
	}
	if _, err := a.store.Questions.Get(ctx, questionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "question not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load question")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	answer := models.Answer{
		QuestionID: questionID,
		UserID:     userID,
		Content:    content,
		VoteState:  models.VoteState{Voters: models.VoterSet{}},
		Replies:    models.ReplyList{},
	}
	if err := a.store.Answers.Create(ctx, &answer); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create answer")
		return
	}

	if err := a.store.Questions.AppendAnswerRef(ctx, questionID, answer.ID); err != nil {
		// The answer row exists; the link can be retried by re-posting.
		if utils.Sugar != nil {
			utils.Sugar.Warnf("answer %d created but linking to question %d failed: %v", answer.ID, questionID, err)
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "answer created but linking failed, retry")
		return
	}

	utils.InvalidateByPrefix(questionListCachePrefix)
	utils.InvalidateByPrefix(statsCacheKey)

	utils.Success(ctx, gin.H{"answer": answer})
}

// CreateReply appends a reply to an answer. Multipart body: content plus
// an optional file attachment.
func (a *AnswerController) CreateReply(ctx *gin.Context) {
	answerID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid answer id")
		return
	}
	userID, _ := getUserID(ctx)

	content := utils.Sanitize(ctx.PostForm("content"))

	attachmentRef := ""
	if file, header, err := ctx.Request.FormFile("file"); err == nil {
		defer file.Close()
		attachmentRef, err = a.saveAttachment(ctx, file, header.Filename, header.Size, userID)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40034, err.Error())
			return
		}
	}

	reply, err := a.tree.Append(ctx, answerID, content, userID, attachmentRef)
	if err != nil {
		respondCoreError(ctx, err, 50033, "failed to add reply")
		return
	}

	utils.InvalidateByPrefix(questionListCachePrefix)
	utils.Success(ctx, gin.H{"reply": reply})
}

// UpvoteAnswer toggles the caller's vote on an answer.
func (a *AnswerController) UpvoteAnswer(ctx *gin.Context) {
	answerID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40035, "invalid answer id")
		return
	}
	userID, _ := getUserID(ctx)

	count, err := a.ledger.Toggle(ctx, votes.AnswerRef(answerID), userID)
	if err != nil {
		respondCoreError(ctx, err, 50034, "failed to toggle vote")
		return
	}

	utils.InvalidateByPrefix(questionListCachePrefix)
	utils.Success(ctx, gin.H{"upvotes": count})
}

// UpvoteReply toggles the caller's vote on a reply addressed by the
// composite key (answer id, reply id).
func (a *AnswerController) UpvoteReply(ctx *gin.Context) {
	answerID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40036, "invalid answer id")
		return
	}
	replyID := strings.TrimSpace(ctx.Param("replyId"))
	if replyID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40037, "missing reply id")
		return
	}
	userID, _ := getUserID(ctx)

	count, err := a.ledger.Toggle(ctx, votes.ReplyRef(answerID, replyID), userID)
	if err != nil {
		respondCoreError(ctx, err, 50035, "failed to toggle vote")
		return
	}

	utils.InvalidateByPrefix(questionListCachePrefix)
	utils.Success(ctx, gin.H{"upvotes": count})
}

// saveAttachment stores an uploaded file under a dated directory, records
// it for timed cleanup, and returns its public URL.
func (a *AnswerController) saveAttachment(ctx *gin.Context, file io.Reader, filename string, size int64, userID uint) (string, error) {
	if size > maxAttachmentSize {
		return "", fmt.Errorf("file size exceeds 50MB")
	}

	now := time.Now()
	baseDir := filepath.Join(".", "static", "uploads", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory")
	}

	fname := filepath.Base(filename)
	if fname == "." || fname == "" {
		fname = "file"
	}
	safeName := fmt.Sprintf("%s_%d_%s", uuid.NewString(), userID, fname)
	dstPath := filepath.Join(baseDir, safeName)

	out, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to save file")
	}
	defer out.Close()

	lr := &io.LimitedReader{R: file, N: maxAttachmentSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("failed to write file")
	}
	if written > maxAttachmentSize {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("file size exceeds 50MB")
	}

	relURL := fmt.Sprintf("/static/uploads/%s/%s/%s/%s", now.Format("2006"), now.Format("01"), now.Format("02"), safeName)

	conf := config.Get()
	ttl := conf.UploadsSelfDestructMinutes
	if ttl <= 0 {
		ttl = 60
	}
	absPath, _ := filepath.Abs(dstPath)
	record := models.UploadedFile{
		FilePath: absPath,
		URL:      relURL,
		ExpireAt: now.Add(time.Duration(ttl) * time.Minute),
	}
	// Best-effort bookkeeping; the upload itself already succeeded.
	if err := a.store.Uploads.Record(ctx, &record); err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("failed to record uploaded file %s: %v", relURL, err)
	}

	return relURL, nil
}
