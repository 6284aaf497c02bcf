package votes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/store"
)

// ReplyTree appends replies to an answer's embedded sequence and resolves
// them by composite key. Replies never get rows of their own; every
// mutation rewrites the parent answer as a single unit.
type ReplyTree struct {
	answers store.Answers
}

// NewReplyTree creates a ReplyTree over the answer store.
func NewReplyTree(answers store.Answers) *ReplyTree {
	return &ReplyTree{answers: answers}
}

// Append adds a reply with a fresh ID and empty vote state to the end of
// the answer's reply list, preserving insertion order.
func (t *ReplyTree) Append(ctx context.Context, answerID uint, content string, actorID uint, attachmentRef string) (*models.Reply, error) {
	if actorID == 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrValidation
	}
	reply := models.Reply{
		ID:        uuid.NewString(),
		UserID:    actorID,
		Content:   content,
		File:      attachmentRef,
		CreatedAt: time.Now(),
		VoteState: models.VoteState{Voters: models.VoterSet{}},
	}
	for attempt := 0; attempt < toggleRetries; attempt++ {
		a, err := t.answers.Get(ctx, answerID)
		if err != nil {
			return nil, err
		}
		a.Replies = append(a.Replies, reply)
		if err := t.answers.UpdateReplies(ctx, a); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return nil, err
		}
		return &reply, nil
	}
	return nil, store.ErrConflict
}

// ResolveReply returns the reply addressed by (answer, replyID), or
// store.ErrNotFound when the ID is absent. The pointer aliases the
// answer's reply slice so callers can mutate in place before persisting.
func ResolveReply(a *models.Answer, replyID string) (*models.Reply, error) {
	idx := a.Replies.IndexOf(replyID)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	return &a.Replies[idx], nil
}
