package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/cppla/qaboard/store"
)

var (
	// ErrUnauthenticated is returned when no actor identity accompanies a
	// call. The auth gate normally rejects such requests upstream; the
	// ledger re-checks so it never depends on ambient request state.
	ErrUnauthenticated = errors.New("votes: no actor identity")
	// ErrValidation is returned when a required field is missing or blank.
	ErrValidation = errors.New("votes: validation failed")
)

// toggleRetries bounds the optimistic reload loop before a toggle gives
// up and surfaces store.ErrConflict.
const toggleRetries = 5

// Ledger flips per-actor votes on questions, answers and embedded
// replies. Each toggle is one conditional read-modify-write scoped to a
// single row; toggles on distinct targets share no state and proceed in
// parallel.
type Ledger struct {
	questions store.Questions
	answers   store.Answers
}

// NewLedger creates a Ledger over the content store.
func NewLedger(questions store.Questions, answers store.Answers) *Ledger {
	return &Ledger{questions: questions, answers: answers}
}

// Toggle flips actorID's vote on the referenced target and returns the
// resulting upvote count. Applying it twice in succession restores the
// state preceding both calls.
func (l *Ledger) Toggle(ctx context.Context, ref TargetRef, actorID uint) (int, error) {
	if actorID == 0 {
		return 0, ErrUnauthenticated
	}
	switch ref.Kind {
	case TargetQuestion:
		return l.toggleQuestion(ctx, ref.ID, actorID)
	case TargetAnswer:
		return l.toggleAnswer(ctx, ref.ID, actorID)
	case TargetReply:
		return l.toggleReply(ctx, ref.ID, ref.ReplyID, actorID)
	default:
		return 0, fmt.Errorf("votes: unknown target kind %q", ref.Kind)
	}
}

func (l *Ledger) toggleQuestion(ctx context.Context, id, actorID uint) (int, error) {
	for attempt := 0; attempt < toggleRetries; attempt++ {
		q, err := l.questions.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		q.Toggle(actorID)
		if err := l.questions.UpdateVotes(ctx, q); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return 0, err
		}
		return q.Upvotes, nil
	}
	return 0, store.ErrConflict
}

func (l *Ledger) toggleAnswer(ctx context.Context, id, actorID uint) (int, error) {
	for attempt := 0; attempt < toggleRetries; attempt++ {
		a, err := l.answers.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		a.Toggle(actorID)
		if err := l.answers.UpdateVotes(ctx, a); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return 0, err
		}
		return a.Upvotes, nil
	}
	return 0, store.ErrConflict
}

// toggleReply flips a vote on an embedded reply. The whole answer row is
// rewritten under its version guard so the write is atomic with respect
// to every other mutation of that answer, reply appends included.
func (l *Ledger) toggleReply(ctx context.Context, answerID uint, replyID string, actorID uint) (int, error) {
	for attempt := 0; attempt < toggleRetries; attempt++ {
		a, err := l.answers.Get(ctx, answerID)
		if err != nil {
			return 0, err
		}
		reply, err := ResolveReply(a, replyID)
		if err != nil {
			return 0, err
		}
		reply.Toggle(actorID)
		if err := l.answers.UpdateReplies(ctx, a); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return 0, err
		}
		return reply.Upvotes, nil
	}
	return 0, store.ErrConflict
}
