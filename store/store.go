package store

import (
	"context"
	"errors"

	"github.com/cppla/qaboard/models"
)

var (
	// ErrNotFound is returned when a target ID does not resolve to a row.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionMismatch is returned by conditional writes when the row
	// moved between load and write. Callers reload and retry.
	ErrVersionMismatch = errors.New("store: version mismatch")
	// ErrConflict is returned when contention could not be resolved within
	// the retry budget. It is surfaced to the caller, never swallowed.
	ErrConflict = errors.New("store: write conflict")
)

// Sort orders accepted by Questions.List.
const (
	SortByUpvotes   = "upvotes"
	SortByTimestamp = "timestamp"
)

// ListOptions narrows and orders a question listing.
type ListOptions struct {
	// Search filters by case-insensitive substring match on title or content.
	Search string
	// SortBy is SortByUpvotes or SortByTimestamp (default).
	SortBy string
}

// Users persists accounts.
type Users interface {
	Create(ctx context.Context, u *models.User) error
	ByID(ctx context.Context, id uint) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

// Questions persists question aggregates. UpdateVotes and AppendAnswerRef
// are conditional single-row writes guarded by the question's version.
type Questions interface {
	Create(ctx context.Context, q *models.Question) error
	Get(ctx context.Context, id uint) (*models.Question, error)
	List(ctx context.Context, opts ListOptions) ([]models.Question, error)
	// UpdateVotes persists q's vote state iff q.Version still matches the
	// row, bumping the version on success. ErrVersionMismatch otherwise.
	UpdateVotes(ctx context.Context, q *models.Question) error
	// AppendAnswerRef links an answer into the question's ordered ref list.
	// Already-linked IDs are a no-op so a failed link can be retried.
	AppendAnswerRef(ctx context.Context, questionID, answerID uint) error
	Count(ctx context.Context) (int64, error)
}

// Answers persists answer aggregates, replies included. A reply has no row
// of its own; UpdateReplies rewrites the embedded list as one unit under
// the answer's version guard.
type Answers interface {
	Create(ctx context.Context, a *models.Answer) error
	Get(ctx context.Context, id uint) (*models.Answer, error)
	ByQuestionIDs(ctx context.Context, questionIDs []uint) ([]models.Answer, error)
	// UpdateVotes persists the answer-level vote state, conditional on
	// a.Version.
	UpdateVotes(ctx context.Context, a *models.Answer) error
	// UpdateReplies persists the embedded reply list (appends and reply
	// vote flips alike), conditional on a.Version.
	UpdateReplies(ctx context.Context, a *models.Answer) error
	Count(ctx context.Context) (int64, error)
}

// Uploads records stored attachment blobs for timed cleanup.
type Uploads interface {
	Record(ctx context.Context, f *models.UploadedFile) error
}

// Store bundles the persistence interfaces handed to controllers and the
// vote ledger.
type Store struct {
	Users     Users
	Questions Questions
	Answers   Answers
	Uploads   Uploads
}
