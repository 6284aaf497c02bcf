package controllers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/store"
)

// fakeStore is an in-memory content store with the same conditional-write
// semantics as the GORM implementation, shared by the handler tests.
type fakeStore struct {
	mu        sync.Mutex
	nextID    uint
	users     map[uint]*models.User
	questions map[uint]*models.Question
	answers   map[uint]*models.Answer
	uploads   []models.UploadedFile
}

func newFakeStore() (*fakeStore, *store.Store) {
	f := &fakeStore{
		nextID:    1,
		users:     map[uint]*models.User{},
		questions: map[uint]*models.Question{},
		answers:   map[uint]*models.Answer{},
	}
	return f, &store.Store{
		Users:     (*fakeUsers)(f),
		Questions: (*fakeQuestions)(f),
		Answers:   (*fakeAnswers)(f),
		Uploads:   (*fakeUploads)(f),
	}
}

func (f *fakeStore) allocID() uint {
	id := f.nextID
	f.nextID++
	return id
}

func copyVoteState(v models.VoteState) models.VoteState {
	voters := make(models.VoterSet, len(v.Voters))
	for id := range v.Voters {
		voters[id] = struct{}{}
	}
	return models.VoteState{Upvotes: v.Upvotes, Voters: voters}
}

func copyQuestion(q *models.Question) *models.Question {
	out := *q
	out.VoteState = copyVoteState(q.VoteState)
	out.AnswerIDs = append(models.IDList{}, q.AnswerIDs...)
	out.Answers = nil
	return &out
}

func copyAnswer(a *models.Answer) *models.Answer {
	out := *a
	out.VoteState = copyVoteState(a.VoteState)
	out.Replies = make(models.ReplyList, len(a.Replies))
	for i, r := range a.Replies {
		r.VoteState = copyVoteState(r.VoteState)
		out.Replies[i] = r
	}
	return &out
}

type fakeUsers fakeStore

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = (*fakeStore)(f).allocID()
	u.CreatedAt = time.Now()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) ByID(ctx context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) ByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

type fakeQuestions fakeStore

func (f *fakeQuestions) Create(ctx context.Context, q *models.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q.ID = (*fakeStore)(f).allocID()
	q.CreatedAt = time.Now()
	f.questions[q.ID] = copyQuestion(q)
	return nil
}

func (f *fakeQuestions) Get(ctx context.Context, id uint) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyQuestion(q), nil
}

func (f *fakeQuestions) List(ctx context.Context, opts store.ListOptions) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Question
	needle := strings.ToLower(strings.TrimSpace(opts.Search))
	for _, q := range f.questions {
		if needle != "" &&
			!strings.Contains(strings.ToLower(q.Title), needle) &&
			!strings.Contains(strings.ToLower(q.Content), needle) {
			continue
		}
		cp := copyQuestion(q)
		if u, ok := f.users[q.UserID]; ok {
			cp.User = *u
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.SortBy == store.SortByUpvotes && out[i].Upvotes != out[j].Upvotes {
			return out[i].Upvotes > out[j].Upvotes
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeQuestions) UpdateVotes(ctx context.Context, q *models.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.questions[q.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != q.Version {
		return store.ErrVersionMismatch
	}
	cur.VoteState = copyVoteState(q.VoteState)
	cur.Version++
	q.Version++
	return nil
}

func (f *fakeQuestions) AppendAnswerRef(ctx context.Context, questionID, answerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[questionID]
	if !ok {
		return store.ErrNotFound
	}
	for _, id := range q.AnswerIDs {
		if id == answerID {
			return nil
		}
	}
	q.AnswerIDs = append(q.AnswerIDs, answerID)
	q.Version++
	return nil
}

func (f *fakeQuestions) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.questions)), nil
}

type fakeAnswers fakeStore

func (f *fakeAnswers) Create(ctx context.Context, a *models.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = (*fakeStore)(f).allocID()
	a.CreatedAt = time.Now()
	f.answers[a.ID] = copyAnswer(a)
	return nil
}

func (f *fakeAnswers) Get(ctx context.Context, id uint) (*models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.answers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAnswer(a), nil
}

func (f *fakeAnswers) ByQuestionIDs(ctx context.Context, questionIDs []uint) ([]models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uint]bool, len(questionIDs))
	for _, id := range questionIDs {
		want[id] = true
	}
	var out []models.Answer
	for _, a := range f.answers {
		if want[a.QuestionID] {
			out = append(out, *copyAnswer(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAnswers) UpdateVotes(ctx context.Context, a *models.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.answers[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != a.Version {
		return store.ErrVersionMismatch
	}
	cur.VoteState = copyVoteState(a.VoteState)
	cur.Version++
	a.Version++
	return nil
}

func (f *fakeAnswers) UpdateReplies(ctx context.Context, a *models.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.answers[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != a.Version {
		return store.ErrVersionMismatch
	}
	cur.Replies = make(models.ReplyList, len(a.Replies))
	for i, r := range a.Replies {
		r.VoteState = copyVoteState(r.VoteState)
		cur.Replies[i] = r
	}
	cur.Version++
	a.Version++
	return nil
}

func (f *fakeAnswers) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.answers)), nil
}

type fakeUploads fakeStore

func (f *fakeUploads) Record(ctx context.Context, rec *models.UploadedFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, *rec)
	return nil
}
