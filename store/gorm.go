package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/qaboard/models"
)

// linkRetries bounds the internal reload loop of AppendAnswerRef.
const linkRetries = 5

// New wires the GORM-backed implementations of every store interface.
func New(db *gorm.DB) *Store {
	return &Store{
		Users:     &gormUsers{db: db},
		Questions: &gormQuestions{db: db},
		Answers:   &gormAnswers{db: db},
		Uploads:   &gormUploads{db: db},
	}
}

type gormUsers struct {
	db *gorm.DB
}

func (s *gormUsers) Create(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *gormUsers) ByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

func (s *gormUsers) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

func (s *gormUsers) ByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Find(&users, ids).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *gormUsers) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

type gormQuestions struct {
	db *gorm.DB
}

func (s *gormQuestions) Create(ctx context.Context, q *models.Question) error {
	return s.db.WithContext(ctx).Create(q).Error
}

func (s *gormQuestions) Get(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &q, nil
}

func (s *gormQuestions) List(ctx context.Context, opts ListOptions) ([]models.Question, error) {
	query := s.db.WithContext(ctx).Preload("User")
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		// LOWER on both sides keeps matching case-insensitive regardless of
		// the column collation.
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern)
	}
	switch opts.SortBy {
	case SortByUpvotes:
		query = query.Order("upvotes DESC, created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}
	var questions []models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *gormQuestions) UpdateVotes(ctx context.Context, q *models.Question) error {
	res := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ? AND version = ?", q.ID, q.Version).
		Updates(map[string]interface{}{
			"upvotes": q.Upvotes,
			"voters":  q.Voters,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missOrStale(ctx, q.ID)
	}
	q.Version++
	return nil
}

func (s *gormQuestions) AppendAnswerRef(ctx context.Context, questionID, answerID uint) error {
	for attempt := 0; attempt < linkRetries; attempt++ {
		q, err := s.Get(ctx, questionID)
		if err != nil {
			return err
		}
		for _, id := range q.AnswerIDs {
			if id == answerID {
				return nil // already linked, retried link is a no-op
			}
		}
		refs := append(q.AnswerIDs, answerID)
		res := s.db.WithContext(ctx).Model(&models.Question{}).
			Where("id = ? AND version = ?", q.ID, q.Version).
			Updates(map[string]interface{}{
				"answer_ids": refs,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return ErrConflict
}

func (s *gormQuestions) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Question{}).Count(&n).Error
	return n, err
}

// missOrStale decides whether a zero-row conditional write lost the race
// or targeted a row that never existed.
func (s *gormQuestions) missOrStale(ctx context.Context, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionMismatch
}

type gormAnswers struct {
	db *gorm.DB
}

func (s *gormAnswers) Create(ctx context.Context, a *models.Answer) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *gormAnswers) Get(ctx context.Context, id uint) (*models.Answer, error) {
	var a models.Answer
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (s *gormAnswers) ByQuestionIDs(ctx context.Context, questionIDs []uint) ([]models.Answer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var answers []models.Answer
	if err := s.db.WithContext(ctx).Where("question_id IN ?", questionIDs).Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *gormAnswers) UpdateVotes(ctx context.Context, a *models.Answer) error {
	res := s.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]interface{}{
			"upvotes": a.Upvotes,
			"voters":  a.Voters,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missOrStale(ctx, a.ID)
	}
	a.Version++
	return nil
}

func (s *gormAnswers) UpdateReplies(ctx context.Context, a *models.Answer) error {
	res := s.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]interface{}{
			"replies": a.Replies,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missOrStale(ctx, a.ID)
	}
	a.Version++
	return nil
}

func (s *gormAnswers) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Answer{}).Count(&n).Error
	return n, err
}

func (s *gormAnswers) missOrStale(ctx context.Context, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionMismatch
}

type gormUploads struct {
	db *gorm.DB
}

func (s *gormUploads) Record(ctx context.Context, f *models.UploadedFile) error {
	return s.db.WithContext(ctx).Create(f).Error
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
