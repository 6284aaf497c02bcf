package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IDList is an ordered list of row IDs stored as a JSON array in a text
// column. Order is insertion order and is preserved across round trips.
type IDList []uint

// Value implements driver.Valuer.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		l = IDList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *IDList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = IDList{}
		return nil
	case []byte:
		if len(v) == 0 {
			*l = IDList{}
			return nil
		}
		return json.Unmarshal(v, l)
	case string:
		if v == "" {
			*l = IDList{}
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported id list source type %T", src)
	}
}

// Question is a top-level board entry. It carries its own vote state and
// an ordered list of answer references. Rows are never deleted; only the
// vote state and the answer-ref list mutate after creation, guarded by
// the Version column.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	VoteState `gorm:"embedded"`
	AnswerIDs IDList    `gorm:"type:text" json:"answer_ids"`
	Version   uint      `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Answers   []Answer  `gorm:"-" json:"answers"`
}
