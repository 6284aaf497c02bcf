package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Reply is embedded inside its parent answer and has no row of its own.
// It is addressed by the composite key (answer ID, reply ID).
type Reply struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content"`
	File      string    `json:"file,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	VoteState
}

// ReplyList is an answer's ordered reply sequence, stored inline as a
// JSON array in a text column.
type ReplyList []Reply

// IndexOf returns the position of the reply with the given ID, or -1.
func (l ReplyList) IndexOf(replyID string) int {
	for i := range l {
		if l[i].ID == replyID {
			return i
		}
	}
	return -1
}

// Value implements driver.Valuer.
func (l ReplyList) Value() (driver.Value, error) {
	if l == nil {
		l = ReplyList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *ReplyList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = ReplyList{}
		return nil
	case []byte:
		if len(v) == 0 {
			*l = ReplyList{}
			return nil
		}
		return json.Unmarshal(v, l)
	case string:
		if v == "" {
			*l = ReplyList{}
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported reply list source type %T", src)
	}
}

// Answer belongs to a question and embeds its replies inline. Reply
// mutations rewrite the whole row under the Version guard so the reply
// list and its vote states change as one unit.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"index;not null" json:"question_id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	VoteState  `gorm:"embedded"`
	Replies    ReplyList `gorm:"type:text" json:"replies"`
	Version    uint      `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
