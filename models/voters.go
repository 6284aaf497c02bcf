package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// VoterSet is the set of user IDs holding an active vote on a target.
// It is stored as a JSON array in a text column and marshals in sorted
// order so persisted values are stable.
type VoterSet map[uint]struct{}

// Has reports whether the user currently has an active vote.
func (s VoterSet) Has(userID uint) bool {
	_, ok := s[userID]
	return ok
}

// Count returns the number of active voters.
func (s VoterSet) Count() int {
	return len(s)
}

// Members returns the voter IDs in ascending order.
func (s VoterSet) Members() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Toggle flips the user's membership and reports whether the vote is
// active after the flip.
func (s *VoterSet) Toggle(userID uint) bool {
	if *s == nil {
		*s = VoterSet{}
	}
	if _, ok := (*s)[userID]; ok {
		delete(*s, userID)
		return false
	}
	(*s)[userID] = struct{}{}
	return true
}

// MarshalJSON encodes the set as a sorted ID array.
func (s VoterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

// UnmarshalJSON decodes an ID array, dropping duplicates.
func (s *VoterSet) UnmarshalJSON(b []byte) error {
	var ids []uint
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	out := make(VoterSet, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	*s = out
	return nil
}

// Value implements driver.Valuer for text-column storage.
func (s VoterSet) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *VoterSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = VoterSet{}
		return nil
	case []byte:
		if len(v) == 0 {
			*s = VoterSet{}
			return nil
		}
		return s.UnmarshalJSON(v)
	case string:
		if v == "" {
			*s = VoterSet{}
			return nil
		}
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported voter set source type %T", src)
	}
}

// VoteState is the votable portion shared by questions, answers and
// replies. Upvotes always equals the size of Voters.
type VoteState struct {
	Upvotes int      `gorm:"not null;default:0" json:"upvotes"`
	Voters  VoterSet `gorm:"type:text" json:"voters"`
}

// Toggle flips the actor's vote and recomputes the count from the set,
// keeping the count == |voters| invariant by construction. It reports
// whether the vote is active after the flip.
func (v *VoteState) Toggle(actorID uint) bool {
	active := v.Voters.Toggle(actorID)
	v.Upvotes = v.Voters.Count()
	return active
}
