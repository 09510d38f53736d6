package model

import "time"

// DefaultReplyFreq applies to actors with no stored preference.
const DefaultReplyFreq = 100

// UserState columns.
const (
	ColUpdatedAt          = "updated_at"
	ColCreatedAt          = "created_at"
	ColReplyFreq          = "reply_freq"
	ColIsU18              = "is_u18"
	ColIsDiary            = "is_diary"
	ColLastFortuneAt      = "last_fortune_at"
	ColLastAnalyzeAt      = "last_analyze_at"
	ColLastDJAt           = "last_dj_at"
	ColLastConversationAt = "last_conversation_at"
	ColLastCheerAt        = "last_cheer_at"
)

// Follower is one account following the bot.
type Follower struct {
	DID         string    `json:"did"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserState is the per-actor record kept in the store.
// Zero timestamps mean "never".
type UserState struct {
	DID                string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ReplyFreq          int
	IsU18              bool
	IsDiary            bool
	LastFortuneAt      time.Time
	LastAnalyzeAt      time.Time
	LastDJAt           time.Time
	LastConversationAt time.Time
	LastCheerAt        time.Time
}

// NewUserState returns the state of an actor the store has never seen.
func NewUserState(did string) UserState {
	return UserState{DID: did, ReplyFreq: DefaultReplyFreq}
}

// LastAt returns the timestamp stored in a time column.
func (s UserState) LastAt(column string) (time.Time, bool) {
	var t time.Time
	switch column {
	case ColUpdatedAt:
		t = s.UpdatedAt
	case ColCreatedAt:
		t = s.CreatedAt
	case ColLastFortuneAt:
		t = s.LastFortuneAt
	case ColLastAnalyzeAt:
		t = s.LastAnalyzeAt
	case ColLastDJAt:
		t = s.LastDJAt
	case ColLastConversationAt:
		t = s.LastConversationAt
	case ColLastCheerAt:
		t = s.LastCheerAt
	default:
		return time.Time{}, false
	}
	return t, !t.IsZero()
}

// Value returns the value of column, or nil for an unknown column.
func (s UserState) Value(column string) any {
	switch column {
	case ColReplyFreq:
		return s.ReplyFreq
	case ColIsU18:
		return s.IsU18
	case ColIsDiary:
		return s.IsDiary
	}
	if IsTimeColumn(column) {
		t, _ := s.LastAt(column)
		return t
	}
	return nil
}

// Apply sets column to value in place. The value type must match the column.
func (s *UserState) Apply(column string, value any) error {
	if err := ValidateColumn(column, value); err != nil {
		return err
	}
	switch column {
	case ColReplyFreq:
		s.ReplyFreq = value.(int)
	case ColIsU18:
		s.IsU18 = value.(bool)
	case ColIsDiary:
		s.IsDiary = value.(bool)
	case ColUpdatedAt:
		s.UpdatedAt = value.(time.Time)
	case ColCreatedAt:
		s.CreatedAt = value.(time.Time)
	case ColLastFortuneAt:
		s.LastFortuneAt = value.(time.Time)
	case ColLastAnalyzeAt:
		s.LastAnalyzeAt = value.(time.Time)
	case ColLastDJAt:
		s.LastDJAt = value.(time.Time)
	case ColLastConversationAt:
		s.LastConversationAt = value.(time.Time)
	case ColLastCheerAt:
		s.LastCheerAt = value.(time.Time)
	}
	return nil
}

// IsTimeColumn reports whether column holds a timestamp.
func IsTimeColumn(column string) bool {
	switch column {
	case ColUpdatedAt, ColCreatedAt, ColLastFortuneAt, ColLastAnalyzeAt,
		ColLastDJAt, ColLastConversationAt, ColLastCheerAt:
		return true
	}
	return false
}

// ValidateColumn checks that column exists and value has its type.
func ValidateColumn(column string, value any) error {
	var ok bool
	switch column {
	case ColReplyFreq:
		var n int
		n, ok = value.(int)
		if ok && (n < 0 || n > 100) {
			return wrapValidation("reply_freq out of range")
		}
	case ColIsU18, ColIsDiary:
		_, ok = value.(bool)
	default:
		if !IsTimeColumn(column) {
			return wrapValidation("unknown column " + column)
		}
		_, ok = value.(time.Time)
	}
	if !ok {
		return wrapValidation("bad value type for " + column)
	}
	return nil
}

// FavoritePost is the highest-scoring post recorded for an actor.
type FavoritePost struct {
	DID       string    `json:"did"`
	Post      string    `json:"post"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result is what a mode reports after seeing an event.
type Result struct {
	Claimed bool
	Mode    string
	Text    string
	Score   int
}

// Claimed builds a claiming result for mode.
func Claimed(mode, text string) Result {
	return Result{Claimed: true, Mode: mode, Text: text}
}
