// Package repository persists per-actor state and favorite posts.
//
// Backends: SQLite (default), PostgreSQL when a URL is configured, and an
// in-memory store for tests and dry runs. Timestamps are stored as RFC3339
// in UTC so elapsed-time checks never depend on the bot's timezone.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/okian/affirmbot/internal/domain/model"
)

// Store provides read/write access to per-actor state.
type Store interface {
	// Load returns the actor's state, or model.NewUserState when unknown.
	Load(ctx context.Context, did string) (model.UserState, error)
	// Get returns one column of the actor's state.
	Get(ctx context.Context, did, column string) (any, error)
	// Set writes one column, creating the row if needed.
	Set(ctx context.Context, did, column string, value any) error
	// InsertIfAbsent creates the actor's row with created_at = now.
	InsertIfAbsent(ctx context.Context, did string, now time.Time) error

	// UpdateBestPost replaces the favorite post only if score is higher than
	// the stored one. Returns true if it replaced it.
	UpdateBestPost(ctx context.Context, did, post string, score int, now time.Time) (bool, error)
	// FavoritePost returns the stored favorite post.
	FavoritePost(ctx context.Context, did string) (model.FavoritePost, bool, error)

	// Count returns the number of actors with state.
	Count(ctx context.Context) (int, error)

	Close() error
}

// stateColumns is the SELECT list shared by the SQL backends.
const stateColumns = `did, created_at, updated_at, reply_freq, is_u18, is_diary,
	last_fortune_at, last_analyze_at, last_dj_at, last_conversation_at, last_cheer_at`

const schemaStates = `CREATE TABLE IF NOT EXISTS user_states (
	did                  TEXT PRIMARY KEY,
	created_at           TEXT,
	updated_at           TEXT,
	reply_freq           INTEGER NOT NULL DEFAULT 100,
	is_u18               INTEGER NOT NULL DEFAULT 0,
	is_diary             INTEGER NOT NULL DEFAULT 0,
	last_fortune_at      TEXT,
	last_analyze_at      TEXT,
	last_dj_at           TEXT,
	last_conversation_at TEXT,
	last_cheer_at        TEXT
)`

const schemaFavorites = `CREATE TABLE IF NOT EXISTS favorite_posts (
	did        TEXT PRIMARY KEY,
	post       TEXT NOT NULL,
	score      INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// stateRow scans one user_states row. The sql.Null* types work with both
// database/sql and pgx.
type stateRow struct {
	did                                string
	created, updated                   sql.NullString
	freq, u18, diary                   int64
	fortune, analyze, dj, convo, cheer sql.NullString
}

func (r *stateRow) targets() []any {
	return []any{&r.did, &r.created, &r.updated, &r.freq, &r.u18, &r.diary,
		&r.fortune, &r.analyze, &r.dj, &r.convo, &r.cheer}
}

func (r *stateRow) state() model.UserState {
	return model.UserState{
		DID:                r.did,
		CreatedAt:          parseTime(r.created),
		UpdatedAt:          parseTime(r.updated),
		ReplyFreq:          int(r.freq),
		IsU18:              r.u18 != 0,
		IsDiary:            r.diary != 0,
		LastFortuneAt:      parseTime(r.fortune),
		LastAnalyzeAt:      parseTime(r.analyze),
		LastDJAt:           parseTime(r.dj),
		LastConversationAt: parseTime(r.convo),
		LastCheerAt:        parseTime(r.cheer),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// encodeValue validates column and converts value to its SQL form.
func encodeValue(column string, value any) (any, error) {
	if err := model.ValidateColumn(column, value); err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return formatTime(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return v, nil
	}
}

// upsertColumn builds the single-column upsert. column must be validated.
func upsertColumn(column string, placeholders ...string) string {
	return fmt.Sprintf(
		`INSERT INTO user_states (did, %[1]s) VALUES (%[2]s, %[3]s)
		 ON CONFLICT (did) DO UPDATE SET %[1]s = excluded.%[1]s`,
		column, placeholders[0], placeholders[1])
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

func getColumn(ctx context.Context, s Store, did, column string) (any, error) {
	if err := model.ValidateColumn(column, zeroFor(column)); err != nil {
		return nil, err
	}
	st, err := s.Load(ctx, did)
	if err != nil {
		return nil, err
	}
	return st.Value(column), nil
}

func zeroFor(column string) any {
	switch {
	case model.IsTimeColumn(column):
		return time.Time{}
	case strings.HasPrefix(column, "is_"):
		return false
	default:
		return 0
	}
}
