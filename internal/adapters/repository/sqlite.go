package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/metrics"
)

// SQLiteStore is the default Store, one file in WAL mode.
type SQLiteStore struct {
	db    *sql.DB
	retry retryConfig
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr("open sqlite", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db, retry: o.retry}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range []string{schemaStates, schemaFavorites} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}

// exec runs a write with contention retry and records latency.
func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	var res sql.Result
	err := retryOp(ctx, s.retry, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	observe(op, start, err)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return res, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, did string) (model.UserState, error) {
	start := time.Now()
	var row stateRow
	err := retryOp(ctx, s.retry, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT `+stateColumns+` FROM user_states WHERE did = ?`, did).Scan(row.targets()...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		observe("load", start, nil)
		return model.NewUserState(did), nil
	}
	observe("load", start, err)
	if err != nil {
		return model.UserState{}, storeErr("load", err)
	}
	return row.state(), nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, did, column string) (any, error) {
	return getColumn(ctx, s, did, column)
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, did, column string, value any) error {
	v, err := encodeValue(column, value)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "set", upsertColumn(column, "?", "?"), did, v)
	return err
}

// InsertIfAbsent implements Store.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, did string, now time.Time) error {
	_, err := s.exec(ctx, "insert",
		`INSERT INTO user_states (did, created_at) VALUES (?, ?) ON CONFLICT (did) DO NOTHING`,
		did, formatTime(now))
	return err
}

// UpdateBestPost implements Store.
func (s *SQLiteStore) UpdateBestPost(ctx context.Context, did, post string, score int, now time.Time) (bool, error) {
	res, err := s.exec(ctx, "update_best_post",
		`INSERT INTO favorite_posts (did, post, score, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (did) DO UPDATE SET post = excluded.post, score = excluded.score, updated_at = excluded.updated_at
		 WHERE excluded.score > favorite_posts.score`,
		did, post, score, formatTime(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("update_best_post", err)
	}
	return n > 0, nil
}

// FavoritePost implements Store.
func (s *SQLiteStore) FavoritePost(ctx context.Context, did string) (model.FavoritePost, bool, error) {
	start := time.Now()
	fav := model.FavoritePost{DID: did}
	var updated sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT post, score, updated_at FROM favorite_posts WHERE did = ?`, did).
		Scan(&fav.Post, &fav.Score, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		observe("favorite_post", start, nil)
		return model.FavoritePost{}, false, nil
	}
	observe("favorite_post", start, err)
	if err != nil {
		return model.FavoritePost{}, false, storeErr("favorite_post", err)
	}
	fav.UpdatedAt = parseTime(updated)
	return fav, true, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_states`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
	}
}
