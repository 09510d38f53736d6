package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/affirmbot/internal/domain/model"
)

// PostgresStore keeps state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to url and creates the tables.
func OpenPostgres(ctx context.Context, url string, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, storeErr("parse postgres url", err)
	}
	cfg.MaxConns = int32(o.maxOpenConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storeErr("connect postgres", err)
	}
	s := &PostgresStore{pool: pool}
	for _, stmt := range []string{schemaStates, schemaFavorites} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, storeErr("migrate", err)
		}
	}
	return s, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, did string) (model.UserState, error) {
	start := time.Now()
	var row stateRow
	err := s.pool.QueryRow(ctx,
		`SELECT `+stateColumns+` FROM user_states WHERE did = $1`, did).Scan(row.targets()...)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) Get(ctx context.Context, did, column string) (any, error) {
	return getColumn(ctx, s, did, column)
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, did, column string, value any) error {
	v, err := encodeValue(column, value)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.pool.Exec(ctx, upsertColumn(column, "$1", "$2"), did, v)
	observe("set", start, err)
	if err != nil {
		return storeErr("set", err)
	}
	return nil
}

// InsertIfAbsent implements Store.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, did string, now time.Time) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_states (did, created_at) VALUES ($1, $2) ON CONFLICT (did) DO NOTHING`,
		did, formatTime(now))
	observe("insert", start, err)
	if err != nil {
		return storeErr("insert", err)
	}
	return nil
}

// UpdateBestPost implements Store.
func (s *PostgresStore) UpdateBestPost(ctx context.Context, did, post string, score int, now time.Time) (bool, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO favorite_posts (did, post, score, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (did) DO UPDATE SET post = excluded.post, score = excluded.score, updated_at = excluded.updated_at
		 WHERE excluded.score > favorite_posts.score`,
		did, post, score, formatTime(now))
	observe("update_best_post", start, err)
	if err != nil {
		return false, storeErr("update_best_post", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FavoritePost implements Store.
func (s *PostgresStore) FavoritePost(ctx context.Context, did string) (model.FavoritePost, bool, error) {
	start := time.Now()
	fav := model.FavoritePost{DID: did}
	var updated string
	err := s.pool.QueryRow(ctx,
		`SELECT post, score, updated_at FROM favorite_posts WHERE did = $1`, did).
		Scan(&fav.Post, &fav.Score, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		observe("favorite_post", start, nil)
		return model.FavoritePost{}, false, nil
	}
	observe("favorite_post", start, err)
	if err != nil {
		return model.FavoritePost{}, false, storeErr("favorite_post", err)
	}
	fav.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return fav, true, nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_states`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
