package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/affirmbot/internal/domain/model"
)

// MemoryStore is a process-local Store for tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	states    map[string]model.UserState
	favorites map[string]model.FavoritePost
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:    make(map[string]model.UserState),
		favorites: make(map[string]model.FavoritePost),
	}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, did string) (model.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[did]; ok {
		return st, nil
	}
	return model.NewUserState(did), nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, did, column string) (any, error) {
	return getColumn(ctx, s, did, column)
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, did, column string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[did]
	if !ok {
		st = model.NewUserState(did)
	}
	if t, isTime := value.(time.Time); isTime {
		value = t.UTC()
	}
	if err := st.Apply(column, value); err != nil {
		return err
	}
	s.states[did] = st
	return nil
}

// InsertIfAbsent implements Store.
func (s *MemoryStore) InsertIfAbsent(_ context.Context, did string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[did]; !ok {
		st := model.NewUserState(did)
		st.CreatedAt = now.UTC()
		s.states[did] = st
	}
	return nil
}

// UpdateBestPost implements Store.
func (s *MemoryStore) UpdateBestPost(_ context.Context, did, post string, score int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.favorites[did]; ok && score <= cur.Score {
		return false, nil
	}
	s.favorites[did] = model.FavoritePost{DID: did, Post: post, Score: score, UpdatedAt: now.UTC()}
	return true, nil
}

// FavoritePost implements Store.
func (s *MemoryStore) FavoritePost(_ context.Context, did string) (model.FavoritePost, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fav, ok := s.favorites[did]
	return fav, ok, nil
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
