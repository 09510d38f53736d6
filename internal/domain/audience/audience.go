// Package audience holds who the bot listens to: its followers and its
// paying subscribers. A snapshot is immutable and swapped as a whole.
package audience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Snapshot is a point-in-time view of followers and subscribers.
type Snapshot struct {
	followers   map[string]model.Follower
	subscribers map[string]struct{}
	takenAt     time.Time
}

// NewSnapshot indexes followers by DID.
func NewSnapshot(followers []model.Follower, subscribers map[string]struct{}, takenAt time.Time) *Snapshot {
	s := &Snapshot{
		followers:   make(map[string]model.Follower, len(followers)),
		subscribers: subscribers,
		takenAt:     takenAt,
	}
	if s.subscribers == nil {
		s.subscribers = map[string]struct{}{}
	}
	for _, f := range followers {
		s.followers[f.DID] = f
	}
	return s
}

// Follower returns the follower profile for did.
func (s *Snapshot) Follower(did string) (model.Follower, bool) {
	f, ok := s.followers[did]
	return f, ok
}

// IsSubscriber reports whether did is a subscriber.
func (s *Snapshot) IsSubscriber(did string) bool {
	_, ok := s.subscribers[did]
	return ok
}

// Followers returns the number of followers.
func (s *Snapshot) Followers() int { return len(s.followers) }

// Subscribers returns the number of subscribers.
func (s *Snapshot) Subscribers() int { return len(s.subscribers) }

// TakenAt is when the snapshot was built; zero for the initial empty one.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Holder publishes the current snapshot to concurrent readers.
type Holder struct {
	cur atomic.Pointer[Snapshot]
}

// NewHolder starts with an empty snapshot.
func NewHolder() *Holder {
	h := &Holder{}
	h.cur.Store(NewSnapshot(nil, nil, time.Time{}))
	return h
}

// Current returns the latest snapshot.
func (h *Holder) Current() *Snapshot { return h.cur.Load() }

// Store replaces the snapshot.
func (h *Holder) Store(s *Snapshot) {
	h.cur.Store(s)
	metrics.UpdateAudience(s.Followers(), s.Subscribers())
}

// FollowerSource lists the accounts following did.
type FollowerSource interface {
	Followers(ctx context.Context, did string) ([]model.Follower, error)
}

// SubscriberSource lists subscriber DIDs.
type SubscriberSource interface {
	Fetch(ctx context.Context) (map[string]struct{}, error)
}

// Refresher rebuilds the snapshot on a timer.
type Refresher struct {
	holder      *Holder
	followers   FollowerSource
	subscribers SubscriberSource
	botDID      func() string
	now         func() time.Time
	log         logger.Logger
}

// NewRefresher wires the sources to h. subscribers may be nil.
func NewRefresher(h *Holder, followers FollowerSource, subscribers SubscriberSource, botDID func() string) *Refresher {
	return &Refresher{
		holder:      h,
		followers:   followers,
		subscribers: subscribers,
		botDID:      botDID,
		now:         time.Now,
		log:         logger.Named("audience"),
	}
}

// Refresh fetches both lists. A failing source keeps its previous data;
// the error of the follower source is returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	prev := r.holder.Current()

	followers, ferr := r.followers.Followers(ctx, r.botDID())
	if ferr != nil {
		metrics.RecordAudienceRefreshError("followers")
		r.log.Warn(ctx, "follower refresh failed, keeping previous list", logger.Error(ferr))
		followers = make([]model.Follower, 0, len(prev.followers))
		for _, f := range prev.followers {
			followers = append(followers, f)
		}
	}

	subs := prev.subscribers
	if r.subscribers != nil {
		fresh, err := r.subscribers.Fetch(ctx)
		if err != nil {
			metrics.RecordAudienceRefreshError("subscribers")
			r.log.Warn(ctx, "subscriber refresh failed, keeping previous list", logger.Error(err))
		} else {
			subs = fresh
		}
	}

	next := NewSnapshot(followers, subs, r.now())
	r.holder.Store(next)
	r.log.Debug(ctx, "audience refreshed",
		logger.Int("followers", next.Followers()),
		logger.Int("subscribers", next.Subscribers()))
	return ferr
}

// Run refreshes every interval until ctx ends. It does not refresh on entry;
// call Refresh first so the holder is seeded before events arrive.
func (r *Refresher) Run(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_ = r.Refresh(ctx)
		}
	}
}
