// Package modes implements the ordered chain of reactions the bot can have to
// a post. Each mode decides on its own whether it claims the event; the
// registry stops at the first claim.
//
// A mode error wrapping model.ErrGeneration or model.ErrValidation lets the
// chain fall through to the next mode. Any other error aborts the chain and
// reaches the caller, which may retry the whole event.
package modes

import (
	"context"
	"errors"
	"time"

	"github.com/okian/affirmbot/internal/domain/budget"
	"github.com/okian/affirmbot/internal/domain/dedupe"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/internal/domain/throttle"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Mode is one reaction behavior.
type Mode interface {
	Name() string
	TryHandle(ctx context.Context, c *Cycle) (model.Result, error)
}

// Cycle is everything a mode may read about the event being dispatched.
// State is loaded once per attempt so every gate sees the same snapshot.
type Cycle struct {
	Event      model.Event
	Follower   model.Follower
	Subscriber bool
	State      model.UserState
	Now        time.Time
}

// Store persists per-actor state and favorite posts.
type Store interface {
	Load(ctx context.Context, did string) (model.UserState, error)
	InsertIfAbsent(ctx context.Context, did string, now time.Time) error
	Set(ctx context.Context, did, column string, value any) error
	UpdateBestPost(ctx context.Context, did, post string, score int, now time.Time) (bool, error)
	FavoritePost(ctx context.Context, did string) (model.FavoritePost, bool, error)
}

// Poster performs the bot's visible actions.
type Poster interface {
	Reply(ctx context.Context, event model.Event, text string) error
	Repost(ctx context.Context, uri, cid string) error
	// Quote publishes text as a new post embedding event.
	Quote(ctx context.Context, event model.Event, text string) error
}

// Activity reads an actor's recent public activity.
type Activity interface {
	RecentPosts(ctx context.Context, did string, n int) ([]string, error)
	Likes(ctx context.Context, did string, n int) ([]string, error)
}

// Generator produces reply text. Failures wrap model.ErrGeneration.
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (model.Generation, error)
	Judge(ctx context.Context, req model.GenerationRequest) (model.Judgement, error)
}

// Deps are the collaborators shared by every mode.
type Deps struct {
	Store     Store
	Poster    Poster
	Generator Generator
	// Activity may be nil; analyze then works from stored posts only.
	Activity  Activity
	Budget    *budget.Budget
	Gate      *throttle.Gate
	Ledger    dedupe.Deduper
	Logger    logger.Logger
}

// Registry tries modes in order.
type Registry struct {
	modes  []Mode
	logger logger.Logger
}

// NewRegistry returns a registry over modes in the given priority order.
func NewRegistry(log logger.Logger, modes ...Mode) *Registry {
	return &Registry{modes: modes, logger: log}
}

// Modes returns the mode names in priority order.
func (r *Registry) Modes() []string {
	names := make([]string, len(r.modes))
	for i, m := range r.modes {
		names[i] = m.Name()
	}
	return names
}

// Dispatch runs the chain for one cycle and returns the first claiming result.
// An unclaimed result with a nil error means no mode reacted.
func (r *Registry) Dispatch(ctx context.Context, c *Cycle) (model.Result, error) {
	for _, m := range r.modes {
		res, err := m.TryHandle(ctx, c)
		if err != nil {
			if errors.Is(err, model.ErrGeneration) || errors.Is(err, model.ErrValidation) {
				metrics.RecordModeFailure(m.Name())
				r.logger.Warn(ctx, "mode failed, falling through",
					logger.String("mode", m.Name()),
					logger.String("did", c.Event.ActorDID),
					logger.Error(err))
				continue
			}
			return model.Result{}, err
		}
		if res.Claimed {
			if res.Mode == "" {
				res.Mode = m.Name()
			}
			metrics.RecordModeClaim(res.Mode)
			return res, nil
		}
	}
	return model.Result{}, nil
}
