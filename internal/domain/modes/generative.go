package modes

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// generative answers with generated text. It costs one unit of daily budget.
type generative struct {
	name           string
	column         string
	intervalMin    int
	subscriberOnly bool
	match          func(c *Cycle) bool
	// enrich adds mode-specific input to the request before generation.
	enrich         func(ctx context.Context, c *Cycle, req *model.GenerationRequest) error
	deps           *Deps
}

func (m *generative) Name() string { return m.name }

func (m *generative) TryHandle(ctx context.Context, c *Cycle) (model.Result, error) {
	if m.subscriberOnly && !c.Subscriber {
		return model.Result{}, nil
	}
	if !m.match(c) || !m.deps.interval(ctx, c, m.name, m.column, m.intervalMin, false) {
		return model.Result{}, nil
	}
	if m.deps.effectDone(ctx, c, effectReply) {
		return model.Claimed(m.name, ""), nil
	}

	hold, ok := m.deps.Budget.Reserve()
	if !ok {
		metrics.RecordBudgetDenied(m.name)
		m.deps.Logger.Info(ctx, "daily budget exhausted", logger.String("mode", m.name))
		return model.Result{}, nil
	}
	defer hold.Cancel()

	req := generationRequest(m.name, c, c.Event.Text)
	if m.enrich != nil {
		if err := m.enrich(ctx, c, &req); err != nil {
			return model.Result{}, err
		}
	}
	gen, err := m.deps.Generator.Generate(ctx, req)
	if err != nil {
		return model.Result{}, err
	}
	if strings.TrimSpace(gen.Text) == "" {
		return model.Result{}, fmt.Errorf("%s: %w: empty text", m.name, model.ErrGeneration)
	}

	if err := m.deps.reply(ctx, c, gen.Text); err != nil {
		return model.Result{}, err
	}
	hold.Commit()
	m.deps.touch(ctx, c, m.name, m.column)
	return model.Claimed(m.name, gen.Text), nil
}

// addressedWith matches posts to the bot containing one of triggers.
func addressedWith(triggers []string) func(c *Cycle) bool {
	return func(c *Cycle) bool {
		return c.Event.Addressed() && matchesAny(c.Event.Text, triggers)
	}
}

// analyzeSample is how many recent posts and likes an analysis reads.
const analyzeSample = 20

// withActivity feeds the actor's recent posts, stored favorite post and
// liked posts into the request. Remote lookups that fail are logged and
// skipped; a failing store is returned.
func withActivity(d *Deps) func(ctx context.Context, c *Cycle, req *model.GenerationRequest) error {
	return func(ctx context.Context, c *Cycle, req *model.GenerationRequest) error {
		did := c.Event.ActorDID
		posts := []string{c.Event.Text}
		seen := map[string]bool{c.Event.Text: true}
		add := func(texts ...string) {
			for _, t := range texts {
				if t != "" && !seen[t] {
					seen[t] = true
					posts = append(posts, t)
				}
			}
		}

		if d.Activity != nil {
			recent, err := d.Activity.RecentPosts(ctx, did, analyzeSample)
			if err != nil {
				d.activityFailed(ctx, "recent_posts", did, err)
			}
			add(recent...)

			likes, err := d.Activity.Likes(ctx, did, analyzeSample)
			if err != nil {
				d.activityFailed(ctx, "likes", did, err)
			}
			req.Likes = likes
		}

		fav, ok, err := d.Store.FavoritePost(ctx, did)
		if err != nil {
			return fmt.Errorf("load favorite post: %w", err)
		}
		if ok {
			add(fav.Post)
		}
		req.Posts = posts
		return nil
	}
}

func (d *Deps) activityFailed(ctx context.Context, what, did string, err error) {
	metrics.RecordErrorByComponent("modes", "activity_"+what)
	d.Logger.Warn(ctx, "activity lookup failed, analyzing without it",
		logger.String("lookup", what),
		logger.String("did", did),
		logger.Error(err))
}
