package modes

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// cheer reposts a subscriber's post after the generator judged it suitable,
// then quotes it with a generated cheer aimed at the bot's followers.
type cheer struct {
	triggers    []string
	intervalMin int
	deps        *Deps
}

func (m *cheer) Name() string { return config.ModeCheer }

func (m *cheer) TryHandle(ctx context.Context, c *Cycle) (model.Result, error) {
	if !c.Subscriber || !matchesAny(c.Event.Text, m.triggers) {
		return model.Result{}, nil
	}
	if !m.deps.interval(ctx, c, config.ModeCheer, model.ColLastCheerAt, m.intervalMin, false) {
		return model.Result{}, nil
	}
	if m.deps.effectDone(ctx, c, effectQuote) {
		return model.Claimed(config.ModeCheer, ""), nil
	}

	hold, ok := m.deps.Budget.Reserve()
	if !ok {
		metrics.RecordBudgetDenied(config.ModeCheer)
		m.deps.Logger.Info(ctx, "daily budget exhausted", logger.String("mode", config.ModeCheer))
		return model.Result{}, nil
	}
	defer hold.Cancel()

	req := generationRequest(config.ModeCheer, c, c.Event.Text)
	verdict, err := m.deps.Generator.Judge(ctx, req)
	if err != nil {
		return model.Result{}, err
	}
	if !verdict.OK {
		m.deps.Logger.Info(ctx, "post judged unsuitable for cheer",
			logger.String("did", c.Event.ActorDID),
			logger.String("comment", verdict.Comment))
		return model.Result{}, nil
	}

	gen, err := m.deps.Generator.Generate(ctx, req)
	if err != nil {
		return model.Result{}, err
	}
	if strings.TrimSpace(gen.Text) == "" {
		return model.Result{}, fmt.Errorf("cheer: %w: empty text", model.ErrGeneration)
	}

	// The quote is the last effect; a retry after a failed quote skips the
	// repost through the ledger.
	if err := m.deps.repost(ctx, c); err != nil {
		return model.Result{}, err
	}
	if err := m.deps.quote(ctx, c, gen.Text); err != nil {
		return model.Result{}, err
	}
	hold.Commit()
	m.deps.touch(ctx, c, config.ModeCheer, model.ColLastCheerAt)
	return model.Claimed(config.ModeCheer, gen.Text), nil
}
