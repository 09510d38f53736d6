package modes

import (
	"context"
	"strings"

	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// affirmation is the terminal mode: an encouraging reply to a plain post.
// Nothing follows it, so its failures are logged and never returned.
type affirmation struct {
	intervalMin int
	deps        *Deps
}

func (m *affirmation) Name() string { return config.ModeAffirmation }

func (m *affirmation) TryHandle(ctx context.Context, c *Cycle) (model.Result, error) {
	const mode = config.ModeAffirmation
	if c.Event.IsReply || c.Event.IsMention {
		return model.Result{}, nil
	}
	if !m.deps.interval(ctx, c, mode, model.ColUpdatedAt, m.intervalMin, c.Subscriber) {
		return model.Result{}, nil
	}
	pass, err := m.deps.Gate.PassesFrequency(c.State.ReplyFreq)
	if err != nil {
		m.fail(ctx, c, "frequency gate", err)
		return model.Result{}, nil
	}
	if !pass {
		metrics.RecordThrottleBlocked(mode, "frequency")
		return model.Result{}, nil
	}
	if m.deps.effectDone(ctx, c, effectReply) {
		return model.Claimed(mode, ""), nil
	}

	gen, err := m.deps.Generator.Generate(ctx, generationRequest(mode, c, c.Event.Text))
	if err != nil {
		m.fail(ctx, c, "generate", err)
		return model.Result{}, nil
	}
	if strings.TrimSpace(gen.Text) == "" {
		m.fail(ctx, c, "generate", model.ErrGeneration)
		return model.Result{}, nil
	}
	if err := m.deps.reply(ctx, c, gen.Text); err != nil {
		m.fail(ctx, c, "reply", err)
		return model.Result{}, nil
	}

	metrics.RecordAffirmation()
	m.deps.touch(ctx, c, mode, model.ColUpdatedAt)

	if gen.Score > 0 && !looksLikeBot(c.Follower.DisplayName) {
		updated, err := m.deps.Store.UpdateBestPost(ctx, c.Event.ActorDID, c.Event.Text, gen.Score, c.Now)
		switch {
		case err != nil:
			m.deps.bookkeepingFailed(ctx, mode, c.Event.ActorDID, err)
		case updated:
			metrics.RecordFavoritePostUpdate()
		}
	}

	res := model.Claimed(mode, gen.Text)
	res.Score = gen.Score
	return res, nil
}

func (m *affirmation) fail(ctx context.Context, c *Cycle, step string, err error) {
	metrics.RecordModeFailure(config.ModeAffirmation)
	m.deps.Logger.Error(ctx, "affirmation failed",
		logger.String("step", step),
		logger.String("did", c.Event.ActorDID),
		logger.Error(err))
}

func looksLikeBot(displayName string) bool {
	return strings.Contains(strings.ToLower(displayName), "bot")
}
