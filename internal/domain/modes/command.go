package modes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/okian/affirmbot/internal/domain/model"
)

// toggle sets a boolean column when the bot is asked to, then acknowledges.
type toggle struct {
	name     string
	triggers []string
	column   string
	value    bool
	ack      map[string]string
	deps     *Deps
}

func (m *toggle) Name() string { return m.name }

func (m *toggle) TryHandle(ctx context.Context, c *Cycle) (model.Result, error) {
	if !c.Event.Addressed() || !matchesAny(c.Event.Text, m.triggers) {
		return model.Result{}, nil
	}
	if m.deps.effectDone(ctx, c, effectReply) {
		return model.Claimed(m.name, ""), nil
	}
	if err := m.deps.Store.Set(ctx, c.Event.ActorDID, m.column, m.value); err != nil {
		return model.Result{}, fmt.Errorf("%s: set %s: %w", m.name, m.column, err)
	}
	text := localized(m.ack, c.Event.Locale())
	if err := m.deps.reply(ctx, c, text); err != nil {
		return model.Result{}, err
	}
	return model.Claimed(m.name, text), nil
}

var percentPattern = regexp.MustCompile(`-?\d+`)

// frequency stores the actor's reply-frequency percentage.
type frequency struct {
	name     string
	triggers []string
	deps     *Deps
}

func (m *frequency) Name() string { return m.name }

func (m *frequency) TryHandle(ctx context.Context, c *Cycle) (model.Result, error) {
	if !c.Event.Addressed() || !matchesAny(c.Event.Text, m.triggers) {
		return model.Result{}, nil
	}
	if m.deps.effectDone(ctx, c, effectReply) {
		return model.Claimed(m.name, ""), nil
	}

	locale := c.Event.Locale()
	percent, ok := parsePercent(c.Event.Text, m.triggers)
	if !ok {
		text := localized(msgFreqUsage, locale)
		if err := m.deps.reply(ctx, c, text); err != nil {
			return model.Result{}, err
		}
		return model.Claimed(m.name, text), nil
	}

	if err := m.deps.Store.Set(ctx, c.Event.ActorDID, model.ColReplyFreq, percent); err != nil {
		return model.Result{}, fmt.Errorf("%s: set %s: %w", m.name, model.ColReplyFreq, err)
	}
	text := freqAck(locale, percent)
	if err := m.deps.reply(ctx, c, text); err != nil {
		return model.Result{}, err
	}
	return model.Claimed(m.name, text), nil
}

// parsePercent returns the first integer after the trigger if it lies in
// [0,100]. Digits in a leading @handle are skipped that way. Full-width
// digits count.
func parsePercent(text string, triggers []string) (int, bool) {
	norm := normalize(text)
	if end, ok := findTrigger(norm, triggers); ok {
		norm = norm[end:]
	}
	m := percentPattern.FindString(norm)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}
