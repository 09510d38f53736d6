package modes

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/okian/affirmbot/internal/domain/dedupe"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/internal/domain/throttle"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Effect names used as ledger keys.
const (
	effectReply  = "reply"
	effectRepost = "repost"
	effectQuote  = "quote"
)

// effectDone reports whether a previous attempt already performed effect for
// this event.
func (d *Deps) effectDone(ctx context.Context, c *Cycle, effect string) bool {
	if d.Ledger == nil {
		return false
	}
	if d.Ledger.Seen(ctx, dedupe.Key(c.Event.ID(), effect)) {
		metrics.RecordEffectSkipped(effect)
		return true
	}
	return false
}

// once runs fn unless the ledger shows effect already happened for this event.
// A failed fn is unrecorded so the next attempt can try again.
func (d *Deps) once(ctx context.Context, c *Cycle, effect string, fn func() error) error {
	if d.Ledger == nil {
		return fn()
	}
	key := dedupe.Key(c.Event.ID(), effect)
	if d.Ledger.SeenAndRecord(ctx, key) {
		metrics.RecordEffectSkipped(effect)
		return nil
	}
	if err := fn(); err != nil {
		d.Ledger.Unrecord(ctx, key)
		return err
	}
	return nil
}

func (d *Deps) reply(ctx context.Context, c *Cycle, text string) error {
	return d.once(ctx, c, effectReply, func() error {
		if err := d.Poster.Reply(ctx, c.Event, text); err != nil {
			return fmt.Errorf("reply to %s: %w", c.Event.URI(), err)
		}
		return nil
	})
}

func (d *Deps) repost(ctx context.Context, c *Cycle) error {
	return d.once(ctx, c, effectRepost, func() error {
		if err := d.Poster.Repost(ctx, c.Event.URI(), c.Event.CID); err != nil {
			return fmt.Errorf("repost %s: %w", c.Event.URI(), err)
		}
		return nil
	})
}

func (d *Deps) quote(ctx context.Context, c *Cycle, text string) error {
	return d.once(ctx, c, effectQuote, func() error {
		if err := d.Poster.Quote(ctx, c.Event, text); err != nil {
			return fmt.Errorf("quote %s: %w", c.Event.URI(), err)
		}
		return nil
	})
}

// touch records a reaction in column. Failures are logged only: the visible
// effect already happened.
func (d *Deps) touch(ctx context.Context, c *Cycle, mode, column string) {
	did := c.Event.ActorDID
	if err := d.Store.InsertIfAbsent(ctx, did, c.Now); err != nil {
		d.bookkeepingFailed(ctx, mode, did, err)
		return
	}
	if err := d.Store.Set(ctx, did, column, c.Now); err != nil {
		d.bookkeepingFailed(ctx, mode, did, err)
	}
}

func (d *Deps) bookkeepingFailed(ctx context.Context, mode, did string, err error) {
	metrics.RecordErrorByComponent("modes", "bookkeeping")
	d.Logger.Error(ctx, "state update failed after reaction",
		logger.String("mode", mode),
		logger.String("did", did),
		logger.Error(err))
}

// interval applies a mode's own window. Only the default affirmation lets
// subscribers bypass its window; the other modes pass bypass=false.
func (d *Deps) interval(ctx context.Context, c *Cycle, mode, column string, minutes int, bypass bool) bool {
	if minutes <= 0 || throttle.MayRespond(c.State, column, time.Duration(minutes)*time.Minute, bypass, c.Now) {
		return true
	}
	metrics.RecordThrottleBlocked(mode, "interval")
	d.Logger.Debug(ctx, "throttled", logger.String("mode", mode), logger.String("did", c.Event.ActorDID))
	return false
}

// matchesAny reports whether text contains any trigger. Case and character
// width are ignored, so "ＦＲＥＱ" matches "freq".
func matchesAny(text string, triggers []string) bool {
	_, ok := findTrigger(normalize(text), triggers)
	return ok
}

// normalize folds full-width forms to their narrow equivalents and lowers
// case.
func normalize(text string) string {
	return strings.ToLower(width.Fold.String(text))
}

// findTrigger returns the offset just past the first trigger found in the
// normalized text. A trigger that starts or ends with an ASCII word character
// only matches at a word boundary on that side: "freq" fires on "freq 30" and
// "freq30" but not on "frequently".
func findTrigger(text string, triggers []string) (int, bool) {
	for _, t := range triggers {
		t = normalize(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		for from := 0; from < len(text); {
			i := strings.Index(text[from:], t)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(t)
			if atBoundary(text, t, start, end) {
				return end, true
			}
			_, size := utf8.DecodeRuneInString(text[start:])
			from = start + size
		}
	}
	return 0, false
}

func atBoundary(text, trigger string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(trigger)
	if asciiWord(first) && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if prev == '_' || unicode.IsDigit(prev) || unicode.Is(unicode.Latin, prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(trigger)
	if asciiWord(last) && end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if next == '_' || unicode.Is(unicode.Latin, next) {
			return false
		}
	}
	return true
}

func asciiWord(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')
}

func generationRequest(mode string, c *Cycle, posts ...string) model.GenerationRequest {
	name := c.Follower.DisplayName
	if name == "" {
		name = c.Follower.Handle
	}
	return model.GenerationRequest{
		Mode:     mode,
		Locale:   c.Event.Locale(),
		UserName: name,
		Posts:    posts,
		IsU18:    c.State.IsU18,
	}
}
