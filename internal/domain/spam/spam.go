// Package spam rejects donation-bait posts and accounts carrying forbidden
// moderation labels before any mode looks at them.
package spam

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/affirmbot/internal/domain/model"
)

// Default filter lists.
var (
	DefaultKeywords = []string{"donate", "donation", "donating", "gofund.me", "paypal.me"}
	DefaultLabels   = []string{"spam"}
)

// Rejection reasons.
const (
	ReasonText  = "text_keyword"
	ReasonEmbed = "embed_keyword"
	ReasonLabel = "forbidden_label"
)

// LabelLookup returns the moderation label values on an actor's profile.
type LabelLookup interface {
	Labels(ctx context.Context, did string) ([]string, error)
}

// QuoteResolver returns the text of a quoted post.
type QuoteResolver interface {
	QuotedText(ctx context.Context, uri string) (string, error)
}

// Verdict is the outcome of an inspection. A rejection is not an error.
type Verdict struct {
	Allow  bool
	Reason string
}

// Filter inspects events. It holds no per-event state.
type Filter struct {
	keywords []string
	labels   map[string]struct{}
	lookup   LabelLookup
	quotes   QuoteResolver
}

// New builds a filter. Empty lists fall back to the defaults.
func New(lookup LabelLookup, quotes QuoteResolver, opts ...Option) *Filter {
	f := &Filter{lookup: lookup, quotes: quotes}
	for _, opt := range opts {
		opt(f)
	}
	if len(f.keywords) == 0 {
		WithKeywords(DefaultKeywords)(f)
	}
	if len(f.labels) == 0 {
		WithForbiddenLabels(DefaultLabels)(f)
	}
	return f
}

// Inspect checks the post text, then the embed, then the actor's labels.
// Lookup failures are returned wrapped in model.ErrTransient.
func (f *Filter) Inspect(ctx context.Context, event model.Event) (Verdict, error) {
	if f.containsKeyword(event.Text) {
		return Verdict{Reason: ReasonText}, nil
	}

	if event.Embed != nil {
		embedText := event.Embed.Text + "\n" + event.Embed.ImageAlt
		if event.Embed.QuotedURI != "" && event.Embed.Text == "" && f.quotes != nil {
			quoted, err := f.quotes.QuotedText(ctx, event.Embed.QuotedURI)
			if err != nil {
				return Verdict{}, fmt.Errorf("%w: resolve quote: %v", model.ErrTransient, err)
			}
			embedText += "\n" + quoted
		}
		if f.containsKeyword(embedText) || f.containsKeyword(event.Embed.URI) {
			return Verdict{Reason: ReasonEmbed}, nil
		}
	}

	if f.lookup != nil {
		labels, err := f.lookup.Labels(ctx, event.ActorDID)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: profile labels: %v", model.ErrTransient, err)
		}
		for _, l := range labels {
			if _, bad := f.labels[l]; bad {
				return Verdict{Reason: ReasonLabel}, nil
			}
		}
	}

	return Verdict{Allow: true}, nil
}

func (f *Filter) containsKeyword(s string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, k := range f.keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
