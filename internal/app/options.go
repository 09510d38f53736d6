package service

import (
	"math/rand/v2"
	"time"

	"github.com/okian/affirmbot/internal/domain/audience"
	"github.com/okian/affirmbot/internal/domain/dispatch"
	"github.com/okian/affirmbot/internal/domain/modes"
	"github.com/okian/affirmbot/internal/domain/spam"
	"github.com/okian/affirmbot/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the state store.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithPoster sets who performs replies and reposts.
func WithPoster(p modes.Poster) Option {
	return func(s *Service) { s.poster = p }
}

// WithGenerator sets the text generator.
func WithGenerator(g modes.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithActivity sets where analyze reads an actor's posts and likes.
func WithActivity(a modes.Activity) Option {
	return func(s *Service) { s.activity = a }
}

// WithProfileLookups sets the label and quote lookups used by the spam filter.
func WithProfileLookups(labels spam.LabelLookup, quotes spam.QuoteResolver) Option {
	return func(s *Service) {
		s.labels = labels
		s.quotes = quotes
	}
}

// WithAlerter sets where exhausted events are reported.
func WithAlerter(a dispatch.Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithAudience shares an audience holder with the refresher.
func WithAudience(h *audience.Holder) Option {
	return func(s *Service) {
		if h != nil {
			s.audience = h
		}
	}
}

// WithBotDID resolves the bot's own DID; the session may log in late.
func WithBotDID(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.botDID = f
		}
	}
}

// WithRand seeds the frequency gate.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithClock sets the time source for gates and the budget window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
