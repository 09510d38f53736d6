package modes

import (
	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/model"
)

// Chain builds the fixed reaction order:
//
//	u18 release, u18 register, frequency, diary register, diary release,
//	fortune, analyze, dj, conversation, cheer, affirmation.
func Chain(cfg *config.Config, deps *Deps) *Registry {
	triggers := cfg.TriggersFor
	interval := cfg.Interval

	return NewRegistry(deps.Logger,
		&toggle{name: config.ModeU18Release, triggers: triggers(config.ModeU18Release),
			column: model.ColIsU18, value: false, ack: msgU18Release, deps: deps},
		&toggle{name: config.ModeU18Register, triggers: triggers(config.ModeU18Register),
			column: model.ColIsU18, value: true, ack: msgU18Register, deps: deps},
		&frequency{name: config.ModeFrequency, triggers: triggers(config.ModeFrequency), deps: deps},
		&toggle{name: config.ModeDiaryOn, triggers: triggers(config.ModeDiaryOn),
			column: model.ColIsDiary, value: true, ack: msgDiaryOn, deps: deps},
		&toggle{name: config.ModeDiaryOff, triggers: triggers(config.ModeDiaryOff),
			column: model.ColIsDiary, value: false, ack: msgDiaryOff, deps: deps},
		&generative{name: config.ModeFortune, column: model.ColLastFortuneAt,
			intervalMin: interval(config.ModeFortune),
			match:       addressedWith(triggers(config.ModeFortune)), deps: deps},
		&generative{name: config.ModeAnalyze, column: model.ColLastAnalyzeAt,
			intervalMin: interval(config.ModeAnalyze),
			match:       addressedWith(triggers(config.ModeAnalyze)),
			enrich:      withActivity(deps), deps: deps},
		&generative{name: config.ModeDJ, column: model.ColLastDJAt, subscriberOnly: true,
			intervalMin: interval(config.ModeDJ),
			match:       addressedWith(triggers(config.ModeDJ)), deps: deps},
		&generative{name: config.ModeConversation, column: model.ColLastConversationAt, subscriberOnly: true,
			intervalMin: interval(config.ModeConversation),
			match:       func(c *Cycle) bool { return c.Event.ReplyToBot }, deps: deps},
		&cheer{triggers: triggers(config.ModeCheer), intervalMin: interval(config.ModeCheer), deps: deps},
		&affirmation{intervalMin: interval(config.ModeAffirmation), deps: deps},
	)
}
