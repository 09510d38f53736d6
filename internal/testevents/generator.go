package testevents

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
)

// plainPosts are everyday posts that fall through to the affirmation.
var plainPosts = []string{
	"今日は5km走った",
	"finally finished the report",
	"パンを焼いてみた",
	"new job starts tomorrow",
	"部屋の掃除ができた",
	"learned a new song on guitar",
}

// triggerShare is the fraction of posts that carry a command trigger.
const triggerShare = 0.3

// generatePosts builds n synthetic posts spread over the given number of actors.
// Roughly a third carry a trigger phrase from the default configuration.
func generatePosts(ctx context.Context, cfg *Config, rng *rand.Rand, stats *Stats) []model.Event {
	logger.Get().Info(ctx, "generating posts", logger.Int("numEvents", cfg.NumEvents), logger.Int("actors", cfg.Actors))

	actors := make([]string, max(cfg.Actors, 1))
	for i := range actors {
		actors[i] = fmt.Sprintf("did:plc:load%04d", i)
	}
	triggers := triggerPhrases(config.New())

	posts := make([]model.Event, cfg.NumEvents)
	now := time.Now().UTC()
	for i := range posts {
		text := plainPosts[rng.IntN(len(plainPosts))]
		if len(triggers) > 0 && rng.Float64() < triggerShare {
			text = triggers[rng.IntN(len(triggers))] + " " + text
		}
		rkey := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
		posts[i] = model.Event{
			ActorDID:   actors[rng.IntN(len(actors))],
			Collection: model.PostCollection,
			RecordKey:  rkey,
			CID:        "bafyload" + rkey,
			Text:       text,
			CreatedAt:  now.Add(time.Duration(i) * time.Millisecond),
			Langs:      []string{localeFor(text)},
		}
	}

	stats.EventsGenerated = len(posts)
	return posts
}

// triggerPhrases flattens every mode's keywords into one list.
func triggerPhrases(cfg *config.Config) []string {
	var out []string
	for _, words := range cfg.Triggers {
		out = append(out, words...)
	}
	return out
}

func localeFor(text string) string {
	for _, r := range text {
		if r > 0x3000 {
			return "ja"
		}
	}
	return "en"
}
