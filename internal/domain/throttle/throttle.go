// Package throttle holds the per-actor gates consulted before a reaction:
// the minimum-interval window and the reply-frequency lottery.
package throttle

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/affirmbot/internal/domain/model"
)

// MayRespond reports whether enough time has passed since the timestamp stored
// in column. Subscribers always pass, as does an actor with no timestamp yet.
// state must be the snapshot loaded once for the current event.
func MayRespond(state model.UserState, column string, minInterval time.Duration, subscriber bool, now time.Time) bool {
	if subscriber {
		return true
	}
	last, ok := state.LastAt(column)
	if !ok {
		return true
	}
	return now.Sub(last) >= minInterval
}

// Gate draws the frequency lottery.
type Gate struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGate returns a gate using rng, or a randomly seeded source when rng is nil.
func NewGate(rng *rand.Rand) *Gate {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Gate{rng: rng}
}

// PassesFrequency draws one sample in [0,100) and passes iff it is below
// percent. percent outside [0,100] is an ErrValidation.
func (g *Gate) PassesFrequency(percent int) (bool, error) {
	if percent < 0 || percent > 100 {
		return false, fmt.Errorf("%w: frequency %d not in [0,100]", model.ErrValidation, percent)
	}
	g.mu.Lock()
	sample := g.rng.Float64() * 100
	g.mu.Unlock()
	return sample < float64(percent), nil
}
