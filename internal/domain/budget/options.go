package budget

import "time"

// Option configures a Budget.
type Option func(*Budget)

// WithTimezoneOffset places the day boundary at local midnight for a fixed
// offset from UTC, e.g. 540 minutes for JST.
func WithTimezoneOffset(minutes int) Option {
	return func(b *Budget) {
		b.loc = time.FixedZone("", minutes*60)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Budget) {
		if now != nil {
			b.now = now
		}
	}
}
