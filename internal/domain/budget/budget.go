// Package budget implements the process-wide daily action budget (RPD) that
// gates every reaction costing a generation call.
//
// The budget is a hard cap: Reserve checks and holds a unit in one step, so two
// concurrent callers can never both spend the last unit. A held unit becomes a
// counted one on Commit, or is released on Cancel. The counter only goes down
// when the window rolls over to a new day, which happens lazily on the first
// call after the boundary.
package budget

import (
	"sync"
	"time"
)

// Budget is a daily counter with a fixed cap. It is safe for concurrent use.
type Budget struct {
	mu          sync.Mutex
	cap         int
	count       int
	pending     int
	windowStart time.Time
	loc         *time.Location
	now         func() time.Time
}

// New creates a budget allowing dailyCap actions per day. Options set the
// timezone of the day boundary and the clock.
func New(dailyCap int, opts ...Option) *Budget {
	b := &Budget{
		cap: dailyCap,
		loc: time.UTC,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.windowStart = b.dayStart(b.now())
	return b
}

// CheckRPD reports whether another action fits in today's budget.
func (b *Budget) CheckRPD() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.count+b.pending < b.cap
}

// Add counts one action unconditionally.
func (b *Budget) Add() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	b.count++
}

// Reserve holds one unit if the cap allows it. The caller must Commit or
// Cancel the returned reservation.
func (b *Budget) Reserve() (*Reservation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	if b.count+b.pending >= b.cap {
		return nil, false
	}
	b.pending++
	return &Reservation{b: b, window: b.windowStart}, true
}

// Used returns committed plus held units in the current window.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.count + b.pending
}

// Cap returns the daily cap.
func (b *Budget) Cap() int {
	return b.cap
}

// WindowStart returns the start of the current day window.
func (b *Budget) WindowStart() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.windowStart
}

func (b *Budget) rollLocked() {
	start := b.dayStart(b.now())
	if start.After(b.windowStart) {
		b.windowStart = start
		b.count = 0
		b.pending = 0
	}
}

func (b *Budget) dayStart(t time.Time) time.Time {
	t = t.In(b.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, b.loc)
}

// Reservation is one held unit of budget.
type Reservation struct {
	b      *Budget
	window time.Time
	once   sync.Once
}

// Commit turns the held unit into a counted action.
func (r *Reservation) Commit() {
	r.settle(true)
}

// Cancel releases the held unit without counting it.
func (r *Reservation) Cancel() {
	r.settle(false)
}

func (r *Reservation) settle(count bool) {
	if r == nil {
		return
	}
	r.once.Do(func() {
		b := r.b
		b.mu.Lock()
		defer b.mu.Unlock()
		b.rollLocked()
		// A reservation from a window that already rolled over was dropped by the reset.
		if !r.window.Equal(b.windowStart) {
			return
		}
		b.pending--
		if count {
			b.count++
		}
	})
}
