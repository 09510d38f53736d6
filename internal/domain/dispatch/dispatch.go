// Package dispatch runs the filter and mode chain for one event inside a
// bounded retry envelope. Whatever happens, Process returns normally: one
// event's failure must never stop the stream.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/internal/domain/modes"
	"github.com/okian/affirmbot/internal/domain/spam"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Filter decides whether an event may be reacted to.
type Filter interface {
	Inspect(ctx context.Context, event model.Event) (spam.Verdict, error)
}

// Chain tries the reaction modes.
type Chain interface {
	Dispatch(ctx context.Context, c *modes.Cycle) (model.Result, error)
}

// StateLoader reads the per-actor snapshot used by every gate in one attempt.
type StateLoader interface {
	Load(ctx context.Context, did string) (model.UserState, error)
}

// Audience is a read-only view of followers and subscribers.
type Audience interface {
	Follower(did string) (model.Follower, bool)
	IsSubscriber(did string) bool
}

// Alerter is told about events that exhausted their attempts.
type Alerter interface {
	Alert(ctx context.Context, event model.Event, err error) error
}

// Dispatcher is the retrying envelope around filter and chain.
type Dispatcher struct {
	filter   Filter
	chain    Chain
	states   StateLoader
	alerter  Alerter
	attempts int
	backoff  time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// New builds a dispatcher making up to three attempts per event.
func New(filter Filter, chain Chain, states StateLoader, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		filter:   filter,
		chain:    chain,
		states:   states,
		attempts: DefaultAttempts,
		backoff:  500 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Named("dispatch")
	}
	return d
}

// Process filters and dispatches event. Errors are retried, then logged,
// counted and alerted; they are never returned.
func (d *Dispatcher) Process(ctx context.Context, event model.Event, aud Audience) model.Result {
	start := time.Now()
	defer func() {
		metrics.RecordProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	follower, _ := aud.Follower(event.ActorDID)
	subscriber := aud.IsSubscriber(event.ActorDID)

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		// Everything logged during the attempt, in modes and adapters too,
		// carries the trace.
		actx := logger.ContextWith(ctx, logger.String("trace", uuid.NewString()))
		res, err := d.attempt(actx, event, follower, subscriber)
		if err == nil {
			if res.Claimed {
				d.logger.Info(actx, "event handled",
					logger.String("did", event.ActorDID),
					logger.String("mode", res.Mode),
					logger.Int("attempt", attempt))
			}
			return res
		}
		lastErr = err

		if !retryable(ctx, err) {
			metrics.RecordErrorByComponent("dispatch", "not_retryable")
			d.logger.Error(actx, "event failed without retry",
				logger.String("did", event.ActorDID),
				logger.String("event", event.ID()),
				logger.Error(err))
			return model.Result{}
		}

		d.logger.Warn(actx, "event attempt failed",
			logger.String("did", event.ActorDID),
			logger.String("event", event.ID()),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if attempt < d.attempts {
			metrics.RecordDispatchRetry()
			if !d.sleep(ctx, time.Duration(attempt)*d.backoff) {
				return model.Result{}
			}
		}
	}

	metrics.RecordDispatchExhausted()
	metrics.RecordErrorByComponent("dispatch", "exhausted")
	d.logger.Error(ctx, "event dropped after retries",
		logger.String("did", event.ActorDID),
		logger.String("event", event.ID()),
		logger.Int("attempts", d.attempts),
		logger.Error(lastErr))
	if d.alerter != nil {
		if err := d.alerter.Alert(ctx, event, lastErr); err != nil {
			d.logger.Warn(ctx, "alert failed", logger.Error(err))
		}
	}
	return model.Result{}
}

// attempt runs one full filter+dispatch pass from scratch.
func (d *Dispatcher) attempt(ctx context.Context, event model.Event, follower model.Follower, subscriber bool) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("dispatch", "panic")
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	verdict, err := d.filter.Inspect(ctx, event)
	if err != nil {
		return model.Result{}, fmt.Errorf("spam filter: %w", err)
	}
	if !verdict.Allow {
		metrics.RecordEventRejected(verdict.Reason)
		d.logger.Debug(ctx, "event rejected",
			logger.String("did", event.ActorDID),
			logger.String("reason", verdict.Reason))
		return model.Result{}, nil
	}

	state, err := d.states.Load(ctx, event.ActorDID)
	if err != nil {
		return model.Result{}, fmt.Errorf("load state: %w", err)
	}

	return d.chain.Dispatch(ctx, &modes.Cycle{
		Event:      event,
		Follower:   follower,
		Subscriber: subscriber,
		State:      state,
		Now:        d.now(),
	})
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, model.ErrValidation)
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
