// Package service wires intake, the sharded queue, the worker pool and the
// dispatcher into the bot's runtime, and exposes what the HTTP API needs.
package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	eventqueue "github.com/okian/affirmbot/internal/adapters/mq/queue"
	workerpool "github.com/okian/affirmbot/internal/adapters/mq/worker"
	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/audience"
	"github.com/okian/affirmbot/internal/domain/budget"
	"github.com/okian/affirmbot/internal/domain/dedupe"
	"github.com/okian/affirmbot/internal/domain/dispatch"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/internal/domain/modes"
	"github.com/okian/affirmbot/internal/domain/spam"
	"github.com/okian/affirmbot/internal/domain/throttle"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Errors returned by Start.
var (
	ErrMissingDependency = errors.New("service: missing dependency")
)

// Outcome says what intake did with an event.
type Outcome string

// Intake outcomes. Anything but Queued and Duplicate is a drop.
const (
	OutcomeQueued      Outcome = "queued"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeSelf        Outcome = "self"
	OutcomeNotFollower Outcome = "not_follower"
	OutcomeQueueFull   Outcome = "queue_full"
	OutcomeStopped     Outcome = "stopped"
)

// Store is what the service needs from persistence.
type Store interface {
	modes.Store
	Count(ctx context.Context) (int, error)
}

// Service owns the event pipeline.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Collaborators
	store     Store
	poster    modes.Poster
	generator modes.Generator
	activity  modes.Activity
	labels    spam.LabelLookup
	quotes    spam.QuoteResolver
	alerter   dispatch.Alerter
	audience  *audience.Holder
	botDID    func() string
	rng       *rand.Rand
	clock     func() time.Time

	// Pipeline
	deduper    dedupe.Deduper
	ledger     dedupe.Deduper
	budget     *budget.Budget
	registry   *modes.Registry
	dispatcher *dispatch.Dispatcher
	queue      *eventqueue.ShardedQueue
	pool       *workerpool.Pool

	started bool
	logger  logger.Logger
}

// New constructs a Service. Start builds the pipeline.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:      cfg,
		audience: audience.NewHolder(),
		botDID:   func() string { return cfg.BotDID },
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s
}

// Start builds the pipeline and starts one worker per shard.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil || s.poster == nil || s.generator == nil {
		return ErrMissingDependency
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.ledger = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.budget = budget.New(s.cfg.DailyCap,
		budget.WithTimezoneOffset(s.cfg.TimezoneOffsetMinutes),
		budget.WithClock(s.clock))
	metrics.UpdateBudgetCap(s.cfg.DailyCap)

	s.registry = modes.Chain(s.cfg, &modes.Deps{
		Store:     s.store,
		Poster:    s.poster,
		Generator: s.generator,
		Activity:  s.activity,
		Budget:    s.budget,
		Gate:      throttle.NewGate(s.rng),
		Ledger:    s.ledger,
		Logger:    logger.Named("modes"),
	})
	filter := spam.New(s.labels, s.quotes,
		spam.WithKeywords(s.cfg.SpamKeywords),
		spam.WithForbiddenLabels(s.cfg.ForbiddenLabels))
	dopts := []dispatch.Option{
		dispatch.WithAttempts(s.cfg.RetryAttempts),
		dispatch.WithClock(s.clock),
	}
	if s.alerter != nil {
		dopts = append(dopts, dispatch.WithAlerter(s.alerter))
	}
	s.dispatcher = dispatch.New(filter, s.registry, s.store, dopts...)

	s.queue = eventqueue.NewShardedQueue(
		eventqueue.WithCapacity(s.cfg.EventQueueSize),
		eventqueue.WithShards(s.cfg.WorkerCount))
	s.pool = workerpool.NewPool(s.queue, workerpool.ProcessorFunc(s.process))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Capacity()),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.Int("dailyCap", s.cfg.DailyCap),
		logger.Any("modes", s.registry.Modes()))
	return nil
}

func (s *Service) process(ctx context.Context, e model.Event) {
	s.dispatcher.Process(ctx, e, s.audience.Current())
}

// Stop closes the queue and waits for workers to drain.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "service stopped", logger.Int64("processed", s.pool.Processed()))
	return err
}

// Submit implements firehose.Sink. It reports whether the event is (or
// already was) accepted.
func (s *Service) Submit(ctx context.Context, e model.Event) bool {
	o := s.Intake(ctx, e)
	return o == OutcomeQueued || o == OutcomeDuplicate
}

// Intake drops events the bot must ignore and queues the rest by actor.
func (s *Service) Intake(ctx context.Context, e model.Event) Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return s.drop(ctx, e, OutcomeStopped)
	}
	if err := e.Validate(); err != nil {
		return s.drop(ctx, e, OutcomeInvalid)
	}
	if bot := s.botDID(); bot != "" && e.ActorDID == bot {
		return s.drop(ctx, e, OutcomeSelf)
	}
	if _, ok := s.audience.Current().Follower(e.ActorDID); !ok {
		return s.drop(ctx, e, OutcomeNotFollower)
	}
	if s.deduper.SeenAndRecord(ctx, e.ID()) {
		metrics.RecordEventDropped(string(OutcomeDuplicate))
		return OutcomeDuplicate
	}
	if !s.queue.Enqueue(ctx, e) {
		s.deduper.Unrecord(ctx, e.ID())
		return s.drop(ctx, e, OutcomeQueueFull)
	}
	return OutcomeQueued
}

func (s *Service) drop(ctx context.Context, e model.Event, o Outcome) Outcome {
	metrics.RecordEventDropped(string(o))
	s.logger.Debug(ctx, "event dropped",
		logger.String("reason", string(o)),
		logger.String("did", e.ActorDID),
		logger.String("event", e.ID()))
	return o
}

// Audience returns the holder refreshed by the audience refresher.
func (s *Service) Audience() *audience.Holder { return s.audience }

// FavoritePost returns the best-scored post recorded for did.
func (s *Service) FavoritePost(ctx context.Context, did string) (model.FavoritePost, bool, error) {
	return s.store.FavoritePost(ctx, did)
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Started       bool      `json:"started"`
	Workers       int       `json:"workers"`
	QueueLength   int       `json:"queue_length"`
	QueueCapacity int       `json:"queue_capacity"`
	Processed     int64     `json:"processed"`
	DedupeSize    int64     `json:"dedupe_size"`
	BudgetUsed    int       `json:"budget_used"`
	BudgetCap     int       `json:"budget_cap"`
	BudgetWindow  time.Time `json:"budget_window_start"`
	Followers     int       `json:"followers"`
	Subscribers   int       `json:"subscribers"`
	KnownActors   int       `json:"known_actors"`
	Modes         []string  `json:"modes"`
}

// GetStats returns service statistics and refreshes the matching gauges.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aud := s.audience.Current()
	st := Stats{
		Started:     s.started,
		Followers:   aud.Followers(),
		Subscribers: aud.Subscribers(),
	}
	if s.pool == nil {
		return st
	}

	st.Workers = s.pool.Size()
	st.QueueLength = s.queue.Len(ctx)
	st.QueueCapacity = s.queue.Capacity()
	st.Processed = s.pool.Processed()
	st.DedupeSize = s.deduper.Size()
	st.BudgetUsed = s.budget.Used()
	st.BudgetCap = s.budget.Cap()
	st.BudgetWindow = s.budget.WindowStart()
	st.Modes = s.registry.Modes()
	if n, err := s.store.Count(ctx); err == nil {
		st.KnownActors = n
	} else {
		s.logger.Warn(ctx, "count actors failed", logger.Error(err))
	}

	metrics.UpdateQueueSize(st.QueueLength)
	metrics.UpdateWorkerCount(st.Workers)
	metrics.UpdateBudgetUsed(st.BudgetUsed)
	return st
}
