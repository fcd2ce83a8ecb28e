package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/catalog"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/outbound"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/internal/scheduler"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
	"github.com/hibiken/asynq"
)

// ErrNoGateway is returned by New when no messaging gateway was configured.
var ErrNoGateway = errors.New("a messaging gateway is required")

// App is the high-level entry point of the concierge.
// It wires the conversation engine and the scheduler around one gateway.
type App struct {
	engine    *runtime.Engine
	scheduler scheduler.Backend
	sessions  *session.Manager
	gateway   ports.MessagingGateway
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

var _ ports.Concierge = (*App)(nil)

type config struct {
	store     ports.SessionStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	gateway   ports.MessagingGateway
	from      string
	prefix    string
	templates outbound.Templates
	catalog   *catalog.Catalog
	hooks     domain.Hooks
	logger    *slog.Logger
	now       func() time.Time
	clock     scheduler.Clock

	dispatchTimeout time.Duration
	retention       time.Duration
	jobQueue        *asynq.RedisClientOpt
}

// Option defines a functional option for configuring the App.
type Option func(*config)

// WithStore sets the session store (default: in-memory, no expiry).
func WithStore(s ports.SessionStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithLocker adds a cross-process lock around every session update.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(c *config) {
		c.locker = l
		c.lockTTL = ttl
	}
}

// WithGateway sets the messaging gateway. Required.
func WithGateway(g ports.MessagingGateway) Option {
	return func(c *config) {
		c.gateway = g
	}
}

// WithFrom sets the origin address of every outbound message.
func WithFrom(from string) Option {
	return func(c *config) {
		c.from = from
	}
}

// WithChannelPrefix sets the scheme added to bare numbers (default "whatsapp:").
func WithChannelPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithTemplates maps reply kinds to provider content templates.
func WithTemplates(t map[domain.ActionKind]string) Option {
	return func(c *config) {
		c.templates = outbound.Templates(t)
	}
}

// WithCatalog replaces the embedded service catalog.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *config) {
		c.catalog = cat
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.Hooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithClock sets the time source for date validation and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithSchedulerClock sets the timer source of the scheduler.
func WithSchedulerClock(clock scheduler.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithScheduler tunes the scheduler's dispatch timeout and job retention.
func WithScheduler(dispatchTimeout, retention time.Duration) Option {
	return func(c *config) {
		c.dispatchTimeout = dispatchTimeout
		c.retention = retention
	}
}

// WithJobQueue keeps scheduled jobs in Redis through asynq instead of in
// memory, so they survive restarts and fire on exactly one replica.
func WithJobQueue(addr, password string, db int) Option {
	return func(c *config) {
		c.jobQueue = &asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
	}
}

// New builds an App. A gateway is required; everything else has a default.
func New(opts ...Option) (*App, error) {
	c := &config{
		prefix:          domain.DefaultChannelPrefix,
		logger:          logging.NewNop(),
		now:             time.Now,
		dispatchTimeout: scheduler.DefaultDispatchTimeout,
		retention:       scheduler.DefaultRetention,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.gateway == nil {
		return nil, ErrNoGateway
	}
	if c.store == nil {
		c.store = memory.NewStore(memory.WithClock(c.now))
	}
	if c.catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		c.catalog = cat
	}

	sessionOpts := []session.Option{
		session.WithLogger(c.logger),
		session.WithClock(c.now),
	}
	if c.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(c.locker))
		if c.lockTTL > 0 {
			sessionOpts = append(sessionOpts, session.WithLockTTL(c.lockTTL))
		}
	}
	sessions := session.NewManager(c.store, sessionOpts...)

	composer := outbound.New(c.gateway, c.from,
		outbound.WithTemplates(c.templates),
		outbound.WithHooks(c.hooks),
		outbound.WithLogger(c.logger),
	)

	engine := runtime.NewEngine(sessions, composer, c.catalog,
		runtime.WithHooks(c.hooks),
		runtime.WithLogger(c.logger),
		runtime.WithClock(c.now),
		runtime.WithChannelPrefix(c.prefix),
	)

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(c.logger),
		scheduler.WithHooks(c.hooks),
		scheduler.WithChannelPrefix(c.prefix),
		scheduler.WithDispatchTimeout(c.dispatchTimeout),
		scheduler.WithRetention(c.retention),
	}
	if c.clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(c.clock))
	}

	var jobs scheduler.Backend
	if c.jobQueue != nil {
		q := scheduler.NewQueue(composer, *c.jobQueue, schedOpts...)
		if err := q.Start(); err != nil {
			_ = q.Close(context.Background())
			return nil, err
		}
		jobs = q
	} else {
		jobs = scheduler.New(composer, schedOpts...)
	}

	return &App{
		engine:    engine,
		scheduler: jobs,
		sessions:  sessions,
		gateway:   c.gateway,
		catalog:   c.catalog,
		logger:    c.logger,
	}, nil
}

// Handle processes one inbound message and returns the resulting session.
func (a *App) Handle(ctx context.Context, sig domain.Signal) (*domain.Session, error) {
	return a.engine.Handle(ctx, sig)
}

// SubmitForm applies an out-of-band date and address capture.
func (a *App) SubmitForm(ctx context.Context, form domain.FormSubmission) (*domain.Session, error) {
	return a.engine.SubmitForm(ctx, form)
}

// Session returns the stored session for key.
func (a *App) Session(ctx context.Context, key string) (*domain.Session, error) {
	return a.engine.Session(ctx, key)
}

// Sessions lists the keys of every live session.
func (a *App) Sessions(ctx context.Context) ([]string, error) {
	return a.sessions.List(ctx)
}

// DeleteSession forgets a conversation. The next message starts over.
func (a *App) DeleteSession(ctx context.Context, key string) error {
	return a.sessions.Delete(ctx, key)
}

// Schedule arms a one-shot broadcast of payload to recipients after delay.
func (a *App) Schedule(ctx context.Context, recipients []string, payload string, delay time.Duration) (domain.JobReceipt, error) {
	return a.scheduler.Schedule(ctx, recipients, payload, delay)
}

// ScheduleMessage is Schedule with the delay in whole minutes, at least one.
func (a *App) ScheduleMessage(ctx context.Context, recipients []string, payload string, delayMinutes int) (domain.JobReceipt, error) {
	return a.scheduler.ScheduleMessage(ctx, recipients, payload, delayMinutes)
}

// Cancel stops a pending job.
func (a *App) Cancel(id string) (*domain.Job, error) {
	return a.scheduler.Cancel(id)
}

// Job returns a snapshot of a scheduled job.
func (a *App) Job(id string) (*domain.Job, error) {
	return a.scheduler.Job(id)
}

// Jobs lists the jobs the scheduler still tracks.
func (a *App) Jobs() []*domain.Job {
	return a.scheduler.Jobs()
}

// Wait blocks until the job finishes or ctx is done.
func (a *App) Wait(ctx context.Context, id string) (*domain.Job, error) {
	return a.scheduler.Wait(ctx, id)
}

// Catalog returns the service catalog in use.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Ready reports whether the gateway can send. Gateways that cannot tell are
// assumed ready.
func (a *App) Ready(ctx context.Context) error {
	if rc, ok := a.gateway.(ports.ReadinessChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

// Close waits for in-flight sends. In-memory pending jobs are canceled; jobs
// on the Redis queue stay there.
func (a *App) Close(ctx context.Context) error {
	if err := a.scheduler.Close(ctx); err != nil {
		return fmt.Errorf("failed to close scheduler: %w", err)
	}
	return nil
}
