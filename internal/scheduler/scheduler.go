// Package scheduler arms one-shot deferred broadcasts.
//
// Scheduler keeps jobs in memory: a restart drops every pending job. Queue
// keeps them in Redis through asynq so they survive restarts and are shared
// by every replica.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// MinDelay is the shortest accepted delay.
	MinDelay = time.Minute

	DefaultDispatchTimeout = 30 * time.Second
	DefaultRetention       = time.Hour

	// maxParallelSends bounds the fan-out of one job.
	maxParallelSends = 16
)

var (
	// ErrNotPending is returned when canceling a job that already fired, failed or was canceled.
	ErrNotPending = domain.ErrJobNotPending

	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("scheduler is closed")
)

// Backend is the job surface shared by Scheduler and Queue.
type Backend interface {
	Schedule(ctx context.Context, recipients []string, payload string, delay time.Duration) (domain.JobReceipt, error)
	ScheduleMessage(ctx context.Context, recipients []string, payload string, delayMinutes int) (domain.JobReceipt, error)
	Cancel(id string) (*domain.Job, error)
	Job(id string) (*domain.Job, error)
	Jobs() []*domain.Job
	Wait(ctx context.Context, id string) (*domain.Job, error)
	Close(ctx context.Context) error
}

var _ Backend = (*Scheduler)(nil)

// Sender delivers one free-form message.
type Sender interface {
	SendText(ctx context.Context, to, body string) (domain.Receipt, error)
}

type entry struct {
	seq    uint64
	job    *domain.Job
	timer  Timer
	firing bool
	done   chan struct{}
}

// Scheduler runs many independent jobs concurrently. Each job has exactly one
// timer and fires at most once; it never touches conversation sessions.
type Scheduler struct {
	sender Sender
	clock  Clock

	prefix          string
	dispatchTimeout time.Duration
	retention       time.Duration
	hooks           domain.Hooks
	logger          *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*entry
	seq    uint64
	closed bool

	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option configures a Scheduler or a Queue.
type Option func(*Scheduler)

// WithClock replaces the wall clock and its timers.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithHooks registers the OnJob callback.
func WithHooks(h domain.Hooks) Option {
	return func(s *Scheduler) {
		s.hooks = h
	}
}

// WithChannelPrefix sets the scheme added to bare recipient numbers.
func WithChannelPrefix(prefix string) Option {
	return func(s *Scheduler) {
		s.prefix = prefix
	}
}

// WithDispatchTimeout bounds how long one job may spend sending.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.dispatchTimeout = d
		}
	}
}

// WithRetention sets how long finished jobs stay queryable. Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) {
		s.retention = d
	}
}

// New creates an in-memory scheduler that delivers through sender.
func New(sender Sender, opts ...Option) *Scheduler {
	s := &Scheduler{
		sender:          sender,
		clock:           systemClock{},
		prefix:          domain.DefaultChannelPrefix,
		dispatchTimeout: DefaultDispatchTimeout,
		retention:       DefaultRetention,
		logger:          logging.NewNop(),
		jobs:            make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Schedule validates the request and arms a timer that sends payload to every
// recipient after delay. Nothing is armed when validation fails.
func (s *Scheduler) Schedule(ctx context.Context, recipients []string, payload string, delay time.Duration) (domain.JobReceipt, error) {
	normalized, err := s.validate(recipients, payload, delay)
	if err != nil {
		return domain.JobReceipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.JobReceipt{}, ErrClosed
	}

	now := s.clock.Now()
	job := &domain.Job{
		ID:         uuid.NewString(),
		Recipients: normalized,
		Payload:    payload,
		FireAt:     now.Add(delay),
		Status:     domain.JobPending,
		CreatedAt:  now,
	}
	s.seq++
	e := &entry{seq: s.seq, job: job, done: make(chan struct{})}
	s.jobs[job.ID] = e
	id := job.ID
	e.timer = s.clock.AfterFunc(delay, func() { s.fire(id) })

	s.logger.Info("Job scheduled",
		"job_id", job.ID,
		"recipients", len(normalized),
		"fire_at", job.FireAt,
	)
	s.hooks.Job(ctx, &domain.JobEvent{
		Timestamp:  now,
		JobID:      job.ID,
		Status:     domain.JobPending,
		Recipients: len(normalized),
	})

	return domain.JobReceipt{JobID: job.ID, Status: job.Status, FireAt: job.FireAt}, nil
}

// ScheduleMessage is Schedule with the delay in whole minutes.
func (s *Scheduler) ScheduleMessage(ctx context.Context, recipients []string, payload string, delayMinutes int) (domain.JobReceipt, error) {
	delay, err := minutes(delayMinutes)
	if err != nil {
		return domain.JobReceipt{}, err
	}
	return s.Schedule(ctx, recipients, payload, delay)
}

// minutes converts a whole-minute delay, rejecting anything below one.
func minutes(delayMinutes int) (time.Duration, error) {
	if delayMinutes < 1 {
		return 0, &domain.ValidationError{Field: "delayMinutes", Reason: "delay must be at least 1 minute"}
	}
	return time.Duration(delayMinutes) * time.Minute, nil
}

// validate checks a request and returns the normalized recipients.
func (s *Scheduler) validate(recipients []string, payload string, delay time.Duration) ([]string, error) {
	normalized := s.normalize(recipients)
	if len(normalized) == 0 {
		return nil, &domain.ValidationError{Field: "recipients", Reason: "at least one recipient is required"}
	}
	if strings.TrimSpace(payload) == "" {
		return nil, &domain.ValidationError{Field: "message", Reason: "message is required"}
	}
	if delay < MinDelay {
		return nil, &domain.ValidationError{Field: "delay", Reason: "delay must be at least 1 minute"}
	}
	return normalized, nil
}

// normalize adds the channel prefix, drops blanks and removes duplicates
// while preserving order.
func (s *Scheduler) normalize(recipients []string) []string {
	seen := make(map[string]bool, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		addr := domain.FormatAddress(s.prefix, r)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok || e.firing || e.job.Status != domain.JobPending {
		s.mu.Unlock()
		return
	}
	e.firing = true
	s.inflight.Add(1)
	recipients := append([]string(nil), e.job.Recipients...)
	payload := e.job.Payload
	s.mu.Unlock()
	defer s.inflight.Done()

	start := s.clock.Now()
	err := s.dispatch(s.ctx, recipients, payload)
	finished := s.clock.Now()

	s.mu.Lock()
	e.job.FinishedAt = finished
	if err != nil {
		e.job.Status = domain.JobFailed
		e.job.Error = err.Error()
	} else {
		e.job.Status = domain.JobFired
	}
	status := e.job.Status
	close(e.done)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Job failed", "job_id", id, "recipients", len(recipients), "err", err)
	} else {
		s.logger.Info("Job fired", "job_id", id, "recipients", len(recipients))
	}
	s.hooks.Job(s.ctx, &domain.JobEvent{
		Timestamp:  finished,
		JobID:      id,
		Status:     status,
		Recipients: len(recipients),
		Duration:   finished.Sub(start),
		Err:        err,
	})
	s.forgetLater(id)
}

// dispatch sends to every recipient concurrently and joins the failures.
func (s *Scheduler) dispatch(ctx context.Context, recipients []string, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for _, to := range recipients {
		g.Go(func() error {
			if _, err := s.sender.SendText(ctx, to, payload); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d sends failed: %w", len(errs), len(recipients), errors.Join(errs...))
	}
	return nil
}

func (s *Scheduler) forgetLater(id string) {
	if s.retention <= 0 {
		return
	}
	s.clock.AfterFunc(s.retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
	})
}

// Cancel stops a pending job.
func (s *Scheduler) Cancel(id string) (*domain.Job, error) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if e.firing || e.job.Status != domain.JobPending {
		status := e.job.Status
		s.mu.Unlock()
		return nil, fmt.Errorf("job %s is %s: %w", id, status, ErrNotPending)
	}
	e.timer.Stop()
	e.job.Status = domain.JobCanceled
	e.job.FinishedAt = s.clock.Now()
	close(e.done)
	job := e.job.Clone()
	s.mu.Unlock()

	s.logger.Info("Job canceled", "job_id", id)
	s.hooks.Job(s.ctx, &domain.JobEvent{
		Timestamp:  job.FinishedAt,
		JobID:      id,
		Status:     domain.JobCanceled,
		Recipients: len(job.Recipients),
	})
	s.forgetLater(id)
	return job, nil
}

// Job returns a snapshot of a job.
func (s *Scheduler) Job(id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return e.job.Clone(), nil
}

// Jobs returns snapshots of every tracked job in scheduling order.
func (s *Scheduler) Jobs() []*domain.Job {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]*domain.Job, len(entries))
	for i, e := range entries {
		out[i] = e.job.Clone()
	}
	s.mu.Unlock()
	return out
}

// Wait blocks until the job reaches a final status or ctx is done.
func (s *Scheduler) Wait(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}

	select {
	case <-e.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return e.job.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels every pending job and waits for in-flight dispatches to end
// or ctx to expire, whichever comes first.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	now := s.clock.Now()
	for _, e := range s.jobs {
		if e.job.Status == domain.JobPending && !e.firing {
			e.timer.Stop()
			e.job.Status = domain.JobCanceled
			e.job.FinishedAt = now
			close(e.done)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel() // abort remaining sends
		return ctx.Err()
	}
}
