package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TaskBroadcast is the asynq task type carrying one job.
	TaskBroadcast = "concierge:broadcast"

	// QueueName is the asynq queue jobs are enqueued on.
	QueueName = "concierge"

	defaultConcurrency = 10
	pollInterval       = 500 * time.Millisecond
)

var _ Backend = (*Queue)(nil)

// broadcastPayload is the task body stored in Redis.
type broadcastPayload struct {
	ID         string    `json:"id"`
	Recipients []string  `json:"recipients"`
	Payload    string    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	FireAt     time.Time `json:"fire_at"`
}

// Queue is a Redis-backed Backend. Jobs are asynq tasks processed at their
// fire time, so they survive restarts and run on exactly one replica.
type Queue struct {
	core      *Scheduler
	client    *asynq.Client
	inspector *asynq.Inspector
	server    *asynq.Server

	mu       sync.Mutex
	canceled map[string]*domain.Job
	closed   bool
}

// NewQueue creates a queue on the given Redis connection. Options shared with
// Scheduler apply; WithClock only affects the recorded timestamps.
func NewQueue(sender Sender, redisOpt asynq.RedisConnOpt, opts ...Option) *Queue {
	core := New(sender, opts...)
	return &Queue{
		core:      core,
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		server: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency:     defaultConcurrency,
			Queues:          map[string]int{QueueName: 1},
			Logger:          asynqLogger{core.logger},
			ShutdownTimeout: core.dispatchTimeout,
		}),
		canceled: make(map[string]*domain.Job),
	}
}

// Start begins processing due tasks in the background.
func (q *Queue) Start() error {
	mux := asynq.NewServeMux()
	mux.Handle(TaskBroadcast, q)
	if err := q.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	return nil
}

// Schedule validates the request and enqueues one task processed after delay.
// Nothing is enqueued when validation fails.
func (q *Queue) Schedule(ctx context.Context, recipients []string, payload string, delay time.Duration) (domain.JobReceipt, error) {
	normalized, err := q.core.validate(recipients, payload, delay)
	if err != nil {
		return domain.JobReceipt{}, err
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return domain.JobReceipt{}, ErrClosed
	}

	now := q.core.clock.Now()
	body := broadcastPayload{
		ID:         uuid.NewString(),
		Recipients: normalized,
		Payload:    payload,
		CreatedAt:  now,
		FireAt:     now.Add(delay),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return domain.JobReceipt{}, fmt.Errorf("failed to encode job: %w", err)
	}

	task := asynq.NewTask(TaskBroadcast, raw)
	_, err = q.client.EnqueueContext(ctx, task, q.taskOptions(body)...)
	if err != nil {
		return domain.JobReceipt{}, fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.core.logger.Info("Job scheduled",
		"job_id", body.ID,
		"recipients", len(normalized),
		"fire_at", body.FireAt,
	)
	q.core.hooks.Job(ctx, &domain.JobEvent{
		Timestamp:  now,
		JobID:      body.ID,
		Status:     domain.JobPending,
		Recipients: len(normalized),
	})
	return domain.JobReceipt{JobID: body.ID, Status: domain.JobPending, FireAt: body.FireAt}, nil
}

// taskOptions pins the task id to the job id and disables retries.
func (q *Queue) taskOptions(body broadcastPayload) []asynq.Option {
	opts := []asynq.Option{
		asynq.TaskID(body.ID),
		asynq.Queue(QueueName),
		asynq.ProcessAt(body.FireAt),
		asynq.MaxRetry(0),
		asynq.Timeout(q.core.dispatchTimeout),
	}
	if q.core.retention > 0 {
		opts = append(opts, asynq.Retention(q.core.retention))
	}
	return opts
}

// ScheduleMessage is Schedule with the delay in whole minutes.
func (q *Queue) ScheduleMessage(ctx context.Context, recipients []string, payload string, delayMinutes int) (domain.JobReceipt, error) {
	delay, err := minutes(delayMinutes)
	if err != nil {
		return domain.JobReceipt{}, err
	}
	return q.Schedule(ctx, recipients, payload, delay)
}

// ProcessTask sends one due job. Failures skip retry so a job is attempted
// at most once and ends archived.
func (q *Queue) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var body broadcastPayload
	if err := json.Unmarshal(t.Payload(), &body); err != nil {
		return fmt.Errorf("malformed job payload: %v: %w", err, asynq.SkipRetry)
	}

	start := q.core.clock.Now()
	err := q.core.dispatch(ctx, body.Recipients, body.Payload)
	finished := q.core.clock.Now()

	status := domain.JobFired
	if err != nil {
		status = domain.JobFailed
		q.core.logger.Error("Job failed", "job_id", body.ID, "recipients", len(body.Recipients), "err", err)
	} else {
		q.core.logger.Info("Job fired", "job_id", body.ID, "recipients", len(body.Recipients))
	}
	q.core.hooks.Job(ctx, &domain.JobEvent{
		Timestamp:  finished,
		JobID:      body.ID,
		Status:     status,
		Recipients: len(body.Recipients),
		Duration:   finished.Sub(start),
		Err:        err,
	})

	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return nil
}

// Cancel removes a job that has not started yet.
func (q *Queue) Cancel(id string) (*domain.Job, error) {
	job, err := q.Job(id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobPending {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrNotPending)
	}
	if err := q.inspector.DeleteTask(QueueName, id); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		// the task left the scheduled set between lookup and delete
		return nil, fmt.Errorf("job %s: %v: %w", id, err, ErrNotPending)
	}

	job.Status = domain.JobCanceled
	job.FinishedAt = q.core.clock.Now()
	q.mu.Lock()
	q.canceled[id] = job.Clone()
	q.mu.Unlock()

	q.core.logger.Info("Job canceled", "job_id", id)
	q.core.hooks.Job(context.Background(), &domain.JobEvent{
		Timestamp:  job.FinishedAt,
		JobID:      id,
		Status:     domain.JobCanceled,
		Recipients: len(job.Recipients),
	})
	return job, nil
}

// Job returns a snapshot of a job.
func (q *Queue) Job(id string) (*domain.Job, error) {
	q.mu.Lock()
	if j, ok := q.canceled[id]; ok {
		q.mu.Unlock()
		return j.Clone(), nil
	}
	q.mu.Unlock()

	info, err := q.inspector.GetTaskInfo(QueueName, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to look up job %s: %w", id, err)
	}
	return jobFromInfo(info)
}

// Jobs returns every job still held in Redis, oldest first. Listing errors
// are logged and skipped.
func (q *Queue) Jobs() []*domain.Job {
	listers := map[string]func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		"scheduled": q.inspector.ListScheduledTasks,
		"pending":   q.inspector.ListPendingTasks,
		"active":    q.inspector.ListActiveTasks,
		"completed": q.inspector.ListCompletedTasks,
		"archived":  q.inspector.ListArchivedTasks,
	}

	var out []*domain.Job
	for state, list := range listers {
		infos, err := list(QueueName)
		if err != nil {
			if !isNotFound(err) {
				q.core.logger.Warn("Failed to list jobs", "state", state, "err", err)
			}
			continue
		}
		for _, info := range infos {
			job, err := jobFromInfo(info)
			if err != nil {
				q.core.logger.Warn("Skipping unreadable job", "task_id", info.ID, "err", err)
				continue
			}
			out = append(out, job)
		}
	}

	q.mu.Lock()
	for _, j := range q.canceled {
		out = append(out, j.Clone())
	}
	q.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Wait polls until the job reaches a final status or ctx is done.
func (q *Queue) Wait(ctx context.Context, id string) (*domain.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		job, err := q.Job(id)
		if err != nil {
			return nil, err
		}
		if job.Status.Done() {
			return job, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops processing and releases the Redis connections. Pending tasks
// stay in Redis and fire once a queue is started again.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.server.Shutdown()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return errors.Join(err, q.client.Close(), q.inspector.Close())
}

// jobFromInfo maps an asynq task onto the job model.
func jobFromInfo(info *asynq.TaskInfo) (*domain.Job, error) {
	var body broadcastPayload
	if err := json.Unmarshal(info.Payload, &body); err != nil {
		return nil, fmt.Errorf("malformed job payload: %w", err)
	}
	job := &domain.Job{
		ID:         info.ID,
		Recipients: body.Recipients,
		Payload:    body.Payload,
		FireAt:     body.FireAt,
		CreatedAt:  body.CreatedAt,
	}
	switch info.State {
	case asynq.TaskStateCompleted:
		job.Status = domain.JobFired
		job.FinishedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		job.Status = domain.JobFailed
		job.Error = info.LastErr
		job.FinishedAt = info.LastFailedAt
	default:
		job.Status = domain.JobPending
	}
	return job, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound)
}

// asynqLogger routes asynq's own logging into slog.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
