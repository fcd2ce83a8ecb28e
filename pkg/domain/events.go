package domain

import (
	"context"
	"time"
)

// TransitionEvent is emitted after a session change has been persisted.
type TransitionEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	Key       string     `json:"key"`
	From      Stage      `json:"from"`
	To        Stage      `json:"to"`
	Signal    SignalKind `json:"signal"`
	Action    ActionKind `json:"action"`
}

// SendEvent is emitted for every gateway call, successful or not.
type SendEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	To         string        `json:"to"`
	TemplateID string        `json:"template_id,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// JobEvent is emitted when a job is scheduled and when it finishes.
type JobEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	JobID      string        `json:"job_id"`
	Status     JobStatus     `json:"status"`
	Recipients int           `json:"recipients"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// Hooks defines callbacks for observability.
// Nil callbacks are skipped.
type Hooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnSend       func(context.Context, *SendEvent)
	OnJob        func(context.Context, *JobEvent)
}

func (h Hooks) Transition(ctx context.Context, e *TransitionEvent) {
	if h.OnTransition != nil {
		h.OnTransition(ctx, e)
	}
}

func (h Hooks) Send(ctx context.Context, e *SendEvent) {
	if h.OnSend != nil {
		h.OnSend(ctx, e)
	}
}

func (h Hooks) Job(ctx context.Context, e *JobEvent) {
	if h.OnJob != nil {
		h.OnJob(ctx, e)
	}
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			h.Transition(ctx, e)
			other.Transition(ctx, e)
		},
		OnSend: func(ctx context.Context, e *SendEvent) {
			h.Send(ctx, e)
			other.Send(ctx, e)
		},
		OnJob: func(ctx context.Context, e *JobEvent) {
			h.Job(ctx, e)
			other.Job(ctx, e)
		},
	}
}
