package ports

import (
	"context"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

// Concierge defines the surface used by driving adapters (HTTP, MCP, CLI).
type Concierge interface {
	// Handle processes one inbound message and returns the resulting session.
	Handle(ctx context.Context, signal domain.Signal) (*domain.Session, error)

	// SubmitForm applies an out-of-band date and address capture.
	SubmitForm(ctx context.Context, form domain.FormSubmission) (*domain.Session, error)

	// Session returns the current state of a conversation.
	Session(ctx context.Context, key string) (*domain.Session, error)

	// Schedule arms a one-shot broadcast of payload to recipients after delay.
	Schedule(ctx context.Context, recipients []string, payload string, delay time.Duration) (domain.JobReceipt, error)

	// ScheduleMessage is Schedule with the delay in whole minutes, at least one.
	ScheduleMessage(ctx context.Context, recipients []string, payload string, delayMinutes int) (domain.JobReceipt, error)

	// Cancel stops a pending job.
	Cancel(id string) (*domain.Job, error)

	// Job returns a scheduled job by ID.
	Job(id string) (*domain.Job, error)

	// Jobs lists the jobs the scheduler still tracks.
	Jobs() []*domain.Job
}
