package domain

import "time"

// JobStatus defines the lifecycle of a scheduled job.
type JobStatus string

const (
	JobPending  JobStatus = "pending"  // Timer armed
	JobFired    JobStatus = "fired"    // Delivered to every recipient
	JobFailed   JobStatus = "failed"   // At least one delivery failed
	JobCanceled JobStatus = "canceled" // Stopped before firing
)

// DefaultDelayMinutes applies when a schedule request omits the delay.
// An explicit delay below one minute is rejected, never defaulted.
const DefaultDelayMinutes = 1

// Done reports whether the job reached a final status.
func (s JobStatus) Done() bool {
	return s == JobFired || s == JobFailed || s == JobCanceled
}

// Job is a one-shot deferred broadcast.
type Job struct {
	ID         string    `json:"id"`
	Recipients []string  `json:"recipients"`
	Payload    string    `json:"payload"`
	FireAt     time.Time `json:"fire_at"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Clone returns a copy that does not share the recipient slice.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	next := *j
	next.Recipients = append([]string(nil), j.Recipients...)
	return &next
}

// JobReceipt is returned to the caller that scheduled a job.
type JobReceipt struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
	FireAt time.Time `json:"fireAt"`
}
