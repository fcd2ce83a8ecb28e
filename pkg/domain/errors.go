package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrJobNotFound is returned when a job ID is unknown to the scheduler.
var ErrJobNotFound = errors.New("job not found")

// ErrJobNotPending is returned when a job can no longer be canceled.
var ErrJobNotPending = errors.New("job is not pending")

// ErrInvalidInput is the kind shared by every input validation failure.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidState is the kind shared by every malformed-session failure.
var ErrInvalidState = errors.New("invalid session state")

// ErrDelivery is the kind shared by every messaging gateway failure.
var ErrDelivery = errors.New("delivery failed")

// ValidationError describes input the caller must fix. It never mutates state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StateError reports a session whose stage and fields disagree.
type StateError struct {
	Key    string
	Stage  Stage
	Reason string
}

func (e *StateError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid session state: %s", e.Reason)
	}
	return fmt.Sprintf("invalid session state for %s at %s: %s", e.Key, e.Stage, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidState) succeed.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// DeliveryError wraps a gateway failure for one destination.
type DeliveryError struct {
	To    string
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to send message to %s: %v", e.To, e.Cause)
}

// Is makes errors.Is(err, ErrDelivery) succeed.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}
