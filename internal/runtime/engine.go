// Package runtime implements the booking conversation state machine.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/concierge/internal/catalog"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/outbound"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/session"
)

// Engine advances conversation sessions one inbound signal at a time.
//
// Each call to Handle or SubmitForm is one unit of work under the session's
// lock: the transition is computed, the reply is sent, and only then is the
// new session persisted. A failed send leaves the stored session untouched.
type Engine struct {
	sessions *session.Manager
	composer *outbound.Composer
	catalog  *catalog.Catalog

	prefix string
	hooks  domain.Hooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the time source used for date validation and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithChannelPrefix sets the scheme added to form submission numbers.
func WithChannelPrefix(prefix string) Option {
	return func(e *Engine) {
		e.prefix = prefix
	}
}

// NewEngine creates an engine. The catalog must already be validated.
func NewEngine(sessions *session.Manager, composer *outbound.Composer, cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		composer: composer,
		catalog:  cat,
		prefix:   domain.DefaultChannelPrefix,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step computes the transition for one signal without side effects.
// It returns the session to persist (nil when the stage is unchanged) and the
// reply to send. It fails only when the session itself is malformed.
func (e *Engine) Step(s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	if err := s.Check(); err != nil {
		return nil, domain.Action{}, err
	}

	kind := sig.Kind()
	if kind == domain.SignalGreeting {
		return greet(e, s, sig)
	}
	if t, ok := transitions[s.Stage][kind]; ok {
		return t(e, s, sig)
	}
	return fallback(e, s, sig)
}

// Handle processes one inbound message for the sender's session.
func (e *Engine) Handle(ctx context.Context, sig domain.Signal) (*domain.Session, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(sig.From)

	var (
		from   domain.Stage
		action domain.Action
	)
	result, err := e.sessions.Update(ctx, key, func(ctx context.Context, current *domain.Session) (*domain.Session, error) {
		from = current.Stage

		next, act, err := e.Step(current, sig)
		if err != nil {
			return nil, err
		}
		action = act

		if _, err := e.composer.Deliver(ctx, act); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		e.logger.Warn("Failed to handle message",
			"session_key", key,
			"stage", from,
			"signal", sig.Kind(),
			"err", err,
		)
		return nil, err
	}

	e.emit(ctx, key, from, result.Stage, sig.Kind(), action.Kind)
	return result, nil
}

// SubmitForm applies an out-of-band capture of the date and address steps and
// continues the flow at slot selection.
//
// The session must already exist, be waiting for the date or the address,
// and have a provider selected.
func (e *Engine) SubmitForm(ctx context.Context, form domain.FormSubmission) (*domain.Session, error) {
	key := domain.FormatAddress(e.prefix, form.ChannelAddress)
	if key == "" {
		return nil, &domain.ValidationError{Field: "number", Reason: "channel address is required"}
	}
	address := strings.TrimSpace(form.Address)
	if address == "" {
		return nil, &domain.ValidationError{Field: "address", Reason: "service address is required"}
	}
	date, err := domain.ParseBookingDate(strings.TrimSpace(form.PreferredDate), e.now())
	if err != nil {
		return nil, err
	}

	var from domain.Stage
	result, err := e.sessions.Update(ctx, key, func(ctx context.Context, current *domain.Session) (*domain.Session, error) {
		from = current.Stage

		if current.Stage != domain.StageAwaitingDate && current.Stage != domain.StageAwaitingAddress {
			return nil, &domain.StateError{Key: key, Stage: current.Stage, Reason: "form submission is only accepted while waiting for the date or address"}
		}
		if err := current.Check(); err != nil {
			return nil, err
		}

		current.PreferredDate = date.Format(domain.DateLayout)
		current.ServiceAddress = address
		current.CustomerName = strings.TrimSpace(form.Name)
		current.Stage = domain.StageAwaitingSlot

		if _, err := e.composer.Deliver(ctx, e.presentSlots(key, current.PreferredDate)); err != nil {
			return nil, err
		}
		return current, nil
	})
	if err != nil {
		e.logger.Warn("Failed to apply form submission", "session_key", key, "stage", from, "err", err)
		return nil, err
	}

	e.logger.Info("Form submission applied", "session_key", key, "address", address, "customer_name", form.Name)
	e.emit(ctx, key, from, result.Stage, domain.SignalText, domain.ActionPresentSlots)
	return result, nil
}

// Session returns the stored session for key.
func (e *Engine) Session(ctx context.Context, key string) (*domain.Session, error) {
	s, err := e.sessions.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	return s, nil
}

// selectedService resolves the session's service. A service that left the
// catalog mid-booking leaves the session unusable.
func (e *Engine) selectedService(s *domain.Session) (catalog.Service, error) {
	svc, ok := e.catalog.Service(s.SelectedService)
	if !ok {
		return catalog.Service{}, &domain.StateError{
			Key:    s.Key,
			Stage:  s.Stage,
			Reason: "selected service " + s.SelectedService + " is not in the catalog",
		}
	}
	return svc, nil
}

func (e *Engine) emit(ctx context.Context, key string, from, to domain.Stage, sig domain.SignalKind, act domain.ActionKind) {
	e.logger.Debug("Session advanced",
		"session_key", key,
		"from", from,
		"to", to,
		"action", act,
	)
	e.hooks.Transition(ctx, &domain.TransitionEvent{
		Timestamp: e.now(),
		Key:       key,
		From:      from,
		To:        to,
		Signal:    sig,
		Action:    act,
	})
}
