// Package outbound turns engine actions and scheduler payloads into gateway
// send requests.
package outbound

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Templates maps an action kind to the content template that renders it.
// Kinds with no entry are sent as free-form text.
type Templates map[domain.ActionKind]string

// Composer builds exactly one send request per call and hands it to the gateway.
type Composer struct {
	gateway   ports.MessagingGateway
	from      string
	templates Templates
	hooks     domain.Hooks
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithTemplates overrides the reply wording.
func WithTemplates(t Templates) Option {
	return func(c *Composer) {
		c.templates = t
	}
}

// WithHooks registers callbacks fired for every outbound send.
func WithHooks(h domain.Hooks) Option {
	return func(c *Composer) {
		c.hooks = h
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) {
		c.logger = l
	}
}

// New creates a composer sending from the given origin address.
func New(gateway ports.MessagingGateway, from string, opts ...Option) *Composer {
	c := &Composer{
		gateway:   gateway,
		from:      from,
		templates: Templates{},
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request renders an action without sending it.
// A template is used when the action names one or one is configured for its
// kind; otherwise the free-form body is sent.
func (c *Composer) Request(a domain.Action) domain.SendRequest {
	req := domain.SendRequest{From: c.from, To: a.To}

	templateID := a.TemplateID
	if templateID == "" {
		templateID = c.templates[a.Kind]
	}
	if templateID != "" {
		req.TemplateID = templateID
		req.Variables = a.Variables
		return req
	}
	req.Body = a.Body
	return req
}

// Deliver sends the reply described by an action.
func (c *Composer) Deliver(ctx context.Context, a domain.Action) (domain.Receipt, error) {
	return c.Send(ctx, c.Request(a))
}

// SendText sends a free-form body to one destination.
func (c *Composer) SendText(ctx context.Context, to, body string) (domain.Receipt, error) {
	return c.Send(ctx, domain.SendRequest{From: c.from, To: to, Body: body})
}

// Send validates and transmits a request.
// Invalid requests never reach the gateway and fail with ErrInvalidInput;
// gateway failures are wrapped in a *domain.DeliveryError.
func (c *Composer) Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error) {
	if req.From == "" {
		req.From = c.from
	}
	if err := req.Validate(); err != nil {
		return domain.Receipt{}, err
	}

	start := c.now()
	receipt, err := c.gateway.Send(ctx, req)
	elapsed := c.now().Sub(start)

	if err != nil {
		var de *domain.DeliveryError
		if !errors.As(err, &de) {
			err = &domain.DeliveryError{To: req.To, Cause: err}
		}
		c.logger.Warn("Message delivery failed",
			"to", req.To,
			"template_id", req.TemplateID,
			"err", err,
		)
	} else {
		c.logger.Debug("Message sent",
			"to", req.To,
			"template_id", req.TemplateID,
			"receipt", receipt.ID,
		)
	}

	c.hooks.Send(ctx, &domain.SendEvent{
		Timestamp:  start,
		To:         req.To,
		TemplateID: req.TemplateID,
		Duration:   elapsed,
		Err:        err,
	})
	return receipt, err
}
