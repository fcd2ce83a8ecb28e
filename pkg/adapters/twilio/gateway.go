// Package twilio sends outbound messages through the Twilio Messaging API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	sdk "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// DefaultTimeout bounds one API call.
const DefaultTimeout = 10 * time.Second

// ErrNotConfigured is reported by Ready when credentials are missing.
var ErrNotConfigured = errors.New("twilio gateway is not configured")

// MessageCreator is the slice of the Twilio API the gateway uses.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Gateway implements ports.MessagingGateway.
// Template sends use the Content API (ContentSid + ContentVariables).
type Gateway struct {
	api        MessageCreator
	accountSID string
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithAPI replaces the REST client (tests).
func WithAPI(api MessageCreator) Option {
	return func(g *Gateway) {
		g.api = api
	}
}

// New creates a gateway authenticated with an account SID and auth token.
func New(accountSID, authToken string, opts ...Option) *Gateway {
	g := &Gateway{
		accountSID: accountSID,
		timeout:    DefaultTimeout,
		now:        time.Now,
	}
	if accountSID != "" && authToken != "" {
		client := sdk.NewRestClientWithParams(sdk.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
		g.api = client.Api
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ready reports whether the gateway can send.
func (g *Gateway) Ready(ctx context.Context) error {
	if g.api == nil {
		return ErrNotConfigured
	}
	return nil
}

// Send transmits one message. A timeout is reported as an error and not retried.
func (g *Gateway) Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error) {
	if g.api == nil {
		return domain.Receipt{}, ErrNotConfigured
	}

	params, err := buildParams(req)
	if err != nil {
		return domain.Receipt{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		msg *openapi.ApiV2010Message
		err error
	}
	// The SDK call is not context-aware; abandon it when ctx expires.
	done := make(chan result, 1)
	go func() {
		msg, err := g.api.CreateMessage(params)
		done <- result{msg, err}
	}()

	select {
	case <-ctx.Done():
		return domain.Receipt{}, fmt.Errorf("twilio request aborted: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return domain.Receipt{}, fmt.Errorf("twilio create message: %w", r.err)
		}
		receipt := domain.Receipt{To: req.To, SentAt: g.now()}
		if r.msg != nil {
			if r.msg.Sid != nil {
				receipt.ID = *r.msg.Sid
			}
			if r.msg.Status != nil {
				receipt.Status = *r.msg.Status
			}
		}
		return receipt, nil
	}
}

func buildParams(req domain.SendRequest) (*openapi.CreateMessageParams, error) {
	params := &openapi.CreateMessageParams{}
	params.SetTo(req.To)
	if req.From != "" {
		params.SetFrom(req.From)
	}

	if req.TemplateID == "" {
		params.SetBody(req.Body)
		return params, nil
	}

	params.SetContentSid(req.TemplateID)
	if len(req.Variables) > 0 {
		vars, err := json.Marshal(req.Variables)
		if err != nil {
			return nil, fmt.Errorf("failed to encode content variables: %w", err)
		}
		params.SetContentVariables(string(vars))
	}
	return params, nil
}
