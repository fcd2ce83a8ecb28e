package outbound_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/concierge/internal/outbound"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu   sync.Mutex
	sent []domain.SendRequest
	err  error
}

func (g *fakeGateway) Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return domain.Receipt{}, g.err
	}
	g.sent = append(g.sent, req)
	return domain.Receipt{ID: "SM1", To: req.To}, nil
}

const from = "whatsapp:+10000000000"

func TestComposer_TemplateFromConfig(t *testing.T) {
	gw := &fakeGateway{}
	c := outbound.New(gw, from, outbound.WithTemplates(outbound.Templates{
		domain.ActionPresentServices: "HXwelcome",
	}))

	_, err := c.Deliver(context.Background(), domain.Action{
		Kind:      domain.ActionPresentServices,
		To:        "whatsapp:+1555",
		Variables: map[string]string{"1": "+1555"},
		Body:      "fallback",
	})
	require.NoError(t, err)
	require.Len(t, gw.sent, 1)
	assert.Equal(t, domain.SendRequest{
		From:       from,
		To:         "whatsapp:+1555",
		TemplateID: "HXwelcome",
		Variables:  map[string]string{"1": "+1555"},
	}, gw.sent[0])
}

func TestComposer_ActionTemplateOverrides(t *testing.T) {
	c := outbound.New(&fakeGateway{}, from, outbound.WithTemplates(outbound.Templates{
		domain.ActionPresentProviders: "HXgeneric",
	}))

	req := c.Request(domain.Action{Kind: domain.ActionPresentProviders, To: "x", TemplateID: "HXplumbing"})
	assert.Equal(t, "HXplumbing", req.TemplateID)
}

func TestComposer_FreeFormFallback(t *testing.T) {
	gw := &fakeGateway{}
	c := outbound.New(gw, from)

	_, err := c.Deliver(context.Background(), domain.Action{
		Kind:      domain.ActionRequestLocation,
		To:        "whatsapp:+1555",
		Variables: map[string]string{"ignored": "yes"},
		Body:      "Please share your location so we can find the nearest service provider.",
	})
	require.NoError(t, err)
	require.Len(t, gw.sent, 1)
	assert.Empty(t, gw.sent[0].TemplateID)
	assert.Nil(t, gw.sent[0].Variables)
	assert.Equal(t, "Please share your location so we can find the nearest service provider.", gw.sent[0].Body)
}

func TestComposer_ValidationIsNotDelivery(t *testing.T) {
	gw := &fakeGateway{}
	c := outbound.New(gw, from)

	_, err := c.Send(context.Background(), domain.SendRequest{Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrDelivery)

	_, err = c.Send(context.Background(), domain.SendRequest{To: "whatsapp:+1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, gw.sent, "invalid requests never reach the gateway")
}

func TestComposer_DeliveryFailure(t *testing.T) {
	cause := errors.New("upstream 503")
	var events []*domain.SendEvent
	c := outbound.New(&fakeGateway{err: cause}, from, outbound.WithHooks(domain.Hooks{
		OnSend: func(ctx context.Context, e *domain.SendEvent) { events = append(events, e) },
	}))

	_, err := c.SendText(context.Background(), "whatsapp:+1555", "reminder")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)

	var de *domain.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "whatsapp:+1555", de.To)

	require.Len(t, events, 1)
	assert.Equal(t, "whatsapp:+1555", events[0].To)
	assert.ErrorIs(t, events[0].Err, cause)
}
