package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/concierge/internal/catalog"
	"github.com/aretw0/concierge/internal/outbound"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/session"
	"github.com/stretchr/testify/require"
)

const (
	sender = "whatsapp:+15550001111"
	origin = "whatsapp:+10000000000"
)

var errGateway = errors.New("gateway unavailable")

// recorder is a MessagingGateway that keeps every request.
type recorder struct {
	mu     sync.Mutex
	sent   []domain.SendRequest
	failOn func(domain.SendRequest) bool
}

func (r *recorder) Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil && r.failOn(req) {
		return domain.Receipt{}, errGateway
	}
	r.sent = append(r.sent, req)
	return domain.Receipt{ID: "SM" + req.To, To: req.To}, nil
}

func (r *recorder) last(t *testing.T) domain.SendRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "expected at least one outbound message")
	return r.sent[len(r.sent)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	engine   *runtime.Engine
	gateway  *recorder
	store    *memory.Store
	catalog  *catalog.Catalog
	now      time.Time
	events   []*domain.TransitionEvent
	eventsMu sync.Mutex
}

func newFixture(t *testing.T, templates outbound.Templates) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		gateway: &recorder{},
		store:   memory.NewStore(),
		catalog: cat,
		now:     time.Date(2030, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	hooks := domain.Hooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			f.eventsMu.Lock()
			defer f.eventsMu.Unlock()
			f.events = append(f.events, e)
		},
	}

	composer := outbound.New(f.gateway, origin, outbound.WithTemplates(templates))
	f.engine = runtime.NewEngine(
		session.NewManager(f.store, session.WithClock(clock)),
		composer,
		cat,
		runtime.WithClock(clock),
		runtime.WithHooks(hooks),
	)
	return f
}

func (f *fixture) send(t *testing.T, sig domain.Signal) *domain.Session {
	t.Helper()
	if sig.From == "" {
		sig.From = sender
	}
	s, err := f.engine.Handle(context.Background(), sig)
	require.NoError(t, err)
	return s
}

func (f *fixture) stored(t *testing.T) *domain.Session {
	t.Helper()
	s, err := f.store.Load(context.Background(), sender)
	require.NoError(t, err)
	return s
}

// seed stores a session directly, bypassing the engine.
func (f *fixture) seed(t *testing.T, s *domain.Session) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), s.Key, s))
}

func coords(lat, lng float64) domain.Signal {
	return domain.Signal{Latitude: &lat, Longitude: &lng}
}
