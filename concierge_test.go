package concierge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customer = "whatsapp:+15550001"

var fixedNow = time.Date(2030, 1, 15, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	sent  []domain.SendRequest
	ready error
}

func (r *recorder) Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req)
	return domain.Receipt{ID: "SM1", To: req.To}, nil
}

func (r *recorder) Ready(ctx context.Context) error { return r.ready }

func (r *recorder) last() domain.SendRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func newApp(t *testing.T, gw *recorder, opts ...concierge.Option) *concierge.App {
	t.Helper()
	opts = append([]concierge.Option{
		concierge.WithGateway(gw),
		concierge.WithFrom("whatsapp:+10000000000"),
		concierge.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	app, err := concierge.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func ptr(f float64) *float64 { return &f }

func TestNew_RequiresGateway(t *testing.T) {
	_, err := concierge.New()
	assert.ErrorIs(t, err, concierge.ErrNoGateway)
}

func TestApp_FullBooking(t *testing.T) {
	gw := &recorder{}
	app := newApp(t, gw, concierge.WithTemplates(map[domain.ActionKind]string{
		domain.ActionConfirmBooking: "HXconfirm",
	}))
	ctx := context.Background()

	steps := []struct {
		sig  domain.Signal
		want domain.Stage
	}{
		{domain.Signal{Body: "Hello there"}, domain.StageAwaitingService},
		{domain.Signal{ListID: "service_2"}, domain.StageAwaitingSubCategory},
		{domain.Signal{ListID: "electrical_wiring"}, domain.StageAwaitingLocation},
		{domain.Signal{Latitude: ptr(-1.28), Longitude: ptr(36.82)}, domain.StageAwaitingProvider},
		{domain.Signal{ListID: "electrician_1"}, domain.StageAwaitingDate},
		{domain.Signal{Body: "20/03/2030"}, domain.StageAwaitingAddress},
		{domain.Signal{Body: "1 Main St"}, domain.StageAwaitingSlot},
		{domain.Signal{ListID: "slot_3"}, domain.StageAwaitingPayment},
		{domain.Signal{ButtonPayload: "pay_at_service"}, domain.StageBookingCompleted},
	}
	for i, step := range steps {
		step.sig.From = customer
		s, err := app.Handle(ctx, step.sig)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.want, s.Stage, "step %d", i)
	}
	assert.Len(t, gw.sent, len(steps))

	confirm := gw.last()
	assert.Equal(t, "HXconfirm", confirm.TemplateID)
	assert.Equal(t, map[string]string{
		"1": "Electrician 1",
		"2": "20/03/2030",
		"3": "2:00 PM",
		"4": "Pay at Service",
	}, confirm.Variables)

	s, err := app.Session(ctx, customer)
	require.NoError(t, err)
	require.NotNil(t, s.Booking)
	assert.Equal(t, "service_2", s.Booking.Service)
	assert.Equal(t, "electrical_wiring", s.Booking.SubCategory)
	assert.Equal(t, "1 Main St", s.Booking.Address)
	assert.Equal(t, fixedNow, s.Booking.CompletedAt)

	// A greeting after completion starts a fresh booking.
	s, err = app.Handle(ctx, domain.Signal{From: customer, Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingService, s.Stage)
	assert.Nil(t, s.Booking)
}

func TestApp_Sessions(t *testing.T) {
	gw := &recorder{}
	store := memory.NewStore()
	app := newApp(t, gw, concierge.WithStore(store))
	ctx := context.Background()

	_, err := app.Handle(ctx, domain.Signal{From: customer, Body: "hi"})
	require.NoError(t, err)

	keys, err := app.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{customer}, keys)

	require.NoError(t, app.DeleteSession(ctx, customer))
	_, err = app.Session(ctx, customer)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestApp_ScheduleAndCancel(t *testing.T) {
	app := newApp(t, &recorder{})
	ctx := context.Background()

	receipt, err := app.ScheduleMessage(ctx, []string{"+15550001", "+15550001"}, "Reminder", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, receipt.Status)

	job, err := app.Job(receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, []string{customer}, job.Recipients)
	assert.Len(t, app.Jobs(), 1)

	job, err = app.Cancel(receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCanceled, job.Status)

	_, err = app.Cancel(receipt.JobID)
	assert.ErrorIs(t, err, domain.ErrJobNotPending)

	_, err = app.Schedule(ctx, nil, "Reminder", time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApp_CloseCancelsPendingJobs(t *testing.T) {
	gw := &recorder{}
	app, err := concierge.New(concierge.WithGateway(gw))
	require.NoError(t, err)
	ctx := context.Background()

	receipt, err := app.Schedule(ctx, []string{"+15550001"}, "Reminder", time.Hour)
	require.NoError(t, err)

	require.NoError(t, app.Close(ctx))

	job, err := app.Wait(ctx, receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCanceled, job.Status)
	assert.Empty(t, gw.sent)
}

func TestApp_Ready(t *testing.T) {
	gw := &recorder{}
	app := newApp(t, gw)
	assert.NoError(t, app.Ready(context.Background()))

	gw.ready = errors.New("not configured")
	assert.Error(t, app.Ready(context.Background()))
}
