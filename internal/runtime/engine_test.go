package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/concierge/internal/outbound"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_EndToEndBooking(t *testing.T) {
	f := newFixture(t, nil)

	s := f.send(t, domain.Signal{Body: "hello"})
	assert.Equal(t, domain.StageAwaitingService, s.Stage)
	assert.Contains(t, f.gateway.last(t).Body, "Plumbing (service_1)")

	s = f.send(t, domain.Signal{ListID: "service_1"})
	assert.Equal(t, domain.StageAwaitingLocation, s.Stage)
	assert.Equal(t, "Please share your location so we can find the nearest service provider.", f.gateway.last(t).Body)

	s = f.send(t, coords(12.97, 77.59))
	assert.Equal(t, domain.StageAwaitingProvider, s.Stage)
	require.NotNil(t, s.Location)
	assert.InDelta(t, 12.97, s.Location.Latitude, 1e-9)
	assert.Contains(t, f.gateway.last(t).Body, "Plumber 1, $100, 4.2⭐ (plumber_1)")

	s = f.send(t, domain.Signal{ListID: "plumber_1"})
	assert.Equal(t, domain.StageAwaitingDate, s.Stage)

	s = f.send(t, domain.Signal{Body: "20/03/2030"})
	assert.Equal(t, domain.StageAwaitingAddress, s.Stage)
	assert.Equal(t, "20/03/2030", s.PreferredDate)

	s = f.send(t, domain.Signal{Body: "  221B Baker Street "})
	assert.Equal(t, domain.StageAwaitingSlot, s.Stage)
	assert.Equal(t, "221B Baker Street", s.ServiceAddress)

	s = f.send(t, domain.Signal{ListID: "slot_2"})
	assert.Equal(t, domain.StageAwaitingPayment, s.Stage)
	assert.Contains(t, f.gateway.last(t).Body, "11:00 AM")

	s = f.send(t, domain.Signal{ButtonPayload: "pay_now"})
	assert.Equal(t, domain.StageBookingCompleted, s.Stage)
	require.NotNil(t, s.Booking)
	assert.Equal(t, "Plumber 1", s.Booking.ProviderName)
	assert.Equal(t, "20/03/2030", s.Booking.Date)
	assert.Equal(t, "11:00 AM", s.Booking.SlotLabel)
	assert.Equal(t, "Payment Pending", s.Booking.PaymentStatus)

	confirmation := f.gateway.last(t)
	assert.Contains(t, confirmation.Body, "Plumber 1")
	assert.Contains(t, confirmation.Body, "20/03/2030")
	assert.Contains(t, confirmation.Body, "11:00 AM")
	assert.Contains(t, confirmation.Body, "Payment Pending")

	stored := f.stored(t)
	assert.Equal(t, domain.StageBookingCompleted, stored.Stage)
	assert.NoError(t, stored.Check())
	assert.Equal(t, 8, f.gateway.count(), "one reply per inbound message")
}

func TestEngine_TemplatesAndVariables(t *testing.T) {
	t.Setenv("TWILIO_PLUMBING_SERVICE_TEMPLATE_ID", "HXplumbers")
	f := newFixture(t, outbound.Templates{
		domain.ActionPresentServices: "HXwelcome",
		domain.ActionPresentSlots:    "HXslots",
		domain.ActionConfirmBooking:  "HXconfirm",
	})

	f.send(t, domain.Signal{Body: "Hi there"})
	welcome := f.gateway.last(t)
	assert.Equal(t, "HXwelcome", welcome.TemplateID)
	assert.Equal(t, map[string]string{"1": "+15550001111"}, welcome.Variables)
	assert.Empty(t, welcome.Body)

	f.send(t, domain.Signal{ListID: "service_1"})
	f.send(t, coords(1, 2))
	providers := f.gateway.last(t)
	assert.Equal(t, "HXplumbers", providers.TemplateID)
	assert.Equal(t, map[string]string{
		"1": "Plumber 1", "2": "plumber_1", "3": "$100", "4": "4.2⭐",
		"5": "Plumber 2", "6": "plumber_2", "7": "$150", "8": "4.7⭐",
	}, providers.Variables)

	f.send(t, domain.Signal{ListID: "plumber_2"})
	f.send(t, domain.Signal{Body: "15/01/2030"})
	f.send(t, domain.Signal{Body: "Main road 1"})
	slots := f.gateway.last(t)
	assert.Equal(t, "HXslots", slots.TemplateID)
	assert.Equal(t, "15/01/2030", slots.Variables["date"])
	assert.Equal(t, "10:00 AM", slots.Variables["1"])
	assert.Equal(t, "4:00 PM", slots.Variables["4"])

	f.send(t, domain.Signal{ListID: "slot_4"})
	f.send(t, domain.Signal{ButtonPayload: "pay_at_service"})
	confirm := f.gateway.last(t)
	assert.Equal(t, "HXconfirm", confirm.TemplateID)
	assert.Equal(t, map[string]string{
		"1": "Plumber 2", "2": "15/01/2030", "3": "4:00 PM", "4": "Pay at Service",
	}, confirm.Variables)
}

func TestEngine_SubCategoryFlow(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, domain.Signal{Body: "hello"})
	s := f.send(t, domain.Signal{ListID: "service_2"})
	assert.Equal(t, domain.StageAwaitingSubCategory, s.Stage)
	assert.Contains(t, f.gateway.last(t).Body, "electrical_wiring")

	s = f.send(t, domain.Signal{ListID: "service_1"})
	assert.Equal(t, domain.StageAwaitingSubCategory, s.Stage, "a list id from another menu is not a sub-category")

	s = f.send(t, domain.Signal{ListID: "electrical_wiring"})
	assert.Equal(t, domain.StageAwaitingLocation, s.Stage)
	assert.Equal(t, "electrical_wiring", s.SelectedSubCategory)
}

func TestEngine_LocationReprompt(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, domain.Signal{Body: "hello"})
	f.send(t, domain.Signal{ListID: "service_1"})

	for _, sig := range []domain.Signal{
		{Body: "Baker Street"},
		{ListID: "plumber_1"},
		{},
	} {
		s := f.send(t, sig)
		assert.Equal(t, domain.StageAwaitingLocation, s.Stage)
		last := f.gateway.last(t)
		assert.Equal(t, "Please share your location to proceed with the service request.", last.Body)
	}

	s := f.send(t, coords(12.97, 77.59))
	assert.Equal(t, domain.StageAwaitingProvider, s.Stage)
}

func TestEngine_DateValidation(t *testing.T) {
	f := newFixture(t, nil)
	s := domain.NewSession(sender, f.now)
	s.Stage = domain.StageAwaitingDate
	s.SelectedService = "service_1"
	s.Location = &domain.Location{Latitude: 1, Longitude: 1}
	s.SelectedProvider = "plumber_1"
	f.seed(t, s)

	for _, input := range []string{"2030-03-20", "31/02/2030", "14/01/2030", "tomorrow"} {
		got := f.send(t, domain.Signal{Body: input})
		assert.Equal(t, domain.StageAwaitingDate, got.Stage, input)
		assert.Contains(t, f.gateway.last(t).Body, "DD/MM/YYYY", input)
	}
	assert.Contains(t, f.gateway.last(t).Body, "expected format")

	got := f.send(t, domain.Signal{Body: "15/01/2030"})
	assert.Equal(t, domain.StageAwaitingAddress, got.Stage, "today is accepted")
}

func TestEngine_UnknownSelectionsGetDefaultResponse(t *testing.T) {
	f := newFixture(t, nil)

	s := f.send(t, domain.Signal{Body: "what is this"})
	assert.Equal(t, domain.StageNew, s.Stage)
	assert.Equal(t, "Thanks for your message! This is an automated response.", f.gateway.last(t).Body)
	_, err := f.store.Load(context.Background(), sender)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "an unchanged new session is not persisted")

	f.send(t, domain.Signal{Body: "hi"})
	s = f.send(t, domain.Signal{ListID: "service_42"})
	assert.Equal(t, domain.StageAwaitingService, s.Stage)
	assert.Equal(t, "Thanks for your message! This is an automated response.", f.gateway.last(t).Body)

	s = f.send(t, domain.Signal{ButtonPayload: "pay_now"})
	assert.Equal(t, domain.StageAwaitingService, s.Stage)
}

func TestEngine_GreetingResetsFromAnyStage(t *testing.T) {
	f := newFixture(t, nil)
	done := domain.NewSession(sender, f.now)
	done.Stage = domain.StageBookingCompleted
	done.SelectedService = "service_1"
	done.Location = &domain.Location{Latitude: 1, Longitude: 2}
	done.SelectedProvider = "plumber_1"
	done.PreferredDate = "20/03/2030"
	done.ServiceAddress = "221B Baker Street"
	done.SelectedSlot = "slot_2"
	done.PaymentChoice = "pay_now"
	done.Booking = &domain.Booking{Provider: "plumber_1"}
	f.seed(t, done)

	s := f.send(t, domain.Signal{Body: "Hello!"})
	assert.Equal(t, domain.StageAwaitingService, s.Stage)
	assert.Empty(t, s.SelectedService)
	assert.Nil(t, s.Location)
	assert.Empty(t, s.SelectedProvider)
	assert.Empty(t, s.PreferredDate)
	assert.Empty(t, s.ServiceAddress)
	assert.Empty(t, s.SelectedSlot)
	assert.Empty(t, s.PaymentChoice)
	assert.Nil(t, s.Booking)

	stored := f.stored(t)
	assert.Equal(t, domain.StageAwaitingService, stored.Stage)
}

func TestEngine_GreetingIsWholeWord(t *testing.T) {
	f := newFixture(t, nil)
	s := f.send(t, domain.Signal{Body: "this chimney leaks"})
	assert.Equal(t, domain.StageNew, s.Stage)
}

func TestEngine_HyphenatedAddressIsNotAGreeting(t *testing.T) {
	f := newFixture(t, nil)
	s := domain.NewSession(sender, f.now)
	s.Stage = domain.StageAwaitingAddress
	s.SelectedService = "service_1"
	s.Location = &domain.Location{Latitude: 1, Longitude: 1}
	s.SelectedProvider = "plumber_1"
	s.PreferredDate = "20/03/2030"
	f.seed(t, s)

	got := f.send(t, domain.Signal{Body: "Hi-Tech City, Plot 4"})
	assert.Equal(t, domain.StageAwaitingSlot, got.Stage)
	assert.Equal(t, "Hi-Tech City, Plot 4", got.ServiceAddress)
	assert.Equal(t, "service_1", got.SelectedService)
}

func TestEngine_DeliveryFailureDoesNotAdvance(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, domain.Signal{Body: "hello"})
	f.send(t, domain.Signal{ListID: "service_1"})
	f.send(t, coords(12.97, 77.59))
	f.send(t, domain.Signal{ListID: "plumber_1"})
	f.send(t, domain.Signal{Body: "20/03/2030"})
	f.send(t, domain.Signal{Body: "221B Baker Street"})
	f.send(t, domain.Signal{ListID: "slot_1"})

	f.gateway.failOn = func(req domain.SendRequest) bool { return true }

	_, err := f.engine.Handle(context.Background(), domain.Signal{From: sender, ButtonPayload: "pay_now"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)

	stored := f.stored(t)
	assert.Equal(t, domain.StageAwaitingPayment, stored.Stage)
	assert.Nil(t, stored.Booking)
	assert.Empty(t, stored.PaymentChoice)
}

func TestEngine_ValidationAndStateErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Handle(context.Background(), domain.Signal{Body: "hello"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.gateway.count())

	broken := domain.NewSession(sender, f.now)
	broken.Stage = domain.StageAwaitingProvider // no service, no location
	f.seed(t, broken)

	_, err = f.engine.Handle(context.Background(), domain.Signal{From: sender, ListID: "plumber_1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)

	var se *domain.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, sender, se.Key)
	assert.Zero(t, f.gateway.count(), "nothing is sent for a malformed session")
}

func TestEngine_ServiceRemovedFromCatalog(t *testing.T) {
	loc := &domain.Location{Latitude: 1, Longitude: 1}

	tests := []struct {
		name  string
		stage domain.Stage
		fill  func(s *domain.Session)
		sig   domain.Signal
	}{
		{
			name:  "sub-category",
			stage: domain.StageAwaitingSubCategory,
			sig:   domain.Signal{ListID: "electrical_wiring"},
		},
		{
			name:  "location",
			stage: domain.StageAwaitingLocation,
			sig:   coords(1, 1),
		},
		{
			name:  "provider",
			stage: domain.StageAwaitingProvider,
			fill:  func(s *domain.Session) { s.Location = loc },
			sig:   domain.Signal{ListID: "plumber_1"},
		},
		{
			name:  "payment",
			stage: domain.StageAwaitingPayment,
			fill: func(s *domain.Session) {
				s.Location = loc
				s.SelectedProvider = "plumber_1"
				s.PreferredDate = "20/01/2030"
				s.ServiceAddress = "1 Main St"
				s.SelectedSlot = "slot_1"
			},
			sig: domain.Signal{ButtonPayload: "pay_now"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			s := domain.NewSession(sender, f.now)
			s.Stage = tt.stage
			s.SelectedService = "service_retired"
			if tt.fill != nil {
				tt.fill(s)
			}
			f.seed(t, s)

			sig := tt.sig
			sig.From = sender
			_, err := f.engine.Handle(context.Background(), sig)

			var stateErr *domain.StateError
			require.ErrorAs(t, err, &stateErr)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
			assert.Equal(t, tt.stage, stateErr.Stage)
			assert.Contains(t, stateErr.Reason, "service_retired")
			assert.Zero(t, f.gateway.count())
			assert.Equal(t, tt.stage, f.stored(t).Stage)
		})
	}
}

func TestEngine_TransitionHooks(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, domain.Signal{Body: "hello"})
	f.send(t, domain.Signal{ListID: "service_3"})

	require.Len(t, f.events, 2)
	assert.Equal(t, domain.StageNew, f.events[0].From)
	assert.Equal(t, domain.StageAwaitingService, f.events[0].To)
	assert.Equal(t, domain.SignalGreeting, f.events[0].Signal)
	assert.Equal(t, domain.ActionPresentServices, f.events[0].Action)
	assert.Equal(t, domain.StageAwaitingLocation, f.events[1].To)
	assert.Equal(t, domain.ActionRequestLocation, f.events[1].Action)
}
