package runtime

import (
	"github.com/aretw0/concierge/pkg/domain"
)

// transition computes the next session and the reply for one accepted
// (stage, signal) pair. A nil session means the stage is unchanged.
type transition func(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error)

// transitions is the booking workflow. Pairs that are not listed fall through
// to the stage's fallback.
var transitions = map[domain.Stage]map[domain.SignalKind]transition{
	domain.StageAwaitingService: {
		domain.SignalListSelection: selectService,
	},
	domain.StageAwaitingSubCategory: {
		domain.SignalListSelection: selectSubCategory,
	},
	domain.StageAwaitingLocation: {
		domain.SignalCoordinates: shareLocation,
	},
	domain.StageAwaitingProvider: {
		domain.SignalListSelection: selectProvider,
	},
	domain.StageAwaitingDate: {
		domain.SignalText: enterDate,
	},
	domain.StageAwaitingAddress: {
		domain.SignalText: enterAddress,
	},
	domain.StageAwaitingSlot: {
		domain.SignalListSelection: selectSlot,
	},
	domain.StageAwaitingPayment: {
		domain.SignalButton: choosePayment,
	},
}

// fallback handles every pair the table does not accept.
func fallback(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	if s.Stage == domain.StageAwaitingLocation {
		return nil, repromptLocation(s.Key), nil
	}
	return nil, defaultResponse(s.Key), nil
}

// greet restarts the flow from any stage with a fresh session.
func greet(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	next := domain.NewSession(s.Key, e.now())
	next.Stage = domain.StageAwaitingService
	return next, e.presentServices(s.Key), nil
}

func selectService(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	svc, ok := e.catalog.Service(sig.ListID)
	if !ok {
		return fallback(e, s, sig)
	}

	s.SelectedService = svc.ID
	if len(svc.SubCategories) > 0 {
		s.Stage = domain.StageAwaitingSubCategory
		return s, presentSubCategories(s.Key, svc), nil
	}
	s.Stage = domain.StageAwaitingLocation
	return s, requestLocation(s.Key), nil
}

func selectSubCategory(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	svc, err := e.selectedService(s)
	if err != nil {
		return nil, domain.Action{}, err
	}
	sc, ok := svc.SubCategory(sig.ListID)
	if !ok {
		return fallback(e, s, sig)
	}

	s.SelectedSubCategory = sc.ID
	s.Stage = domain.StageAwaitingLocation
	return s, requestLocation(s.Key), nil
}

func shareLocation(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	svc, err := e.selectedService(s)
	if err != nil {
		return nil, domain.Action{}, err
	}
	loc, _ := sig.Coordinates()

	s.Location = &loc
	s.Stage = domain.StageAwaitingProvider
	return s, e.presentProviders(s.Key, svc), nil
}

func selectProvider(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	svc, err := e.selectedService(s)
	if err != nil {
		return nil, domain.Action{}, err
	}
	p, ok := svc.Provider(sig.ListID)
	if !ok {
		return fallback(e, s, sig)
	}

	s.SelectedProvider = p.Key
	s.Stage = domain.StageAwaitingDate
	return s, requestDate(s.Key), nil
}

func enterDate(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	date, err := domain.ParseBookingDate(sig.Text(), e.now())
	if err != nil {
		return nil, repromptDate(s.Key, err), nil
	}

	s.PreferredDate = date.Format(domain.DateLayout)
	s.Stage = domain.StageAwaitingAddress
	return s, requestAddress(s.Key), nil
}

func enterAddress(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	s.ServiceAddress = sig.Text()
	s.Stage = domain.StageAwaitingSlot
	return s, e.presentSlots(s.Key, s.PreferredDate), nil
}

func selectSlot(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	slot, ok := e.catalog.Slot(sig.ListID)
	if !ok {
		return fallback(e, s, sig)
	}

	s.SelectedSlot = slot.ID
	s.Stage = domain.StageAwaitingPayment
	return s, e.presentPayment(s.Key, slot.Label), nil
}

func choosePayment(e *Engine, s *domain.Session, sig domain.Signal) (*domain.Session, domain.Action, error) {
	opt, ok := e.catalog.PaymentOption(sig.ButtonPayload)
	if !ok {
		return fallback(e, s, sig)
	}

	svc, err := e.selectedService(s)
	if err != nil {
		return nil, domain.Action{}, err
	}
	provider, ok := svc.Provider(s.SelectedProvider)
	if !ok {
		return nil, domain.Action{}, &domain.StateError{Key: s.Key, Stage: s.Stage, Reason: "selected provider " + s.SelectedProvider + " is not in the catalog"}
	}
	slot, ok := e.catalog.Slot(s.SelectedSlot)
	if !ok {
		return nil, domain.Action{}, &domain.StateError{Key: s.Key, Stage: s.Stage, Reason: "selected slot " + s.SelectedSlot + " is not in the catalog"}
	}

	s.PaymentChoice = opt.ID
	s.Stage = domain.StageBookingCompleted
	s.Booking = &domain.Booking{
		Service:       svc.ID,
		SubCategory:   s.SelectedSubCategory,
		Provider:      provider.Key,
		ProviderName:  provider.Name,
		Date:          s.PreferredDate,
		Address:       s.ServiceAddress,
		CustomerName:  s.CustomerName,
		Slot:          slot.ID,
		SlotLabel:     slot.Label,
		Payment:       opt.ID,
		PaymentStatus: opt.Status,
		CompletedAt:   e.now(),
	}
	return s, confirmBooking(s.Key, s.Booking), nil
}

// Edge is one move of the booking workflow as shown in diagrams.
type Edge struct {
	From    domain.Stage
	To      domain.Stage
	Trigger string
}

// TriggerForm marks moves made by a form submission instead of a message.
const TriggerForm = "form"

var workflow = []Edge{
	{From: domain.StageNew, To: domain.StageAwaitingService, Trigger: domain.SignalGreeting.String()},
	{From: domain.StageAwaitingService, To: domain.StageAwaitingSubCategory, Trigger: domain.SignalListSelection.String()},
	{From: domain.StageAwaitingService, To: domain.StageAwaitingLocation, Trigger: domain.SignalListSelection.String()},
	{From: domain.StageAwaitingSubCategory, To: domain.StageAwaitingLocation, Trigger: domain.SignalListSelection.String()},
	{From: domain.StageAwaitingLocation, To: domain.StageAwaitingProvider, Trigger: domain.SignalCoordinates.String()},
	{From: domain.StageAwaitingProvider, To: domain.StageAwaitingDate, Trigger: domain.SignalListSelection.String()},
	{From: domain.StageAwaitingDate, To: domain.StageAwaitingAddress, Trigger: domain.SignalText.String()},
	{From: domain.StageAwaitingDate, To: domain.StageAwaitingSlot, Trigger: TriggerForm},
	{From: domain.StageAwaitingAddress, To: domain.StageAwaitingSlot, Trigger: domain.SignalText.String()},
	{From: domain.StageAwaitingAddress, To: domain.StageAwaitingSlot, Trigger: TriggerForm},
	{From: domain.StageAwaitingSlot, To: domain.StageAwaitingPayment, Trigger: domain.SignalListSelection.String()},
	{From: domain.StageAwaitingPayment, To: domain.StageBookingCompleted, Trigger: domain.SignalButton.String()},
}

// Workflow lists the forward moves of the booking flow. A greeting restarts
// the flow from any stage and is only drawn from StageNew.
func Workflow() []Edge {
	out := make([]Edge, len(workflow))
	copy(out, workflow)
	return out
}
