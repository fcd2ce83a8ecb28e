package domain

import "time"

// Location is a position shared by the remote party.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session represents the conversation state of one remote party.
// It is keyed by the channel address (e.g. "whatsapp:+15550001111").
type Session struct {
	// Key is the channel address of the remote party.
	Key string `json:"key"`

	// Stage is the current step of the booking workflow.
	Stage Stage `json:"stage"`

	// Catalog selections. Set once per booking.
	SelectedService     string `json:"selected_service,omitempty"`
	SelectedSubCategory string `json:"selected_sub_category,omitempty"`
	SelectedProvider    string `json:"selected_provider,omitempty"`

	Location *Location `json:"location,omitempty"`

	// Free-text captures, validated before acceptance.
	PreferredDate  string `json:"preferred_date,omitempty"`
	ServiceAddress string `json:"service_address,omitempty"`
	CustomerName   string `json:"customer_name,omitempty"`

	SelectedSlot  string `json:"selected_slot,omitempty"`
	PaymentChoice string `json:"payment_choice,omitempty"`

	// Booking is set when the session reaches StageBookingCompleted.
	Booking *Booking `json:"booking,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a clean session in StageNew.
func NewSession(key string, now time.Time) *Session {
	return &Session{
		Key:       key,
		Stage:     StageNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy, safe to mutate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	if s.Location != nil {
		loc := *s.Location
		next.Location = &loc
	}
	if s.Booking != nil {
		b := *s.Booking
		next.Booking = &b
	}
	return &next
}

// Check verifies that every field the current stage depends on is populated.
// A failure means the session was corrupted or built by hand; it is never
// caused by user input.
func (s *Session) Check() error {
	if s == nil {
		return &StateError{Reason: "session is nil"}
	}
	if !s.Stage.Valid() {
		return &StateError{Key: s.Key, Stage: s.Stage, Reason: "unknown stage"}
	}

	need := func(ok bool, field string) error {
		if ok {
			return nil
		}
		return &StateError{Key: s.Key, Stage: s.Stage, Reason: field + " is not set"}
	}

	rank := stageRank(s.Stage)
	checks := []struct {
		from  Stage
		ok    bool
		field string
	}{
		{StageAwaitingSubCategory, s.SelectedService != "", "selected service"},
		{StageAwaitingProvider, s.Location != nil, "location"},
		{StageAwaitingDate, s.SelectedProvider != "", "selected provider"},
		{StageAwaitingAddress, s.PreferredDate != "", "preferred date"},
		{StageAwaitingSlot, s.ServiceAddress != "", "service address"},
		{StageAwaitingPayment, s.SelectedSlot != "", "selected slot"},
		{StageBookingCompleted, s.PaymentChoice != "", "payment choice"},
		{StageBookingCompleted, s.Booking != nil, "booking"},
	}
	for _, c := range checks {
		if rank >= stageRank(c.from) {
			if err := need(c.ok, c.field); err != nil {
				return err
			}
		}
	}
	return nil
}

func stageRank(s Stage) int {
	for i, st := range allStages {
		if st == s {
			return i
		}
	}
	return -1
}
