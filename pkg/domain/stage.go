package domain

// Stage is the step of the booking workflow a session occupies.
type Stage string

const (
	StageNew                 Stage = "new"
	StageAwaitingService     Stage = "awaiting_service_selection"
	StageAwaitingSubCategory Stage = "awaiting_sub_category_selection"
	StageAwaitingLocation    Stage = "awaiting_location"
	StageAwaitingProvider    Stage = "awaiting_provider_selection"
	StageAwaitingDate        Stage = "awaiting_date"
	StageAwaitingAddress     Stage = "awaiting_service_address"
	StageAwaitingSlot        Stage = "awaiting_slot_selection"
	StageAwaitingPayment     Stage = "awaiting_payment_choice"
	StageBookingCompleted    Stage = "booking_completed" // Sink stage
)

var allStages = []Stage{
	StageNew,
	StageAwaitingService,
	StageAwaitingSubCategory,
	StageAwaitingLocation,
	StageAwaitingProvider,
	StageAwaitingDate,
	StageAwaitingAddress,
	StageAwaitingSlot,
	StageAwaitingPayment,
	StageBookingCompleted,
}

// Stages returns every stage in traversal order.
func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	for _, st := range allStages {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the booking flow has finished.
func (s Stage) Terminal() bool {
	return s == StageBookingCompleted
}

func (s Stage) String() string {
	return string(s)
}
