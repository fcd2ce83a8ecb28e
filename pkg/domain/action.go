package domain

// ActionKind names the reply the engine wants sent back to the remote party.
type ActionKind string

// Standard Action Kinds
const (
	ActionPresentServices      ActionKind = "present_services"
	ActionPresentSubCategories ActionKind = "present_sub_categories"
	ActionRequestLocation      ActionKind = "request_location"
	ActionRepromptLocation     ActionKind = "reprompt_location"
	ActionPresentProviders     ActionKind = "present_providers"
	ActionRequestDate          ActionKind = "request_date"
	ActionRepromptDate         ActionKind = "reprompt_date"
	ActionRequestAddress       ActionKind = "request_address"
	ActionPresentSlots         ActionKind = "present_slots"
	ActionPresentPayment       ActionKind = "present_payment"
	ActionConfirmBooking       ActionKind = "confirm_booking"
	ActionDefaultResponse      ActionKind = "default_response"
)

// Action is a reply produced by a transition. It carries both the template
// variables and a free-form rendering, so the composer can pick whichever the
// deployment supports.
type Action struct {
	Kind ActionKind `json:"kind"`

	// To is the destination channel address.
	To string `json:"to"`

	// TemplateID overrides the template configured for Kind (e.g. a
	// service-specific provider list).
	TemplateID string `json:"template_id,omitempty"`

	// Variables are the template placeholders, keyed by index ("1", "2", ...) or name.
	Variables map[string]string `json:"variables,omitempty"`

	// Body is the free-form rendering used when no template is configured.
	Body string `json:"body"`
}
