package domain

import "time"

// Booking is the record produced when a session completes the flow.
type Booking struct {
	Service       string    `json:"service"`
	SubCategory   string    `json:"sub_category,omitempty"`
	Provider      string    `json:"provider"`
	ProviderName  string    `json:"provider_name"`
	Date          string    `json:"date"`
	Address       string    `json:"address"`
	CustomerName  string    `json:"customer_name,omitempty"`
	Slot          string    `json:"slot"`
	SlotLabel     string    `json:"slot_label"`
	Payment       string    `json:"payment"`
	PaymentStatus string    `json:"payment_status"`
	CompletedAt   time.Time `json:"completed_at"`
}

// FormSubmission is the out-of-band capture of the date and address steps.
// Field tags match the fields posted by the booking form.
type FormSubmission struct {
	Name           string `mapstructure:"name" json:"name"`
	Address        string `mapstructure:"address" json:"address"`
	PreferredDate  string `mapstructure:"date" json:"preferredDate"`
	ChannelAddress string `mapstructure:"number" json:"channelAddress"`
}
