package domain

import (
	"errors"
	"strings"
	"time"
)

// SendRequest is a provider-agnostic outbound message.
// Exactly one of Body or TemplateID is set.
type SendRequest struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Body       string            `json:"body,omitempty"`
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// Validate rejects requests with no destination or no content.
func (r SendRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.To) == "" {
		errs = append(errs, &ValidationError{Field: "to", Reason: "recipient address is required"})
	}
	hasBody := r.Body != ""
	hasTemplate := r.TemplateID != ""
	switch {
	case !hasBody && !hasTemplate:
		errs = append(errs, &ValidationError{Field: "body", Reason: "either message body or template id is required"})
	case hasBody && hasTemplate:
		errs = append(errs, &ValidationError{Field: "body", Reason: "message body and template id are mutually exclusive"})
	}
	return errors.Join(errs...)
}

// Receipt is the gateway's acknowledgement of a send.
type Receipt struct {
	ID     string    `json:"id"`
	To     string    `json:"to"`
	Status string    `json:"status,omitempty"`
	SentAt time.Time `json:"sent_at"`
}
