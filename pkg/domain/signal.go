package domain

import (
	"strings"
	"unicode"
)

// SignalKind is the classification of an inbound message.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalGreeting
	SignalCoordinates
	SignalListSelection
	SignalButton
	SignalText
)

func (k SignalKind) String() string {
	switch k {
	case SignalGreeting:
		return "greeting"
	case SignalCoordinates:
		return "coordinates"
	case SignalListSelection:
		return "list_selection"
	case SignalButton:
		return "button"
	case SignalText:
		return "text"
	default:
		return "none"
	}
}

var greetings = map[string]bool{
	"hello": true,
	"hi":    true,
}

// Signal is one inbound message as delivered by the channel webhook.
// Field tags match the provider's webhook form fields.
type Signal struct {
	Body          string   `mapstructure:"Body" json:"body,omitempty"`
	From          string   `mapstructure:"From" json:"from"`
	ListID        string   `mapstructure:"ListId" json:"list_id,omitempty"`
	Latitude      *float64 `mapstructure:"Latitude" json:"latitude,omitempty"`
	Longitude     *float64 `mapstructure:"Longitude" json:"longitude,omitempty"`
	ButtonPayload string   `mapstructure:"ButtonPayload" json:"button_payload,omitempty"`
}

// Validate checks the fields every unit of work needs.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.From) == "" {
		return &ValidationError{Field: "from", Reason: "sender address is required"}
	}
	return nil
}

// Kind classifies the signal. Precedence: greeting, coordinates,
// list selection, button payload, free text.
func (s Signal) Kind() SignalKind {
	switch {
	case s.IsGreeting():
		return SignalGreeting
	case s.hasCoordinates():
		return SignalCoordinates
	case strings.TrimSpace(s.ListID) != "":
		return SignalListSelection
	case strings.TrimSpace(s.ButtonPayload) != "":
		return SignalButton
	case s.Text() != "":
		return SignalText
	default:
		return SignalNone
	}
}

// IsGreeting reports whether the body contains "hello" or "hi" as a whole word,
// ignoring case. Words are split on whitespace and stripped of surrounding
// punctuation, so "hi!" greets while "Hi-Tech" does not.
func (s Signal) IsGreeting() bool {
	for _, w := range strings.Fields(strings.ToLower(s.Body)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if greetings[w] {
			return true
		}
	}
	return false
}

// Text returns the trimmed body.
func (s Signal) Text() string {
	return strings.TrimSpace(s.Body)
}

// Coordinates returns the shared position, if both halves are present and in range.
func (s Signal) Coordinates() (Location, bool) {
	if !s.hasCoordinates() {
		return Location{}, false
	}
	return Location{Latitude: *s.Latitude, Longitude: *s.Longitude}, true
}

func (s Signal) hasCoordinates() bool {
	if s.Latitude == nil || s.Longitude == nil {
		return false
	}
	lat, lng := *s.Latitude, *s.Longitude
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
