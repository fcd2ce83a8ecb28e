package runtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/concierge/internal/catalog"
	"github.com/aretw0/concierge/pkg/domain"
)

// Free-form bodies, used whenever no content template is configured.
const (
	msgDefault          = "Thanks for your message! This is an automated response."
	msgRequestLocation  = "Please share your location so we can find the nearest service provider."
	msgRepromptLocation = "Please share your location to proceed with the service request."
	msgRequestDate      = "Please enter your preferred date for the service (DD/MM/YYYY)."
	msgRequestAddress   = "Please share the address where the service is needed."
)

func defaultResponse(to string) domain.Action {
	return domain.Action{Kind: domain.ActionDefaultResponse, To: to, Body: msgDefault}
}

func (e *Engine) presentServices(to string) domain.Action {
	var b strings.Builder
	b.WriteString("Welcome! Which service do you need?\n")
	for _, s := range e.catalog.Services {
		fmt.Fprintf(&b, "\n• %s (%s)", s.Title, s.ID)
	}
	return domain.Action{
		Kind:      domain.ActionPresentServices,
		To:        to,
		Variables: map[string]string{"1": domain.BareNumber(to)},
		Body:      b.String(),
	}
}

func presentSubCategories(to string, svc catalog.Service) domain.Action {
	vars := map[string]string{"service": svc.Title}
	var b strings.Builder
	fmt.Fprintf(&b, "What kind of %s work do you need?\n", strings.ToLower(svc.Title))
	for i, sc := range svc.SubCategories {
		vars[strconv.Itoa(i+1)] = sc.Title
		fmt.Fprintf(&b, "\n• %s (%s)", sc.Title, sc.ID)
	}
	return domain.Action{
		Kind:      domain.ActionPresentSubCategories,
		To:        to,
		Variables: vars,
		Body:      b.String(),
	}
}

func requestLocation(to string) domain.Action {
	return domain.Action{Kind: domain.ActionRequestLocation, To: to, Body: msgRequestLocation}
}

func repromptLocation(to string) domain.Action {
	return domain.Action{Kind: domain.ActionRepromptLocation, To: to, Body: msgRepromptLocation}
}

// presentProviders numbers four variables per provider: name, key, price, rating.
func (e *Engine) presentProviders(to string, svc catalog.Service) domain.Action {
	vars := make(map[string]string, 4*len(svc.Providers))
	var b strings.Builder
	fmt.Fprintf(&b, "Available %s providers near you:\n", strings.ToLower(svc.Title))
	for i, p := range svc.Providers {
		n := 4 * i
		price := e.catalog.FormatPrice(p)
		rating := catalog.FormatRating(p)
		vars[strconv.Itoa(n+1)] = p.Name
		vars[strconv.Itoa(n+2)] = p.Key
		vars[strconv.Itoa(n+3)] = price
		vars[strconv.Itoa(n+4)] = rating
		fmt.Fprintf(&b, "\n• %s, %s, %s (%s)", p.Name, price, rating, p.Key)
	}
	return domain.Action{
		Kind:       domain.ActionPresentProviders,
		To:         to,
		TemplateID: svc.ProviderTemplate,
		Variables:  vars,
		Body:       b.String(),
	}
}

func requestDate(to string) domain.Action {
	return domain.Action{Kind: domain.ActionRequestDate, To: to, Body: msgRequestDate}
}

func repromptDate(to string, cause error) domain.Action {
	reason := "that date is not valid"
	var ve *domain.ValidationError
	if errors.As(cause, &ve) {
		reason = ve.Reason
	}
	return domain.Action{
		Kind:      domain.ActionRepromptDate,
		To:        to,
		Variables: map[string]string{"1": reason},
		Body:      fmt.Sprintf("Sorry, %s. Please enter a date in DD/MM/YYYY format, today or later.", reason),
	}
}

func requestAddress(to string) domain.Action {
	return domain.Action{Kind: domain.ActionRequestAddress, To: to, Body: msgRequestAddress}
}

// presentSlots sets "date" to the preferred date, then one variable per slot label.
func (e *Engine) presentSlots(to, date string) domain.Action {
	vars := map[string]string{"date": date}
	var b strings.Builder
	fmt.Fprintf(&b, "Pick a time slot for %s:\n", date)
	for i, s := range e.catalog.Slots {
		vars[strconv.Itoa(i+1)] = s.Label
		fmt.Fprintf(&b, "\n• %s (%s)", s.Label, s.ID)
	}
	return domain.Action{
		Kind:      domain.ActionPresentSlots,
		To:        to,
		Variables: vars,
		Body:      b.String(),
	}
}

func (e *Engine) presentPayment(to, slotLabel string) domain.Action {
	vars := map[string]string{"slot": slotLabel}
	var b strings.Builder
	fmt.Fprintf(&b, "You picked %s. How would you like to pay?\n", slotLabel)
	for i, p := range e.catalog.PaymentOptions {
		vars[strconv.Itoa(i+1)] = p.Label
		fmt.Fprintf(&b, "\n• %s (%s)", p.Label, p.ID)
	}
	return domain.Action{
		Kind:      domain.ActionPresentPayment,
		To:        to,
		Variables: vars,
		Body:      b.String(),
	}
}

func confirmBooking(to string, bk *domain.Booking) domain.Action {
	return domain.Action{
		Kind: domain.ActionConfirmBooking,
		To:   to,
		Variables: map[string]string{
			"1": bk.ProviderName,
			"2": bk.Date,
			"3": bk.SlotLabel,
			"4": bk.PaymentStatus,
		},
		Body: fmt.Sprintf("Your booking is confirmed!\n\nProvider: %s\nDate: %s\nTime: %s\nPayment: %s",
			bk.ProviderName, bk.Date, bk.SlotLabel, bk.PaymentStatus),
	}
}
