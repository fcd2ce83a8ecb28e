package domain

import (
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the user-facing date format (DD/MM/YYYY).
const DateLayout = "02/01/2006"

var datePattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)

// ParseBookingDate validates a preferred service date.
//
// The input must be exactly DD/MM/YYYY, must name a real calendar day
// (31/02/2025 is rejected), and must not be before today in now's location.
// Today itself is accepted.
func ParseBookingDate(input string, now time.Time) (time.Time, error) {
	m := datePattern.FindStringSubmatch(input)
	if m == nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "expected format DD/MM/YYYY"}
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	loc := now.Location()
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return time.Time{}, &ValidationError{Field: "date", Reason: "not a calendar date"}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if date.Before(today) {
		return time.Time{}, &ValidationError{Field: "date", Reason: "date is in the past"}
	}
	return date, nil
}
