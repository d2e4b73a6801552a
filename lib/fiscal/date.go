// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package fiscal

import (
	"fmt"
	"time"
)

// dateLayout is the wire and storage format for calendar days.
const dateLayout = "2006-01-02"

// Date is a calendar day with no time component and no location. Fiscal
// due-dates are day-granular; carrying a time.Time around would invite
// timezone drift between what the owner entered and what the client
// sees.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate returns the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{year: year, month: month, day: day}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("fiscal: invalid date %q: %w", s, err)
	}
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}, nil
}

// DateOf truncates an instant to its calendar day in the instant's
// location.
func DateOf(t time.Time) Date {
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }

// String returns the YYYY-MM-DD representation.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// Before reports whether d falls before other.
func (d Date) Before(other Date) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}

// MarshalText implements encoding.TextMarshaler, so Date serializes as
// a YYYY-MM-DD string in JSON and CBOR.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
