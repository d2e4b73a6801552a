// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package fiscal

import (
	"fmt"
	"time"
)

// DefaultCalendarTitle is the title assigned when a calendar is created
// without one.
const DefaultCalendarTitle = "Calendário de Impostos"

// Calendar is the aggregate root: display metadata for one client's
// fiscal calendar. Events and share tokens reference it by ID.
type Calendar struct {
	// ID is the stable external identifier used in URLs. Generated by
	// NewCalendarID at creation time, never a sequential key.
	ID string `json:"id" cbor:"id"`

	// Title is the calendar's display title.
	Title string `json:"calendar_title" cbor:"calendar_title"`

	// ClientName and ClientTaxID are display metadata for the client
	// the calendar belongs to. ClientTaxID is free text (typically a
	// CNPJ).
	ClientName  string `json:"client_name" cbor:"client_name"`
	ClientTaxID string `json:"client_cnpj" cbor:"client_cnpj"`

	// OwnerID identifies the authenticated accountant who owns this
	// calendar. Empty for legacy anonymous calendars, which never
	// appear in owner listings and cannot have share tokens issued
	// against them.
	OwnerID string `json:"owner_id,omitempty" cbor:"owner_id,omitempty"`

	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
	UpdatedAt time.Time `json:"updated_at" cbor:"updated_at"`
}

// EventType classifies a fiscal event.
type EventType string

const (
	// TypeImposto is a tax due-date.
	TypeImposto EventType = "imposto"

	// TypeParcelamento is an installment-plan payment.
	TypeParcelamento EventType = "parcelamento"
)

// ParseEventType validates the wire representation of an event type.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case TypeImposto, TypeParcelamento:
		return EventType(s), nil
	}
	return "", fmt.Errorf("fiscal: unknown event type %q", s)
}

// Event is a single fiscal obligation: a tax or installment due on a
// specific calendar day.
type Event struct {
	ID         string `json:"id" cbor:"id"`
	CalendarID string `json:"calendar_id" cbor:"calendar_id"`

	// TaxName is the obligation's name (e.g. "ICMS", "DAS").
	TaxName string `json:"tax_name" cbor:"tax_name"`

	// Title is an optional free-text note.
	Title string `json:"title,omitempty" cbor:"title,omitempty"`

	// Date is the due day. Calendar day only, no time component.
	Date Date `json:"date" cbor:"date"`

	// Value is the monetary amount due.
	Value Money `json:"value" cbor:"value"`

	Type EventType `json:"type" cbor:"type"`
}

// Validate checks the fields a caller-supplied event must carry before
// it can be persisted.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("fiscal: event has no id")
	}
	if e.TaxName == "" {
		return fmt.Errorf("fiscal: event %s has no tax name", e.ID)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("fiscal: event %s has no date", e.ID)
	}
	if _, err := ParseEventType(string(e.Type)); err != nil {
		return fmt.Errorf("fiscal: event %s: %w", e.ID, err)
	}
	return nil
}

// ClientInfo is the slice of calendar metadata a client-session write
// may change. The calendar title stays owner-controlled.
type ClientInfo struct {
	Name  string `json:"client_name" cbor:"client_name"`
	TaxID string `json:"client_cnpj" cbor:"client_cnpj"`
}

// CalendarData is the aggregate handed to readers: the calendar plus
// its full event list, ordered by date.
type CalendarData struct {
	Calendar Calendar `json:"calendar" cbor:"calendar"`
	Events   []Event  `json:"events" cbor:"events"`
}
