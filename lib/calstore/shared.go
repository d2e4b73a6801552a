// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package calstore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/setefiscal/setefiscal/lib/fiscal"
)

// ReadAggregate loads a calendar and its events without any ownership
// check. This is the shared-access read path: the gateway has already
// validated a token for this calendar before calling it.
func (s *Store) ReadAggregate(ctx context.Context, calendarID string) (*fiscal.CalendarData, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("calstore: read aggregate: %w", err)
	}
	defer s.pool.Put(conn)

	calendar, err := readCalendar(conn, calendarID)
	if err != nil {
		return nil, err
	}
	events, err := readEvents(conn, calendarID)
	if err != nil {
		return nil, err
	}
	return &fiscal.CalendarData{Calendar: *calendar, Events: events}, nil
}

// SaveShared persists a client-session write: the client-editable
// calendar metadata plus the reconciled event set, in one immediate
// transaction. The calendar title and owner are not touched — a
// share token never grants control over those.
//
// All events must belong to the calendar being saved; an event
// carrying a different calendar ID aborts the whole write.
func (s *Store) SaveShared(ctx context.Context, calendarID string, info fiscal.ClientInfo, events []fiscal.Event) (err error) {
	for i := range events {
		event := &events[i]
		if err := event.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		if event.CalendarID != "" && event.CalendarID != calendarID {
			return fmt.Errorf("%w: event %s targets calendar %s", ErrInvalidEvent, event.ID, event.CalendarID)
		}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("calstore: save shared: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("calstore: save shared: begin: %w", err)
	}
	defer endTransaction(&err)

	if _, err := readCalendar(conn, calendarID); err != nil {
		return err
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	err = sqlitex.Execute(conn, `
		UPDATE calendars SET client_name = ?, client_tax_id = ?, updated_at = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{info.Name, info.TaxID, now.Unix(), calendarID},
		})
	if err != nil {
		return fmt.Errorf("calstore: save shared: %w", err)
	}

	if err := reconcileEvents(conn, calendarID, events); err != nil {
		return err
	}

	s.logger.Info("shared save applied",
		"calendar_id", calendarID,
		"events", len(events),
	)
	return nil
}
