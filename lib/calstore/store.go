// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package calstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/sqlitepool"
)

// Errors returned by store operations.
var (
	// ErrNotFound covers both a genuinely missing row and a row the
	// caller's session is not allowed to see. The two cases are
	// deliberately indistinguishable.
	ErrNotFound = errors.New("calstore: not found")

	// ErrBadExpiry is returned when a token expiry is outside 1-365
	// days.
	ErrBadExpiry = errors.New("calstore: expiry must be between 1 and 365 days")

	// ErrInvalidEvent rejects a save whose event set fails validation.
	// Nothing is written.
	ErrInvalidEvent = errors.New("calstore: invalid event")
)

// OwnerSession identifies an authenticated accountant. Every
// owner-facing store method is scoped to this identity.
type OwnerSession struct {
	OwnerID string
}

// Store is the SQLite-backed calendar store.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string

	// PoolSize defaults to 4 if zero or negative.
	PoolSize int

	// Clock provides the current time for row timestamps and token
	// expiry. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Open creates the store, applying the schema on each connection. The
// database file is created if it does not exist.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("calstore: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("calstore: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Path,
		PoolSize:  poolSize,
		Logger:    cfg.Logger,
		OnConnect: applySchema,
	})
	if err != nil {
		return nil, fmt.Errorf("calstore: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// CreateCalendar inserts a new calendar for the session's owner and
// returns it. An empty title gets the default.
func (s *Store) CreateCalendar(ctx context.Context, session OwnerSession, title, clientName, clientTaxID string) (*fiscal.Calendar, error) {
	if session.OwnerID == "" {
		return nil, fmt.Errorf("calstore: create calendar: empty owner")
	}
	if title == "" {
		title = fiscal.DefaultCalendarTitle
	}

	now := s.clock.Now()
	calendar := &fiscal.Calendar{
		ID:          fiscal.NewCalendarID(now),
		Title:       title,
		ClientName:  clientName,
		ClientTaxID: clientTaxID,
		OwnerID:     session.OwnerID,
		CreatedAt:   now.UTC().Truncate(time.Second),
		UpdatedAt:   now.UTC().Truncate(time.Second),
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("calstore: create calendar: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO calendars (id, title, client_name, client_tax_id, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				calendar.ID, calendar.Title, calendar.ClientName,
				calendar.ClientTaxID, calendar.OwnerID,
				calendar.CreatedAt.Unix(), calendar.UpdatedAt.Unix(),
			},
		})
	if err != nil {
		return nil, fmt.Errorf("calstore: create calendar: %w", err)
	}

	s.logger.Info("calendar created",
		"calendar_id", calendar.ID,
		"owner_id", calendar.OwnerID,
	)
	return calendar, nil
}

// GetCalendar returns one of the owner's calendars with its events.
// A calendar owned by someone else is ErrNotFound.
func (s *Store) GetCalendar(ctx context.Context, session OwnerSession, calendarID string) (*fiscal.CalendarData, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("calstore: get calendar: %w", err)
	}
	defer s.pool.Put(conn)

	calendar, err := readCalendar(conn, calendarID)
	if err != nil {
		return nil, err
	}
	if calendar.OwnerID != session.OwnerID {
		return nil, ErrNotFound
	}

	events, err := readEvents(conn, calendarID)
	if err != nil {
		return nil, err
	}
	return &fiscal.CalendarData{Calendar: *calendar, Events: events}, nil
}

// ListCalendars returns the owner's calendars, newest first. Ownerless
// calendars never appear.
func (s *Store) ListCalendars(ctx context.Context, session OwnerSession) ([]fiscal.Calendar, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("calstore: list calendars: %w", err)
	}
	defer s.pool.Put(conn)

	var calendars []fiscal.Calendar
	err = sqlitex.Execute(conn, `
		SELECT id, title, client_name, client_tax_id, owner_id, created_at, updated_at
		FROM calendars WHERE owner_id = ? AND owner_id != ''
		ORDER BY created_at DESC, id`,
		&sqlitex.ExecOptions{
			Args: []any{session.OwnerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				calendars = append(calendars, calendarFromRow(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("calstore: list calendars: %w", err)
	}
	return calendars, nil
}

// SaveCalendar persists the full aggregate for one of the owner's
// calendars: metadata plus the reconciled event set. The calendar must
// already exist and belong to the session's owner.
func (s *Store) SaveCalendar(ctx context.Context, session OwnerSession, data *fiscal.CalendarData) (err error) {
	for i := range data.Events {
		if err := data.Events[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("calstore: save calendar: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("calstore: save calendar: begin: %w", err)
	}
	defer endTransaction(&err)

	stored, err := readCalendar(conn, data.Calendar.ID)
	if err != nil {
		return err
	}
	if stored.OwnerID != session.OwnerID {
		return ErrNotFound
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	err = sqlitex.Execute(conn, `
		UPDATE calendars SET title = ?, client_name = ?, client_tax_id = ?, updated_at = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				data.Calendar.Title, data.Calendar.ClientName,
				data.Calendar.ClientTaxID, now.Unix(), data.Calendar.ID,
			},
		})
	if err != nil {
		return fmt.Errorf("calstore: save calendar: %w", err)
	}

	return reconcileEvents(conn, data.Calendar.ID, data.Events)
}

// readCalendar loads one calendar row, owner check left to the caller.
func readCalendar(conn *sqlite.Conn, calendarID string) (*fiscal.Calendar, error) {
	var calendar *fiscal.Calendar
	err := sqlitex.Execute(conn, `
		SELECT id, title, client_name, client_tax_id, owner_id, created_at, updated_at
		FROM calendars WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{calendarID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row := calendarFromRow(stmt)
				calendar = &row
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("calstore: reading calendar %s: %w", calendarID, err)
	}
	if calendar == nil {
		return nil, ErrNotFound
	}
	return calendar, nil
}

func calendarFromRow(stmt *sqlite.Stmt) fiscal.Calendar {
	return fiscal.Calendar{
		ID:          stmt.ColumnText(0),
		Title:       stmt.ColumnText(1),
		ClientName:  stmt.ColumnText(2),
		ClientTaxID: stmt.ColumnText(3),
		OwnerID:     stmt.ColumnText(4),
		CreatedAt:   time.Unix(stmt.ColumnInt64(5), 0).UTC(),
		UpdatedAt:   time.Unix(stmt.ColumnInt64(6), 0).UTC(),
	}
}

// readEvents loads a calendar's events ordered by due date.
func readEvents(conn *sqlite.Conn, calendarID string) ([]fiscal.Event, error) {
	var events []fiscal.Event
	var rowErr error
	err := sqlitex.Execute(conn, `
		SELECT id, calendar_id, tax_name, title, due_date, value_cents, event_type
		FROM events WHERE calendar_id = ?
		ORDER BY due_date, id`,
		&sqlitex.ExecOptions{
			Args: []any{calendarID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				date, err := fiscal.ParseDate(stmt.ColumnText(4))
				if err != nil {
					rowErr = fmt.Errorf("calstore: event %s: %w", stmt.ColumnText(0), err)
					return rowErr
				}
				events = append(events, fiscal.Event{
					ID:         stmt.ColumnText(0),
					CalendarID: stmt.ColumnText(1),
					TaxName:    stmt.ColumnText(2),
					Title:      stmt.ColumnText(3),
					Date:       date,
					Value:      fiscal.MoneyFromCents(stmt.ColumnInt64(5)),
					Type:       fiscal.EventType(stmt.ColumnText(6)),
				})
				return nil
			},
		})
	if err != nil {
		if rowErr != nil {
			return nil, rowErr
		}
		return nil, fmt.Errorf("calstore: reading events of %s: %w", calendarID, err)
	}
	return events, nil
}

// reconcileEvents brings the stored event set in line with incoming:
// update rows present in both, insert new rows, delete rows the
// incoming set no longer carries. Runs inside the caller's
// transaction.
func reconcileEvents(conn *sqlite.Conn, calendarID string, incoming []fiscal.Event) error {
	existing := make(map[string]bool)
	err := sqlitex.Execute(conn, `SELECT id FROM events WHERE calendar_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{calendarID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				existing[stmt.ColumnText(0)] = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("calstore: reconcile %s: %w", calendarID, err)
	}

	kept := make(map[string]bool, len(incoming))
	for i := range incoming {
		event := &incoming[i]
		kept[event.ID] = true
		if existing[event.ID] {
			err = sqlitex.Execute(conn, `
				UPDATE events SET tax_name = ?, title = ?, due_date = ?, value_cents = ?, event_type = ?
				WHERE id = ? AND calendar_id = ?`,
				&sqlitex.ExecOptions{
					Args: []any{
						event.TaxName, event.Title, event.Date.String(),
						event.Value.Cents(), string(event.Type),
						event.ID, calendarID,
					},
				})
		} else {
			err = sqlitex.Execute(conn, `
				INSERT INTO events (id, calendar_id, tax_name, title, due_date, value_cents, event_type)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{
					Args: []any{
						event.ID, calendarID, event.TaxName, event.Title,
						event.Date.String(), event.Value.Cents(), string(event.Type),
					},
				})
		}
		if err != nil {
			return fmt.Errorf("calstore: reconcile event %s: %w", event.ID, err)
		}
	}

	for id := range existing {
		if kept[id] {
			continue
		}
		err = sqlitex.Execute(conn, `DELETE FROM events WHERE id = ? AND calendar_id = ?`,
			&sqlitex.ExecOptions{Args: []any{id, calendarID}})
		if err != nil {
			return fmt.Errorf("calstore: reconcile delete %s: %w", id, err)
		}
	}

	return nil
}
