// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package calstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
	"github.com/setefiscal/setefiscal/lib/testutil"
)

var (
	alice = OwnerSession{OwnerID: "owner-alice"}
	mal   = OwnerSession{OwnerID: "owner-mal"}
)

func openTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()

	fake := clock.Fake(time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(Config{
		Path:   filepath.Join(t.TempDir(), "fiscal.db"),
		Clock:  fake,
		Logger: testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store, fake
}

// insertOwnerless seeds a legacy calendar row with no owner, the shape
// left behind by pre-authentication data.
func insertOwnerless(t *testing.T, store *Store, id string) {
	t.Helper()

	conn, err := store.pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer store.pool.Put(conn)

	now := store.clock.Now().Unix()
	err = sqlitex.Execute(conn, `
		INSERT INTO calendars (id, title, owner_id, created_at, updated_at)
		VALUES (?, ?, '', ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{id, fiscal.DefaultCalendarTitle, now, now}})
	if err != nil {
		t.Fatalf("insert ownerless: %v", err)
	}
}

func testEvent(calendarID, taxName string, date fiscal.Date, cents int64) fiscal.Event {
	return fiscal.Event{
		ID:         fiscal.NewEventID(),
		CalendarID: calendarID,
		TaxName:    taxName,
		Date:       date,
		Value:      fiscal.MoneyFromCents(cents),
		Type:       fiscal.TypeImposto,
	}
}

func TestCreateAndGetCalendar(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "Padaria do João", "12.345.678/0001-90")
	if err != nil {
		t.Fatalf("CreateCalendar: %v", err)
	}
	if calendar.Title != fiscal.DefaultCalendarTitle {
		t.Errorf("empty title not defaulted: %q", calendar.Title)
	}
	if !fiscal.IsCalendarID(calendar.ID) {
		t.Errorf("id %q is not calendar-shaped", calendar.ID)
	}

	data, err := store.GetCalendar(ctx, alice, calendar.ID)
	if err != nil {
		t.Fatalf("GetCalendar: %v", err)
	}
	if data.Calendar.ClientName != "Padaria do João" {
		t.Errorf("client name = %q", data.Calendar.ClientName)
	}
	if len(data.Events) != 0 {
		t.Errorf("new calendar has %d events", len(data.Events))
	}

	// Another owner's session sees the calendar as missing.
	if _, err := store.GetCalendar(ctx, mal, calendar.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-owner GetCalendar: %v, want ErrNotFound", err)
	}
}

func TestListCalendarsScopedToOwner(t *testing.T) {
	store, fake := openTestStore(t)
	ctx := context.Background()

	first, err := store.CreateCalendar(ctx, alice, "A", "", "")
	if err != nil {
		t.Fatal(err)
	}
	fake.Advance(time.Minute)
	second, err := store.CreateCalendar(ctx, alice, "B", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateCalendar(ctx, mal, "C", "", ""); err != nil {
		t.Fatal(err)
	}
	insertOwnerless(t, store, "sete-legacy-000000000-00000")

	calendars, err := store.ListCalendars(ctx, alice)
	if err != nil {
		t.Fatalf("ListCalendars: %v", err)
	}
	if len(calendars) != 2 {
		t.Fatalf("alice sees %d calendars, want 2", len(calendars))
	}
	// Newest first.
	if calendars[0].ID != second.ID || calendars[1].ID != first.ID {
		t.Errorf("listing order: %s, %s", calendars[0].ID, calendars[1].ID)
	}
}

func TestSaveCalendarReconciles(t *testing.T) {
	store, fake := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "ACME", "")
	if err != nil {
		t.Fatal(err)
	}

	keep := testEvent(calendar.ID, "ICMS", fiscal.NewDate(2026, time.March, 10), 15000)
	drop := testEvent(calendar.ID, "ISS", fiscal.NewDate(2026, time.March, 15), 8000)

	data := &fiscal.CalendarData{
		Calendar: *calendar,
		Events:   []fiscal.Event{keep, drop},
	}
	if err := store.SaveCalendar(ctx, alice, data); err != nil {
		t.Fatalf("initial save: %v", err)
	}

	// Second save: keep is modified, drop disappears, add is new.
	keep.Value = fiscal.MoneyFromCents(16000)
	add := testEvent(calendar.ID, "DAS", fiscal.NewDate(2026, time.March, 20), 7100)
	fake.Advance(time.Minute)
	data.Events = []fiscal.Event{keep, add}
	if err := store.SaveCalendar(ctx, alice, data); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.GetCalendar(ctx, alice, calendar.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(got.Events))
	}
	byID := map[string]fiscal.Event{}
	for _, e := range got.Events {
		byID[e.ID] = e
	}
	if _, present := byID[drop.ID]; present {
		t.Error("removed event survived reconciliation")
	}
	if updated := byID[keep.ID]; updated.Value.Cents() != 16000 {
		t.Errorf("updated event value = %d", updated.Value.Cents())
	}
	if _, present := byID[add.ID]; !present {
		t.Error("new event missing after reconciliation")
	}
	if !got.Calendar.UpdatedAt.After(got.Calendar.CreatedAt) {
		t.Error("updated_at did not move")
	}
}

func TestSaveCalendarRejectsInvalidEvent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	good := testEvent(calendar.ID, "ICMS", fiscal.NewDate(2026, time.March, 10), 100)
	bad := good
	bad.ID = fiscal.NewEventID()
	bad.TaxName = ""

	data := &fiscal.CalendarData{Calendar: *calendar, Events: []fiscal.Event{good, bad}}
	if err := store.SaveCalendar(ctx, alice, data); err == nil {
		t.Fatal("save with invalid event passed")
	}

	// Nothing was applied.
	got, err := store.GetCalendar(ctx, alice, calendar.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 0 {
		t.Errorf("partial write: %d events stored", len(got.Events))
	}
}

func TestCreateTokenAndLookup(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	token, secret, err := store.CreateToken(ctx, alice, calendar.ID, sharetoken.ScopeEdit, "client-42", 30)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if secret == "" {
		t.Fatal("no secret returned")
	}
	if token.SecretDigest != sharetoken.Digest(secret) {
		t.Error("stored digest does not match the secret")
	}
	if token.ExpiresAt.IsZero() {
		t.Error("30-day token has no expiry")
	}

	found, err := store.LookupToken(ctx, sharetoken.Digest(secret), calendar.ID)
	if err != nil {
		t.Fatalf("LookupToken: %v", err)
	}
	if found.ID != token.ID || found.Scope != sharetoken.ScopeEdit || found.ClientID != "client-42" {
		t.Errorf("lookup returned %+v", found)
	}

	// Same digest, different calendar: no match.
	if _, err := store.LookupToken(ctx, sharetoken.Digest(secret), "sete-other-000000000-00000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-calendar lookup: %v, want ErrNotFound", err)
	}
	// Raw secret is not the digest.
	if _, err := store.LookupToken(ctx, secret, calendar.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("raw-secret lookup: %v, want ErrNotFound", err)
	}
}

func TestCreateTokenOwnership(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := store.CreateToken(ctx, mal, calendar.ID, sharetoken.ScopeView, "", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-owner CreateToken: %v, want ErrNotFound", err)
	}

	insertOwnerless(t, store, "sete-legacy-000000000-00000")
	if _, _, err := store.CreateToken(ctx, alice, "sete-legacy-000000000-00000", sharetoken.ScopeView, "", 0); !errors.Is(err, sharetoken.ErrNoOwner) {
		t.Errorf("ownerless CreateToken: %v, want ErrNoOwner", err)
	}

	if _, _, err := store.CreateToken(ctx, alice, calendar.ID, sharetoken.ScopeView, "", 366); !errors.Is(err, ErrBadExpiry) {
		t.Errorf("expiry 366: %v, want ErrBadExpiry", err)
	}
	if _, _, err := store.CreateToken(ctx, alice, calendar.ID, "admin", "", 0); err == nil {
		t.Error("bad scope passed")
	}
}

func TestListTokensRedactsAndScopes(t *testing.T) {
	store, fake := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.CreateToken(ctx, alice, calendar.ID, sharetoken.ScopeView, "", 0); err != nil {
		t.Fatal(err)
	}
	fake.Advance(time.Minute)
	second, _, err := store.CreateToken(ctx, alice, calendar.ID, sharetoken.ScopeEdit, "", 7)
	if err != nil {
		t.Fatal(err)
	}

	tokens, err := store.ListTokens(ctx, alice, calendar.ID)
	if err != nil {
		t.Fatalf("ListTokens: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}
	if tokens[0].ID != second.ID {
		t.Error("listing is not newest-first")
	}

	// A non-owner gets an empty list, not an error.
	tokens, err = store.ListTokens(ctx, mal, calendar.ID)
	if err != nil {
		t.Fatalf("non-owner ListTokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("non-owner sees %d tokens", len(tokens))
	}
}

func TestDeleteTokenIdempotentAndScoped(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	token, secret, err := store.CreateToken(ctx, alice, calendar.ID, sharetoken.ScopeView, "", 0)
	if err != nil {
		t.Fatal(err)
	}

	// Another owner's delete is a silent no-op and the token survives.
	if err := store.DeleteToken(ctx, mal, token.ID); err != nil {
		t.Fatalf("cross-owner delete: %v", err)
	}
	if _, err := store.LookupToken(ctx, sharetoken.Digest(secret), calendar.ID); err != nil {
		t.Fatalf("token vanished after cross-owner delete: %v", err)
	}

	if err := store.DeleteToken(ctx, alice, token.ID); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := store.LookupToken(ctx, sharetoken.Digest(secret), calendar.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("revoked token still resolves: %v", err)
	}

	// Deleting again is fine.
	if err := store.DeleteToken(ctx, alice, token.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSaveSharedReconciles(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "Old Name", "")
	if err != nil {
		t.Fatal(err)
	}

	event := testEvent(calendar.ID, "ICMS", fiscal.NewDate(2026, time.April, 10), 20000)
	info := fiscal.ClientInfo{Name: "New Name", TaxID: "11.222.333/0001-44"}
	if err := store.SaveShared(ctx, calendar.ID, info, []fiscal.Event{event}); err != nil {
		t.Fatalf("SaveShared: %v", err)
	}

	got, err := store.ReadAggregate(ctx, calendar.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Calendar.ClientName != "New Name" {
		t.Errorf("client name = %q", got.Calendar.ClientName)
	}
	if got.Calendar.Title != fiscal.DefaultCalendarTitle {
		t.Errorf("shared save touched the title: %q", got.Calendar.Title)
	}
	if len(got.Events) != 1 || got.Events[0].ID != event.ID {
		t.Errorf("events after shared save: %+v", got.Events)
	}

	// Cross-calendar event aborts the whole save.
	foreign := testEvent("sete-other-000000000-00000", "ISS", fiscal.NewDate(2026, time.April, 11), 100)
	if err := store.SaveShared(ctx, calendar.ID, info, []fiscal.Event{event, foreign}); err == nil {
		t.Fatal("foreign event accepted")
	}

	if _, err := store.ReadAggregate(ctx, "sete-missing-00000-00000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing aggregate: %v, want ErrNotFound", err)
	}
}

func TestSaveEmptyEventSetDeletesAll(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "ACME", "")
	if err != nil {
		t.Fatal(err)
	}

	event := testEvent(calendar.ID, "ICMS", fiscal.NewDate(2026, time.March, 10), 15000)
	if err := store.SaveShared(ctx, calendar.ID, fiscal.ClientInfo{Name: "ACME"}, []fiscal.Event{event}); err != nil {
		t.Fatalf("seeding save: %v", err)
	}

	// An empty set is a full-state replacement that clears the
	// calendar, not a no-op.
	if err := store.SaveShared(ctx, calendar.ID, fiscal.ClientInfo{Name: "ACME"}, []fiscal.Event{}); err != nil {
		t.Fatalf("empty-set save: %v", err)
	}
	got, err := store.ReadAggregate(ctx, calendar.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 0 {
		t.Fatalf("%d events survived an empty-set save", len(got.Events))
	}

	// The owner path clears the same way.
	if err := store.SaveShared(ctx, calendar.ID, fiscal.ClientInfo{}, []fiscal.Event{event}); err != nil {
		t.Fatal(err)
	}
	data := &fiscal.CalendarData{Calendar: *calendar, Events: nil}
	if err := store.SaveCalendar(ctx, alice, data); err != nil {
		t.Fatalf("empty owner save: %v", err)
	}
	got, err = store.ReadAggregate(ctx, calendar.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 0 {
		t.Fatalf("%d events survived an empty owner save", len(got.Events))
	}
}

func TestEventsOrderedByDate(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	calendar, err := store.CreateCalendar(ctx, alice, "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	late := testEvent(calendar.ID, "IRPJ", fiscal.NewDate(2026, time.June, 30), 100)
	early := testEvent(calendar.ID, "DAS", fiscal.NewDate(2026, time.January, 20), 100)
	mid := testEvent(calendar.ID, "ICMS", fiscal.NewDate(2026, time.March, 10), 100)

	if err := store.SaveShared(ctx, calendar.ID, fiscal.ClientInfo{}, []fiscal.Event{late, early, mid}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ReadAggregate(ctx, calendar.ID)
	if err != nil {
		t.Fatal(err)
	}
	var dates []string
	for _, e := range got.Events {
		dates = append(dates, e.Date.String())
	}
	want := []string{"2026-01-20", "2026-03-10", "2026-06-30"}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("order = %v, want %v", dates, want)
		}
	}
}
