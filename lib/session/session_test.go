// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/gateway"
	"github.com/setefiscal/setefiscal/lib/localcache"
	"github.com/setefiscal/setefiscal/lib/session"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
	"github.com/setefiscal/setefiscal/lib/testutil"
)

const (
	calendarID = "sete-abc-def-ghi"
	secret     = "test-secret"
)

// fakeBackend is a scriptable Backend: per-call failure switches plus
// counters for asserting on coalescing and serialization.
type fakeBackend struct {
	mu sync.Mutex

	scope       sharetoken.Scope
	valid       bool
	data        *fiscal.CalendarData
	readFails   bool
	writeFails  error
	validates   int
	reads       int
	writes      int
	lastWritten gateway.WriteRequest
}

var errNetwork = errors.New("connection refused")

func newFakeBackend(scope sharetoken.Scope) *fakeBackend {
	return &fakeBackend{
		scope: scope,
		valid: true,
		data: &fiscal.CalendarData{
			Calendar: fiscal.Calendar{
				ID:         calendarID,
				Title:      fiscal.DefaultCalendarTitle,
				ClientName: "ACME",
			},
		},
	}
}

func (b *fakeBackend) Validate(_ context.Context, presented, calID, clientID string) (gateway.Validation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validates++
	if !b.valid || presented != secret || calID != calendarID {
		return gateway.Validation{}, nil
	}
	return gateway.Validation{Valid: true, Scope: b.scope, CalendarID: calID}, nil
}

func (b *fakeBackend) Read(_ context.Context, req gateway.ReadRequest) (*fiscal.CalendarData, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readFails {
		return nil, errNetwork
	}
	if !b.valid {
		return nil, gateway.ErrAccessDenied
	}
	copied := *b.data
	return &copied, nil
}

func (b *fakeBackend) Write(_ context.Context, req gateway.WriteRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	if b.writeFails != nil {
		return b.writeFails
	}
	b.lastWritten = req
	b.data.Calendar.ClientName = req.Info.Name
	b.data.Events = req.Events
	return nil
}

func (b *fakeBackend) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func newController(t *testing.T, backend session.Backend, cache *localcache.Cache) (*session.Controller, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC))
	controller := session.New(session.Config{
		Backend:  backend,
		Cache:    cache,
		Clock:    fake,
		Logger:   testutil.Logger(t),
		Debounce: 2 * time.Second,
	})
	return controller, fake
}

func editParams() session.Params {
	return session.Params{Secret: secret, CalendarID: calendarID}
}

func testEvent(taxName string) fiscal.Event {
	return fiscal.Event{
		ID:         fiscal.NewEventID(),
		CalendarID: calendarID,
		TaxName:    taxName,
		Date:       fiscal.NewDate(2026, time.March, 10),
		Value:      fiscal.MoneyFromCents(100),
		Type:       fiscal.TypeImposto,
	}
}

func TestMalformedLinkDeniedWithoutBackendCall(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeView)
	controller, _ := newController(t, backend, nil)

	if err := controller.Open(context.Background(), session.Params{Secret: secret}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if controller.State() != session.StateDenied {
		t.Errorf("state = %v, want denied", controller.State())
	}
	if controller.DeniedReason() != session.ReasonMalformedLink {
		t.Errorf("reason = %q", controller.DeniedReason())
	}
	if backend.validates != 0 || backend.reads != 0 {
		t.Error("malformed link reached the backend")
	}
}

func TestInvalidTokenDenied(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeView)
	backend.valid = false
	controller, _ := newController(t, backend, nil)

	if err := controller.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if controller.State() != session.StateDenied {
		t.Errorf("state = %v, want denied", controller.State())
	}
	if controller.DeniedReason() != session.ReasonInvalidToken {
		t.Errorf("reason = %q", controller.DeniedReason())
	}
}

func TestViewScopeRejectsEditsLocally(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeView)
	controller, _ := newController(t, backend, nil)

	if err := controller.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if controller.State() != session.StateReady {
		t.Fatalf("state = %v, want ready", controller.State())
	}
	if controller.Scope() != sharetoken.ScopeView {
		t.Errorf("scope = %v", controller.Scope())
	}

	err := controller.SetEvents([]fiscal.Event{testEvent("ICMS")})
	if !errors.Is(err, gateway.ErrReadOnly) {
		t.Errorf("view-scope edit: %v, want ErrReadOnly", err)
	}
	if backend.writeCount() != 0 {
		t.Error("view-scope edit reached the backend")
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeEdit)
	controller, fake := newController(t, backend, nil)

	if err := controller.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Three rapid edits inside the debounce window.
	for _, name := range []string{"ICMS", "ISS", "DAS"} {
		if err := controller.SetEvents([]fiscal.Event{testEvent(name)}); err != nil {
			t.Fatalf("SetEvents(%s): %v", name, err)
		}
		fake.Advance(500 * time.Millisecond)
	}
	if backend.writeCount() != 0 {
		t.Fatalf("save fired inside the debounce window (%d writes)", backend.writeCount())
	}

	fake.Advance(2 * time.Second)
	if backend.writeCount() != 1 {
		t.Fatalf("got %d writes, want 1 coalesced save", backend.writeCount())
	}
	if backend.lastWritten.Events[0].TaxName != "DAS" {
		t.Errorf("saved event = %q, want the final edit", backend.lastWritten.Events[0].TaxName)
	}
	if controller.LastSaved().IsZero() {
		t.Error("last-saved marker not set")
	}
	if controller.State() != session.StateReady {
		t.Errorf("state after save = %v", controller.State())
	}
}

func TestFlushForcesPendingSave(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeEdit)
	controller, _ := newController(t, backend, nil)

	if err := controller.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := controller.SetEvents([]fiscal.Event{testEvent("ICMS")}); err != nil {
		t.Fatal(err)
	}

	// No clock advance: the debounce window is still open.
	if err := controller.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if backend.writeCount() != 1 {
		t.Fatalf("got %d writes after flush, want 1", backend.writeCount())
	}

	// Flush with nothing pending is a no-op.
	if err := controller.Flush(context.Background()); err != nil {
		t.Fatalf("idle Flush: %v", err)
	}
	if backend.writeCount() != 1 {
		t.Error("idle flush wrote")
	}
}

func TestFailedSaveRetainsEdit(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeEdit)
	controller, _ := newController(t, backend, nil)

	if err := controller.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	edited := testEvent("ICMS")
	if err := controller.SetEvents([]fiscal.Event{edited}); err != nil {
		t.Fatal(err)
	}

	backend.writeFails = errNetwork
	if err := controller.Flush(context.Background()); err == nil {
		t.Fatal("flush during outage passed")
	}
	if controller.State() != session.StateReady {
		t.Errorf("state after failed save = %v, want ready", controller.State())
	}
	data := controller.Data()
	if len(data.Events) != 1 || data.Events[0].ID != edited.ID {
		t.Error("failed save dropped the in-memory edit")
	}

	// The retry succeeds and writes the retained edit.
	backend.writeFails = nil
	if err := controller.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if backend.lastWritten.Events[0].ID != edited.ID {
		t.Error("retry did not write the retained edit")
	}
}

func TestStaleSnapshotOnTransientReadFailure(t *testing.T) {
	cache, err := localcache.New(t.TempDir(), testutil.Logger(t))
	if err != nil {
		t.Fatal(err)
	}

	// First session: healthy, populates the cache.
	backend := newFakeBackend(sharetoken.ScopeView)
	first, _ := newController(t, backend, cache)
	if err := first.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if first.Stale() {
		t.Error("confirmed read labeled stale")
	}

	// Second session: validation works, the read path is down.
	backend.readFails = true
	second, _ := newController(t, backend, cache)
	if err := second.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if second.State() != session.StateReady {
		t.Fatalf("state = %v, want ready from cache", second.State())
	}
	if !second.Stale() {
		t.Error("cached data not labeled stale")
	}
	if second.Data().Calendar.ClientName != "ACME" {
		t.Errorf("cached data = %+v", second.Data().Calendar)
	}

	// Without a cache the transient failure surfaces as an error and
	// the session stays retryable.
	third, _ := newController(t, backend, nil)
	if err := third.Open(context.Background(), editParams()); err == nil {
		t.Fatal("open without cache during outage passed")
	}
	if third.State() == session.StateDenied {
		t.Error("transient failure denied the session")
	}
}

func TestEditsAfterSaveStartAreNotLost(t *testing.T) {
	backend := newFakeBackend(sharetoken.ScopeEdit)
	controller, fake := newController(t, backend, nil)

	if err := controller.Open(context.Background(), editParams()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := controller.SetEvents([]fiscal.Event{testEvent("ICMS")}); err != nil {
		t.Fatal(err)
	}
	fake.Advance(2 * time.Second)
	if backend.writeCount() != 1 {
		t.Fatalf("writes = %d", backend.writeCount())
	}

	// A new edit after the save re-arms the debounce.
	if err := controller.SetEvents([]fiscal.Event{testEvent("ISS")}); err != nil {
		t.Fatal(err)
	}
	fake.Advance(2 * time.Second)
	if backend.writeCount() != 2 {
		t.Fatalf("writes = %d, want 2", backend.writeCount())
	}
	if backend.lastWritten.Events[0].TaxName != "ISS" {
		t.Errorf("second save wrote %q", backend.lastWritten.Events[0].TaxName)
	}
}
