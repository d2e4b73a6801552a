// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/gateway"
	"github.com/setefiscal/setefiscal/lib/localcache"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// State is the session's position in the lifecycle.
type State int

const (
	StateInitializing State = iota
	StateValidating
	StateDenied
	StateReady
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateValidating:
		return "validating"
	case StateDenied:
		return "denied"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Denial reasons shown to the client. Deliberately vague: the backend
// never explains a denial, and neither does the session.
const (
	ReasonMalformedLink = "link inválido ou incompleto"
	ReasonInvalidToken  = "acesso inválido ou expirado"
)

// ErrNotReady is returned by mutations while the session is not in
// Ready (or Saving) state.
var ErrNotReady = errors.New("session: not ready")

// Backend is the remote (or in-process) data path the session talks
// to. Implementations: apiclient.Client over HTTP, GatewayBackend in
// process. Denials surface as gateway.ErrAccessDenied or
// gateway.ErrReadOnly; any other error is a transient fault.
type Backend interface {
	Validate(ctx context.Context, secret, calendarID, clientID string) (gateway.Validation, error)
	Read(ctx context.Context, req gateway.ReadRequest) (*fiscal.CalendarData, error)
	Write(ctx context.Context, req gateway.WriteRequest) error
}

// GatewayBackend adapts an in-process gateway to the Backend
// interface.
type GatewayBackend struct {
	Gateway *gateway.Gateway
}

func (b GatewayBackend) Validate(ctx context.Context, secret, calendarID, clientID string) (gateway.Validation, error) {
	return b.Gateway.Validator().Validate(ctx, secret, calendarID, clientID), nil
}

func (b GatewayBackend) Read(ctx context.Context, req gateway.ReadRequest) (*fiscal.CalendarData, error) {
	return b.Gateway.Read(ctx, req)
}

func (b GatewayBackend) Write(ctx context.Context, req gateway.WriteRequest) error {
	return b.Gateway.Write(ctx, req)
}

// Params is the capability extracted from a share link.
type Params struct {
	Secret     string
	CalendarID string
	ClientID   string
}

// Config holds the controller's dependencies.
type Config struct {
	Backend Backend

	// Cache enables the cache-aside path: snapshots stored after
	// confirmed reads and writes, surfaced (labeled stale) when a
	// read hits a transient fault. Nil disables caching.
	Cache *localcache.Cache

	// Clock drives the debounce timer and the last-saved marker.
	// Required.
	Clock clock.Clock

	Logger *slog.Logger

	// Debounce is how long the session waits after the last edit
	// before saving. Zero means DefaultDebounce.
	Debounce time.Duration
}

// DefaultDebounce matches the interactive feel of the original
// editor: long enough to coalesce a burst of edits, short enough that
// the client rarely closes the page inside the window.
const DefaultDebounce = 2 * time.Second

// Controller is the client session state machine. Safe for concurrent
// use.
type Controller struct {
	backend  Backend
	cache    *localcache.Cache
	clock    clock.Clock
	logger   *slog.Logger
	debounce time.Duration

	// saveMu serializes saves: one in-flight write per session.
	saveMu sync.Mutex

	mu           sync.Mutex
	state        State
	deniedReason string
	params       Params
	scope        sharetoken.Scope
	data         *fiscal.CalendarData
	stale        bool
	lastSaved    time.Time
	dirty        bool
	generation   uint64
	timer        *clock.Timer
	ctx          context.Context
}

// New returns a controller in Initializing state.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		backend:  cfg.Backend,
		cache:    cfg.Cache,
		clock:    cfg.Clock,
		logger:   logger,
		debounce: debounce,
		state:    StateInitializing,
	}
}

// Open validates the link parameters and loads the calendar. On
// return the session is Ready or Denied; a non-nil error means a
// transient fault left it in Validating, and Open may be called
// again.
//
// A malformed link (missing calendar ID or secret) is Denied locally,
// with no backend call: there is nothing to validate.
func (c *Controller) Open(ctx context.Context, params Params) error {
	c.mu.Lock()
	c.params = params
	c.ctx = ctx

	if params.CalendarID == "" || params.Secret == "" {
		c.state = StateDenied
		c.deniedReason = ReasonMalformedLink
		c.mu.Unlock()
		c.logger.Info("session denied", "reason", "malformed link")
		return nil
	}

	c.state = StateValidating
	c.mu.Unlock()

	validation, err := c.backend.Validate(ctx, params.Secret, params.CalendarID, params.ClientID)
	if err != nil {
		return fmt.Errorf("session: validating token: %w", err)
	}
	if !validation.Valid {
		c.mu.Lock()
		c.state = StateDenied
		c.deniedReason = ReasonInvalidToken
		c.mu.Unlock()
		c.logger.Info("session denied", "calendar_id", params.CalendarID)
		return nil
	}

	data, err := c.backend.Read(ctx, gateway.ReadRequest{
		Secret:     params.Secret,
		CalendarID: params.CalendarID,
		ClientID:   params.ClientID,
	})
	switch {
	case err == nil:
		c.storeSnapshot(data)
		c.mu.Lock()
		c.state = StateReady
		c.scope = validation.Scope
		c.data = data
		c.stale = false
		c.mu.Unlock()
		c.logger.Info("session ready",
			"calendar_id", params.CalendarID,
			"scope", validation.Scope,
		)
		return nil

	case errors.Is(err, gateway.ErrAccessDenied):
		// Token died between validation and read.
		c.mu.Lock()
		c.state = StateDenied
		c.deniedReason = ReasonInvalidToken
		c.mu.Unlock()
		return nil

	default:
		// Transient fault. Surface the cached snapshot, explicitly
		// stale, if one exists. The session is Ready for viewing but
		// its data is not confirmed server state.
		if cached, storedAt, cacheErr := c.loadSnapshot(params.CalendarID); cacheErr == nil {
			c.mu.Lock()
			c.state = StateReady
			c.scope = validation.Scope
			c.data = cached
			c.stale = true
			c.mu.Unlock()
			c.logger.Warn("session serving stale snapshot",
				"calendar_id", params.CalendarID,
				"stored_at", storedAt,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("session: reading calendar: %w", err)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DeniedReason returns the client-facing denial message, empty unless
// Denied.
func (c *Controller) DeniedReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deniedReason
}

// Scope returns the resolved scope, empty unless Ready or Saving.
func (c *Controller) Scope() sharetoken.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Stale reports whether the session's data came from the local cache
// rather than a confirmed read.
func (c *Controller) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// LastSaved returns when the last save was confirmed, zero if none.
func (c *Controller) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

// Data returns a copy of the session's current aggregate, nil unless
// Ready or Saving.
func (c *Controller) Data() *fiscal.CalendarData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		return nil
	}
	copied := *c.data
	copied.Events = append([]fiscal.Event(nil), c.data.Events...)
	return &copied
}

// SetEvents replaces the in-memory event set and schedules a
// debounced save. In view scope the edit is rejected locally; the
// gateway would reject it anyway, this just fails faster.
func (c *Controller) SetEvents(events []fiscal.Event) error {
	return c.mutate(func(data *fiscal.CalendarData) {
		data.Events = append([]fiscal.Event(nil), events...)
	})
}

// SetClientInfo updates the client-editable metadata and schedules a
// debounced save.
func (c *Controller) SetClientInfo(info fiscal.ClientInfo) error {
	return c.mutate(func(data *fiscal.CalendarData) {
		data.Calendar.ClientName = info.Name
		data.Calendar.ClientTaxID = info.TaxID
	})
}

func (c *Controller) mutate(apply func(*fiscal.CalendarData)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady && c.state != StateSaving {
		return ErrNotReady
	}
	if c.scope != sharetoken.ScopeEdit {
		return gateway.ErrReadOnly
	}

	apply(c.data)
	c.dirty = true
	c.generation++

	if c.timer != nil {
		c.timer.Reset(c.debounce)
	} else {
		c.timer = c.clock.AfterFunc(c.debounce, c.debouncedSave)
	}
	return nil
}

// debouncedSave runs when the debounce timer fires. Errors are logged
// only: the edit stays dirty and the next mutation or Flush retries.
func (c *Controller) debouncedSave() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	if err := c.save(ctx); err != nil {
		c.logger.Warn("debounced save failed", "error", err)
	}
}

// Flush forces the pending save, if any, before returning. Call it
// before navigation or anything else that abandons the session.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	return c.save(ctx)
}

// save pushes the current aggregate to the backend. Saves are
// serialized; the session shows Saving for the duration. A failure of
// any kind returns the session to Ready with the edit retained.
func (c *Controller) save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if !c.dirty || (c.state != StateReady && c.state != StateSaving) {
		c.mu.Unlock()
		return nil
	}
	c.state = StateSaving
	generation := c.generation
	params := c.params
	info := fiscal.ClientInfo{
		Name:  c.data.Calendar.ClientName,
		TaxID: c.data.Calendar.ClientTaxID,
	}
	events := append([]fiscal.Event(nil), c.data.Events...)
	snapshot := *c.data
	snapshot.Events = events
	c.mu.Unlock()

	err := c.backend.Write(ctx, gateway.WriteRequest{
		Secret:     params.Secret,
		CalendarID: params.CalendarID,
		ClientID:   params.ClientID,
		Info:       info,
		Events:     events,
	})

	c.mu.Lock()
	c.state = StateReady
	if err != nil {
		// Edit retained: dirty stays true, data untouched.
		c.mu.Unlock()
		return fmt.Errorf("session: save: %w", err)
	}
	if c.generation == generation {
		c.dirty = false
	}
	c.lastSaved = c.clock.Now()
	c.stale = false
	c.mu.Unlock()

	c.storeSnapshot(&snapshot)
	c.logger.Info("session saved",
		"calendar_id", params.CalendarID,
		"events", len(events),
	)
	return nil
}

func (c *Controller) storeSnapshot(data *fiscal.CalendarData) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(data, c.clock.Now()); err != nil {
		c.logger.Warn("snapshot store failed", "error", err)
	}
}

func (c *Controller) loadSnapshot(calendarID string) (*fiscal.CalendarData, time.Time, error) {
	if c.cache == nil {
		return nil, time.Time{}, localcache.ErrNoSnapshot
	}
	return c.cache.Load(calendarID)
}
