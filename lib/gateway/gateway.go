// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// Errors returned by gateway operations. Both are terminal denials:
// retrying the same request cannot succeed.
var (
	// ErrAccessDenied is the generic denial. It carries no detail by
	// construction.
	ErrAccessDenied = errors.New("gateway: access denied")

	// ErrReadOnly rejects a write through a view-scoped token.
	ErrReadOnly = errors.New("gateway: token grants read-only access")
)

// DataStore is the slice of the calendar store the gateway needs
// beyond token lookup.
type DataStore interface {
	TokenStore
	ReadAggregate(ctx context.Context, calendarID string) (*fiscal.CalendarData, error)
	SaveShared(ctx context.Context, calendarID string, info fiscal.ClientInfo, events []fiscal.Event) error
}

// ReadRequest asks for a calendar aggregate through a share token.
type ReadRequest struct {
	Secret     string
	CalendarID string
	ClientID   string
}

// WriteRequest replaces a calendar's client data through a share
// token. Events is the complete desired event set.
type WriteRequest struct {
	Secret     string
	CalendarID string
	ClientID   string
	Info       fiscal.ClientInfo
	Events     []fiscal.Event
}

// Gateway is the token-guarded data path. All client-session traffic
// flows through it; nothing else reads or writes shared calendars.
type Gateway struct {
	store     DataStore
	validator *Validator
	logger    *slog.Logger
}

// New returns a gateway over the given store and validator.
func New(store DataStore, validator *Validator, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{store: store, validator: validator, logger: logger}
}

// Validator returns the gateway's validator, for callers that expose
// the validation RPC directly.
func (g *Gateway) Validator() *Validator { return g.validator }

// Read validates the request's token and returns the calendar
// aggregate. Any valid scope may read.
func (g *Gateway) Read(ctx context.Context, req ReadRequest) (*fiscal.CalendarData, error) {
	validation := g.validator.Validate(ctx, req.Secret, req.CalendarID, req.ClientID)
	if !validation.Valid {
		return nil, ErrAccessDenied
	}

	data, err := g.store.ReadAggregate(ctx, req.CalendarID)
	if err != nil {
		return nil, fmt.Errorf("gateway: read %s: %w", req.CalendarID, err)
	}
	return data, nil
}

// Write validates the request's token immediately before writing —
// never against a cached earlier validation — and applies the save
// atomically. Scope must be edit; view tokens get ErrReadOnly, which
// tells the caller only what it already knows about its own token.
func (g *Gateway) Write(ctx context.Context, req WriteRequest) error {
	validation := g.validator.Validate(ctx, req.Secret, req.CalendarID, req.ClientID)
	if !validation.Valid {
		return ErrAccessDenied
	}
	if validation.Scope != sharetoken.ScopeEdit {
		return ErrReadOnly
	}

	if err := g.store.SaveShared(ctx, req.CalendarID, req.Info, req.Events); err != nil {
		return fmt.Errorf("gateway: write %s: %w", req.CalendarID, err)
	}

	g.logger.Info("shared write accepted",
		"calendar_id", req.CalendarID,
		"events", len(req.Events),
	)
	return nil
}
