// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/setefiscal/setefiscal/lib/calstore"
	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// TokenStore is the slice of the calendar store the validator needs.
type TokenStore interface {
	LookupToken(ctx context.Context, digest, calendarID string) (*sharetoken.Token, error)
}

// Validation is the outcome of checking a presented secret. When Valid
// is false the other fields are zero: a denial carries no detail.
type Validation struct {
	Valid      bool             `json:"valid"`
	Scope      sharetoken.Scope `json:"scope,omitempty"`
	ClientID   string           `json:"client_id,omitempty"`
	CalendarID string           `json:"calendar_id,omitempty"`
}

// Validator checks presented share secrets against stored token rows.
type Validator struct {
	store  TokenStore
	clock  clock.Clock
	logger *slog.Logger
}

// NewValidator returns a validator over the given token store.
func NewValidator(store TokenStore, clk clock.Clock, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{store: store, clock: clk, logger: logger}
}

// Validate resolves a presented secret for a calendar, optionally with
// a client identity. The checks, in order: digest lookup bound to the
// calendar, client-identity binding, expiry. Every failure — including
// a storage error — yields the same invalid result. The reason is
// logged server-side and goes nowhere else.
func (v *Validator) Validate(ctx context.Context, secret, calendarID, clientID string) Validation {
	deny := func(reason string, err error) Validation {
		attrs := []any{"calendar_id", calendarID, "reason", reason}
		if err != nil && !errors.Is(err, calstore.ErrNotFound) {
			attrs = append(attrs, "error", err)
		}
		v.logger.Info("token validation denied", attrs...)
		return Validation{}
	}

	if secret == "" || calendarID == "" {
		return deny("missing secret or calendar", nil)
	}

	token, err := v.store.LookupToken(ctx, sharetoken.Digest(secret), calendarID)
	if err != nil {
		// Fail closed: a storage fault is indistinguishable from a
		// bad token on the wire.
		return deny("no matching token", err)
	}

	if token.ClientID != "" && token.ClientID != clientID {
		return deny("client binding mismatch", nil)
	}

	if token.Expired(v.clock.Now()) {
		return deny("expired", nil)
	}

	return Validation{
		Valid:      true,
		Scope:      token.Scope,
		ClientID:   token.ClientID,
		CalendarID: token.CalendarID,
	}
}
