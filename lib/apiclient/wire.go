// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// Error codes carried in ErrorResponse. Denial codes are generic by
// design; the server never says why a token was refused.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeAccessDenied = "access_denied"
	CodeReadOnly     = "read_only"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ValidateRequest is the body of POST /v1/validate-token.
type ValidateRequest struct {
	Token      string `json:"token"`
	CalendarID string `json:"calendar_id"`
	ClientID   string `json:"client_id,omitempty"`
}

// ClientSaveRequest is the body of POST /v1/client/calendar. Events is
// the complete replacement set.
type ClientSaveRequest struct {
	Token      string         `json:"token"`
	CalendarID string         `json:"calendar_id"`
	ClientID   string         `json:"client_id,omitempty"`
	ClientName string         `json:"client_name"`
	ClientCNPJ string         `json:"client_cnpj"`
	Events     []fiscal.Event `json:"events"`
}

// SaveResponse is the body of a successful save.
type SaveResponse struct {
	Success bool `json:"success"`
}

// CreateCalendarRequest is the body of POST /v1/calendars.
type CreateCalendarRequest struct {
	Title      string `json:"calendar_title"`
	ClientName string `json:"client_name"`
	ClientCNPJ string `json:"client_cnpj"`
}

// CreateTokenRequest is the body of POST /v1/calendars/{id}/tokens.
// ExpiresInDays zero means the token never expires.
type CreateTokenRequest struct {
	Scope         sharetoken.Scope `json:"scope"`
	ClientID      string           `json:"client_id,omitempty"`
	ExpiresInDays int              `json:"expires_in_days"`
}

// CreateTokenResponse carries the one-time secret and the assembled
// share link alongside the stored (digest-redacted) token row. The
// secret appears here and nowhere else, ever.
type CreateTokenResponse struct {
	Token     sharetoken.Token `json:"token"`
	Secret    string           `json:"secret"`
	ShareLink string           `json:"share_link,omitempty"`
}
