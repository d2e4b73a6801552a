// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package apiclient is the HTTP client for the fiscald API, used by
// the fiscal CLI and as the client session's remote backend.
//
// The package also defines the wire types both sides of the API
// marshal, so the daemon handler and this client cannot drift apart.
//
// Two authentication models coexist. Owner calls carry
// "Authorization: Bearer <api key>"; a rejected key is
// ErrUnauthorized, which is deliberately distinguishable from token
// denial. Client-session calls carry only the share secret in the
// request itself — the capability model — and a denial surfaces as
// gateway.ErrAccessDenied or gateway.ErrReadOnly, both terminal.
// Transport faults surface as ordinary wrapped errors and are the
// only retryable kind.
package apiclient
