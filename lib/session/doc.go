// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package session drives a client's view of a shared calendar as a
// small state machine:
//
//	Initializing → Validating → {Denied, Ready}
//	Ready ⇄ Saving
//
// There is no terminal state: a Ready session keeps cycling through
// Saving for as long as the client edits. A link missing its calendar
// ID or secret is Denied without ever contacting the backend; an
// invalid token is Denied with the same generic message regardless of
// why the backend refused it.
//
// Edits are coalesced by a debounce timer and written as the full
// event set. Flush forces the pending save before navigation or link
// sharing. Saves are serialized; a failed save returns the session to
// Ready with the edit retained in memory, so the client's work is
// never dropped on a transient fault.
package session
