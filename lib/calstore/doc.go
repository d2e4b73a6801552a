// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package calstore is the SQLite persistence layer for calendars,
// events, and share tokens.
//
// Owner-facing operations take an OwnerSession and are scoped to that
// owner's rows: a calendar belonging to someone else behaves exactly
// like a calendar that does not exist. Shared-access operations
// (LookupToken, ReadAggregate, SaveShared) carry no session — the
// gateway package layers token validation on top of them.
//
// A calendar and its events form one consistency unit. SaveShared
// reconciles the stored event set against the incoming one inside a
// single immediate transaction: rows present in both are updated, new
// rows inserted, missing rows deleted. At no point does the calendar
// exist in the database with its events removed but not yet rewritten.
package calstore
