// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package fiscal defines the domain model: calendars of fiscal
// obligations, the events they contain, and the value types (calendar
// day, monetary amount) those records are built from.
//
// A Calendar is the aggregate root. Its external identifier is
// client-generated with a collision-resistant scheme (timestamp plus
// random suffixes) because it appears in URLs and must not be a
// guessable sequential key. Events reference their calendar by ID; a
// calendar plus its events form one consistency unit for reads and
// writes.
package fiscal
