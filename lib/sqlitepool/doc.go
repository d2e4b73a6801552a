// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with the pragmas
// the calendar store depends on: WAL journaling, a busy timeout, and
// foreign keys enforced. Every database in the project goes through
// this package so the pragma set stays in one place.
package sqlitepool
