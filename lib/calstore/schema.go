// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package calstore

import (
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema is applied on every connection via OnConnect. All statements
// are idempotent. Timestamps are Unix seconds; expires_at of zero
// means the token never expires. Dates are stored as YYYY-MM-DD text,
// which sorts correctly.
const schema = `
CREATE TABLE IF NOT EXISTS calendars (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	client_name   TEXT NOT NULL DEFAULT '',
	client_tax_id TEXT NOT NULL DEFAULT '',
	owner_id      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS calendars_by_owner ON calendars (owner_id);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	calendar_id TEXT NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
	tax_name    TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	due_date    TEXT NOT NULL,
	value_cents INTEGER NOT NULL,
	event_type  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS events_by_calendar ON events (calendar_id, due_date);

CREATE TABLE IF NOT EXISTS share_tokens (
	id            TEXT PRIMARY KEY,
	calendar_id   TEXT NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
	owner_id      TEXT NOT NULL,
	secret_digest TEXT NOT NULL UNIQUE,
	client_id     TEXT NOT NULL DEFAULT '',
	scope         TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS share_tokens_by_calendar ON share_tokens (calendar_id);
`

func applySchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, schema, nil)
}
