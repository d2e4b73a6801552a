// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package calstore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// maxExpiryDays caps token lifetime at one year.
const maxExpiryDays = 365

// CreateToken issues a new share token for one of the owner's
// calendars and returns the stored record together with the bearer
// secret. The secret exists only in this return value; only its digest
// is persisted.
//
// expiryDays of zero means the token never expires; otherwise it must
// be 1-365. Issuing against an ownerless calendar fails with
// sharetoken.ErrNoOwner; against someone else's calendar, ErrNotFound.
func (s *Store) CreateToken(ctx context.Context, session OwnerSession, calendarID string, scope sharetoken.Scope, clientID string, expiryDays int) (*sharetoken.Token, string, error) {
	if _, err := sharetoken.ParseScope(string(scope)); err != nil {
		return nil, "", fmt.Errorf("calstore: create token: %w", err)
	}
	if expiryDays < 0 || expiryDays > maxExpiryDays {
		return nil, "", ErrBadExpiry
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("calstore: create token: %w", err)
	}
	defer s.pool.Put(conn)

	calendar, err := readCalendar(conn, calendarID)
	if err != nil {
		return nil, "", err
	}
	if calendar.OwnerID == "" {
		return nil, "", sharetoken.ErrNoOwner
	}
	if calendar.OwnerID != session.OwnerID {
		return nil, "", ErrNotFound
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	secret := sharetoken.Generate()
	token := &sharetoken.Token{
		ID:           fiscal.NewEventID(),
		CalendarID:   calendarID,
		OwnerID:      session.OwnerID,
		SecretDigest: sharetoken.Digest(secret),
		ClientID:     clientID,
		Scope:        scope,
		CreatedAt:    now,
	}
	if expiryDays > 0 {
		token.ExpiresAt = now.Add(time.Duration(expiryDays) * 24 * time.Hour)
	}

	var expiresAt int64
	if !token.ExpiresAt.IsZero() {
		expiresAt = token.ExpiresAt.Unix()
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO share_tokens (id, calendar_id, owner_id, secret_digest, client_id, scope, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				token.ID, token.CalendarID, token.OwnerID,
				token.SecretDigest, token.ClientID, string(token.Scope),
				token.CreatedAt.Unix(), expiresAt,
			},
		})
	if err != nil {
		return nil, "", fmt.Errorf("calstore: create token: %w", err)
	}

	s.logger.Info("share token created",
		"token_id", token.ID,
		"calendar_id", calendarID,
		"scope", token.Scope,
		"client_bound", clientID != "",
	)
	return token, secret, nil
}

// ListTokens returns the share tokens the owner has issued for a
// calendar, newest first. A calendar the owner does not own yields an
// empty list, not an error: listing must not become an existence
// oracle.
func (s *Store) ListTokens(ctx context.Context, session OwnerSession, calendarID string) ([]sharetoken.Token, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("calstore: list tokens: %w", err)
	}
	defer s.pool.Put(conn)

	var tokens []sharetoken.Token
	err = sqlitex.Execute(conn, `
		SELECT id, calendar_id, owner_id, secret_digest, client_id, scope, created_at, expires_at
		FROM share_tokens WHERE calendar_id = ? AND owner_id = ?
		ORDER BY created_at DESC, id`,
		&sqlitex.ExecOptions{
			Args: []any{calendarID, session.OwnerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tokens = append(tokens, tokenFromRow(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("calstore: list tokens: %w", err)
	}
	return tokens, nil
}

// DeleteToken revokes a share token. Idempotent: deleting a token that
// does not exist, or that belongs to another owner, is a no-op.
// Validation reads the row on every request, so deletion takes effect
// immediately.
func (s *Store) DeleteToken(ctx context.Context, session OwnerSession, tokenID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("calstore: delete token: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM share_tokens WHERE id = ? AND owner_id = ?`,
		&sqlitex.ExecOptions{Args: []any{tokenID, session.OwnerID}})
	if err != nil {
		return fmt.Errorf("calstore: delete token: %w", err)
	}

	if conn.Changes() > 0 {
		s.logger.Info("share token revoked",
			"token_id", tokenID,
			"owner_id", session.OwnerID,
		)
	}
	return nil
}

// LookupToken finds the token record matching a secret digest for a
// specific calendar. Returns ErrNotFound when no row matches; expiry
// and client binding are checked by the validator, not here.
func (s *Store) LookupToken(ctx context.Context, digest, calendarID string) (*sharetoken.Token, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("calstore: lookup token: %w", err)
	}
	defer s.pool.Put(conn)

	var token *sharetoken.Token
	err = sqlitex.Execute(conn, `
		SELECT id, calendar_id, owner_id, secret_digest, client_id, scope, created_at, expires_at
		FROM share_tokens WHERE secret_digest = ? AND calendar_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{digest, calendarID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row := tokenFromRow(stmt)
				token = &row
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("calstore: lookup token: %w", err)
	}
	if token == nil {
		return nil, ErrNotFound
	}
	return token, nil
}

func tokenFromRow(stmt *sqlite.Stmt) sharetoken.Token {
	token := sharetoken.Token{
		ID:           stmt.ColumnText(0),
		CalendarID:   stmt.ColumnText(1),
		OwnerID:      stmt.ColumnText(2),
		SecretDigest: stmt.ColumnText(3),
		ClientID:     stmt.ColumnText(4),
		Scope:        sharetoken.Scope(stmt.ColumnText(5)),
		CreatedAt:    time.Unix(stmt.ColumnInt64(6), 0).UTC(),
	}
	if expiresAt := stmt.ColumnInt64(7); expiresAt != 0 {
		token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	}
	return token
}
