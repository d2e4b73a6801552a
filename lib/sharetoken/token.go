// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package sharetoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Scope is the access level a share token grants over its calendar.
type Scope string

const (
	// ScopeView grants read-only access.
	ScopeView Scope = "view"

	// ScopeEdit grants read and write access.
	ScopeEdit Scope = "edit"
)

// ParseScope validates the wire representation of a scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeView, ScopeEdit:
		return Scope(s), nil
	}
	return "", fmt.Errorf("sharetoken: unknown scope %q", s)
}

// CanWrite reports whether the scope permits mutations.
func (s Scope) CanWrite() bool { return s == ScopeEdit }

// Errors returned by token operations.
var (
	// ErrNoOwner is returned when issuing a token against a calendar
	// that has no owner. Ownerless calendars cannot be shared: there
	// is nobody accountable for revoking the token later.
	ErrNoOwner = errors.New("sharetoken: calendar has no owner")

	// ErrNotFound is returned when a token ID does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("sharetoken: token not found")
)

// Token is a share-token record as stored and listed. SecretDigest is
// deliberately excluded from JSON: listings must never leak even the
// digest, and the secret itself is not stored at all.
type Token struct {
	// ID is the token's row identifier, used for revocation.
	ID string `json:"id"`

	// CalendarID is the calendar this token grants access to.
	CalendarID string `json:"calendar_id"`

	// OwnerID is the accountant who issued the token.
	OwnerID string `json:"owner_id"`

	// SecretDigest is the hex SHA-256 of the bearer secret.
	SecretDigest string `json:"-"`

	// ClientID optionally binds the token to one client identity. A
	// bound token only validates when the presenter supplies the same
	// identity.
	ClientID string `json:"client_id,omitempty"`

	Scope Scope `json:"scope"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the instant after which the token stops validating.
	// Zero means the token never expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token is past its expiry at the given
// instant. Tokens without an expiry never expire.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Generate returns a fresh bearer secret: two UUID-format random
// values joined by a hyphen, 256 bits of entropy in 73 characters.
// The secret is shown to the owner once and never stored; a broken
// entropy source panics rather than degrade to something guessable.
func Generate() string {
	return randomUUID() + "-" + randomUUID()
}

// Digest returns the hex-encoded SHA-256 of a secret. This is the only
// representation of the secret the server persists.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func randomUUID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("sharetoken: crypto/rand failed: %v", err))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
