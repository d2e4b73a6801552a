// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package fiscal

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const calendarIDPrefix = "sete-"

// NewCalendarID returns a fresh calendar identifier of the form
// "sete-<timestamp36>-<rand36x9>-<rand36x5>": a base-36 millisecond
// timestamp plus two random base-36 suffixes. The timestamp keeps IDs
// roughly sortable by creation time; the 14 random characters make
// them unguessable enough for URL use.
func NewCalendarID(now time.Time) string {
	return calendarIDPrefix +
		strconv.FormatInt(now.UnixMilli(), 36) + "-" +
		randBase36(9) + "-" +
		randBase36(5)
}

// IsCalendarID reports whether s has the shape of a calendar
// identifier.
func IsCalendarID(s string) bool {
	return strings.HasPrefix(s, calendarIDPrefix) && len(s) > len(calendarIDPrefix)
}

// NewEventID returns a random UUID (version 4, variant 1) for a new
// event row.
func NewEventID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("fiscal: crypto/rand failed: %v", err))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// randBase36 returns n cryptographically random base-36 characters.
// Random identifiers must never degrade silently to something
// predictable, so a broken entropy source panics.
func randBase36(n int) string {
	max := big.NewInt(int64(len(base36Alphabet)))
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("fiscal: crypto/rand failed: %v", err))
		}
		out[i] = base36Alphabet[v.Int64()]
	}
	return string(out)
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugHyphens  = regexp.MustCompile(`-+`)
	slugSpacing  = regexp.MustCompile(`\s+`)
	maxSlugChars = 16
)

// Slugify derives a URL path segment from a client name: lowercase,
// punctuation stripped, whitespace collapsed to hyphens, truncated to
// 16 characters. Empty input (or input that strips to nothing) yields
// "cliente".
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpacing.ReplaceAllString(s, "-")
	if len(s) > maxSlugChars {
		s = s[:maxSlugChars]
	}
	s = slugHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "cliente"
	}
	return s
}
