// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package sharetoken

import (
	"fmt"
	"net/url"
	"strings"
)

// ShareLink is the parsed form of a client share URL. The path slug is
// cosmetic; the query parameters carry the actual capability.
type ShareLink struct {
	// Origin is the scheme and host the link points at.
	Origin string

	// Slug is the client-name path segment. Display only, never used
	// for lookup.
	Slug string

	// CalendarID and Secret together form the capability. ClientID is
	// present only for client-bound tokens.
	CalendarID string
	Secret     string
	ClientID   string
}

// BuildShareLink assembles the URL handed to a client:
//
//	<origin>/cliente/<slug>?calendar=<id>&token=<secret>[&client=<id>]
func BuildShareLink(origin, slug, calendarID, secret, clientID string) string {
	query := url.Values{}
	query.Set("calendar", calendarID)
	query.Set("token", secret)
	if clientID != "" {
		query.Set("client", clientID)
	}
	return fmt.Sprintf("%s/cliente/%s?%s",
		strings.TrimSuffix(origin, "/"), url.PathEscape(slug), query.Encode())
}

// ParseShareLink extracts the capability from a share URL. Both the
// calendar ID and the secret must be present; a missing ClientID is
// normal (the token is not client-bound).
func ParseShareLink(raw string) (*ShareLink, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("sharetoken: invalid share link: %w", err)
	}

	query := u.Query()
	link := &ShareLink{
		CalendarID: query.Get("calendar"),
		Secret:     query.Get("token"),
		ClientID:   query.Get("client"),
	}
	if u.Scheme != "" && u.Host != "" {
		link.Origin = u.Scheme + "://" + u.Host
	}
	if rest, found := strings.CutPrefix(u.Path, "/cliente/"); found {
		link.Slug, _, _ = strings.Cut(rest, "/")
	}

	if link.CalendarID == "" {
		return nil, fmt.Errorf("sharetoken: share link missing calendar id")
	}
	if link.Secret == "" {
		return nil, fmt.Errorf("sharetoken: share link missing token")
	}
	return link, nil
}
