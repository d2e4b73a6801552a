// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/gateway"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// Errors returned for owner-surface failures.
var (
	// ErrUnauthorized means the owner API key was missing or wrong.
	ErrUnauthorized = errors.New("apiclient: unauthorized")

	// ErrNotFound means the calendar or token does not exist, or
	// belongs to another owner.
	ErrNotFound = errors.New("apiclient: not found")
)

// Client talks to a fiscald instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the owner API key sent as a Bearer credential on
// owner-surface calls.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New returns a client for the daemon at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate implements session.Backend over POST /v1/validate-token.
// An invalid token is a zero Validation, not an error; errors mean the
// request itself failed.
func (c *Client) Validate(ctx context.Context, secret, calendarID, clientID string) (gateway.Validation, error) {
	var results []gateway.Validation
	err := c.do(ctx, http.MethodPost, "/v1/validate-token", ValidateRequest{
		Token:      secret,
		CalendarID: calendarID,
		ClientID:   clientID,
	}, &results, false)
	if err != nil {
		return gateway.Validation{}, err
	}
	if len(results) == 0 || !results[0].Valid {
		return gateway.Validation{}, nil
	}
	return results[0], nil
}

// Read implements session.Backend over GET /v1/client/calendar.
func (c *Client) Read(ctx context.Context, req gateway.ReadRequest) (*fiscal.CalendarData, error) {
	query := url.Values{}
	query.Set("calendar", req.CalendarID)
	query.Set("token", req.Secret)
	if req.ClientID != "" {
		query.Set("client", req.ClientID)
	}

	var data fiscal.CalendarData
	if err := c.do(ctx, http.MethodGet, "/v1/client/calendar?"+query.Encode(), nil, &data, false); err != nil {
		return nil, err
	}
	return &data, nil
}

// Write implements session.Backend over POST /v1/client/calendar.
func (c *Client) Write(ctx context.Context, req gateway.WriteRequest) error {
	var resp SaveResponse
	return c.do(ctx, http.MethodPost, "/v1/client/calendar", ClientSaveRequest{
		Token:      req.Secret,
		CalendarID: req.CalendarID,
		ClientID:   req.ClientID,
		ClientName: req.Info.Name,
		ClientCNPJ: req.Info.TaxID,
		Events:     req.Events,
	}, &resp, false)
}

// CreateCalendar creates a calendar owned by the authenticated owner.
func (c *Client) CreateCalendar(ctx context.Context, title, clientName, clientCNPJ string) (*fiscal.Calendar, error) {
	var calendar fiscal.Calendar
	err := c.do(ctx, http.MethodPost, "/v1/calendars", CreateCalendarRequest{
		Title:      title,
		ClientName: clientName,
		ClientCNPJ: clientCNPJ,
	}, &calendar, true)
	if err != nil {
		return nil, err
	}
	return &calendar, nil
}

// ListCalendars lists the authenticated owner's calendars.
func (c *Client) ListCalendars(ctx context.Context) ([]fiscal.Calendar, error) {
	var calendars []fiscal.Calendar
	if err := c.do(ctx, http.MethodGet, "/v1/calendars", nil, &calendars, true); err != nil {
		return nil, err
	}
	return calendars, nil
}

// GetCalendar fetches one of the owner's calendars with its events.
func (c *Client) GetCalendar(ctx context.Context, calendarID string) (*fiscal.CalendarData, error) {
	var data fiscal.CalendarData
	if err := c.do(ctx, http.MethodGet, "/v1/calendars/"+url.PathEscape(calendarID), nil, &data, true); err != nil {
		return nil, err
	}
	return &data, nil
}

// SaveCalendar persists the full aggregate for one of the owner's
// calendars.
func (c *Client) SaveCalendar(ctx context.Context, data *fiscal.CalendarData) error {
	var resp SaveResponse
	return c.do(ctx, http.MethodPut, "/v1/calendars/"+url.PathEscape(data.Calendar.ID), data, &resp, true)
}

// CreateToken issues a share token. The response is the only place the
// secret ever appears.
func (c *Client) CreateToken(ctx context.Context, calendarID string, req CreateTokenRequest) (*CreateTokenResponse, error) {
	var resp CreateTokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/calendars/"+url.PathEscape(calendarID)+"/tokens", req, &resp, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTokens lists the owner's tokens for a calendar, digests
// redacted.
func (c *Client) ListTokens(ctx context.Context, calendarID string) ([]sharetoken.Token, error) {
	var tokens []sharetoken.Token
	err := c.do(ctx, http.MethodGet, "/v1/calendars/"+url.PathEscape(calendarID)+"/tokens", nil, &tokens, true)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken revokes a token. Revoking an unknown token succeeds.
func (c *Client) DeleteToken(ctx context.Context, tokenID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/tokens/"+url.PathEscape(tokenID), nil, nil, true)
}

// do performs one API call: marshal the body, send, map the status,
// decode into out (unless nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any, ownerAuth bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ownerAuth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("apiclient: decoding response: %w", err)
		}
		return nil
	}

	return c.statusError(resp)
}

// statusError maps a non-2xx response to the client's error taxonomy.
// Denials map to sentinels so callers can tell terminal from
// transient; everything else keeps the server's message.
func (c *Client) statusError(resp *http.Response) error {
	var body ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusForbidden && body.Code == CodeReadOnly:
		return gateway.ErrReadOnly
	case resp.StatusCode == http.StatusForbidden:
		return gateway.ErrAccessDenied
	case body.Error != "":
		return fmt.Errorf("apiclient: %s (%s)", body.Error, resp.Status)
	default:
		return fmt.Errorf("apiclient: unexpected status %s", resp.Status)
	}
}
