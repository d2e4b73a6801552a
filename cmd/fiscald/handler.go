// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/setefiscal/setefiscal/lib/apiclient"
	"github.com/setefiscal/setefiscal/lib/calstore"
	"github.com/setefiscal/setefiscal/lib/config"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/gateway"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

// server holds the handler dependencies. Wire types live in
// lib/apiclient so the daemon and the client marshal the same structs.
type server struct {
	store  *calstore.Store
	gw     *gateway.Gateway
	cfg    *config.Config
	logger *slog.Logger
}

func newHandler(store *calstore.Store, gw *gateway.Gateway, cfg *config.Config, logger *slog.Logger) http.Handler {
	s := &server{store: store, gw: gw, cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/validate-token", s.handleValidateToken)
	mux.HandleFunc("GET /v1/client/calendar", s.handleClientRead)
	mux.HandleFunc("POST /v1/client/calendar", s.handleClientWrite)
	mux.HandleFunc("POST /v1/calendars", s.owner(s.handleCreateCalendar))
	mux.HandleFunc("GET /v1/calendars", s.owner(s.handleListCalendars))
	mux.HandleFunc("GET /v1/calendars/{id}", s.owner(s.handleGetCalendar))
	mux.HandleFunc("PUT /v1/calendars/{id}", s.owner(s.handleSaveCalendar))
	mux.HandleFunc("POST /v1/calendars/{id}/tokens", s.owner(s.handleCreateToken))
	mux.HandleFunc("GET /v1/calendars/{id}/tokens", s.owner(s.handleListTokens))
	mux.HandleFunc("DELETE /v1/tokens/{id}", s.owner(s.handleDeleteToken))
	return mux
}

// ownerHandler is an owner-surface handler with the authenticated
// session already resolved.
type ownerHandler func(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession)

// owner authenticates the Bearer API key against the config registry.
// A failure here is 401, deliberately distinguishable from the 403
// token denials on the client surface.
func (s *server) owner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || key == "" {
			writeError(w, http.StatusUnauthorized, apiclient.CodeUnauthorized, "missing API key")
			return
		}
		ownerEntry := s.cfg.Authenticate(key)
		if ownerEntry == nil {
			s.logger.Info("owner auth rejected", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, apiclient.CodeUnauthorized, "invalid API key")
			return
		}
		next(w, r, calstore.OwnerSession{OwnerID: ownerEntry.ID})
	}
}

// handleValidateToken is the validation RPC. The response is an array
// of zero or one results; both an empty array and valid:false are
// denial, matching what clients already expect.
func (s *server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	validation := s.gw.Validator().Validate(r.Context(), req.Token, req.CalendarID, req.ClientID)
	if !validation.Valid {
		writeJSON(w, http.StatusOK, []gateway.Validation{})
		return
	}
	writeJSON(w, http.StatusOK, []gateway.Validation{validation})
}

func (s *server) handleClientRead(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	data, err := s.gw.Read(r.Context(), gateway.ReadRequest{
		Secret:     query.Get("token"),
		CalendarID: query.Get("calendar"),
		ClientID:   query.Get("client"),
	})
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *server) handleClientWrite(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ClientSaveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.gw.Write(r.Context(), gateway.WriteRequest{
		Secret:     req.Token,
		CalendarID: req.CalendarID,
		ClientID:   req.ClientID,
		Info:       fiscal.ClientInfo{Name: req.ClientName, TaxID: req.ClientCNPJ},
		Events:     req.Events,
	})
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiclient.SaveResponse{Success: true})
}

func (s *server) handleCreateCalendar(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	var req apiclient.CreateCalendarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	calendar, err := s.store.CreateCalendar(r.Context(), session, req.Title, req.ClientName, req.ClientCNPJ)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calendar)
}

func (s *server) handleListCalendars(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	calendars, err := s.store.ListCalendars(r.Context(), session)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if calendars == nil {
		calendars = []fiscal.Calendar{}
	}
	writeJSON(w, http.StatusOK, calendars)
}

func (s *server) handleGetCalendar(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	data, err := s.store.GetCalendar(r.Context(), session, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *server) handleSaveCalendar(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	var data fiscal.CalendarData
	if !decodeBody(w, r, &data) {
		return
	}
	if data.Calendar.ID != r.PathValue("id") {
		writeError(w, http.StatusBadRequest, apiclient.CodeBadRequest, "calendar id mismatch")
		return
	}

	if err := s.store.SaveCalendar(r.Context(), session, &data); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiclient.SaveResponse{Success: true})
}

func (s *server) handleCreateToken(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	var req apiclient.CreateTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	calendarID := r.PathValue("id")

	token, secret, err := s.store.CreateToken(r.Context(), session, calendarID, req.Scope, req.ClientID, req.ExpiresInDays)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := apiclient.CreateTokenResponse{Token: *token, Secret: secret}
	if s.cfg.PublicOrigin != "" {
		// Best effort: the slug is cosmetic, so a failed read only
		// costs the link its pretty path segment.
		slug := "cliente"
		if data, err := s.store.GetCalendar(r.Context(), session, calendarID); err == nil {
			slug = fiscal.Slugify(data.Calendar.ClientName)
		}
		resp.ShareLink = sharetoken.BuildShareLink(s.cfg.PublicOrigin, slug, calendarID, secret, req.ClientID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleListTokens(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	tokens, err := s.store.ListTokens(r.Context(), session, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if tokens == nil {
		tokens = []sharetoken.Token{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *server) handleDeleteToken(w http.ResponseWriter, r *http.Request, session calstore.OwnerSession) {
	if err := s.store.DeleteToken(r.Context(), session, r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiclient.SaveResponse{Success: true})
}

// writeGatewayError maps client-surface errors. Every denial gets the
// same generic 403; only read-only writes get their own code, since
// that tells the caller nothing about anyone else's tokens.
func (s *server) writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrReadOnly):
		writeError(w, http.StatusForbidden, apiclient.CodeReadOnly, "read-only access")
	case errors.Is(err, gateway.ErrAccessDenied):
		writeError(w, http.StatusForbidden, apiclient.CodeAccessDenied, "access denied")
	case errors.Is(err, calstore.ErrNotFound):
		// Reached only with a valid token whose calendar vanished.
		writeError(w, http.StatusForbidden, apiclient.CodeAccessDenied, "access denied")
	case errors.Is(err, calstore.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, apiclient.CodeBadRequest, "invalid event data")
	default:
		s.logger.Error("client request failed", "error", err)
		writeError(w, http.StatusInternalServerError, apiclient.CodeInternal, "internal error")
	}
}

// writeStoreError maps owner-surface errors. The owner surface is
// authenticated, so it may be specific where the client surface is
// generic.
func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calstore.ErrNotFound):
		writeError(w, http.StatusNotFound, apiclient.CodeNotFound, "not found")
	case errors.Is(err, calstore.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, apiclient.CodeBadRequest, "invalid event data")
	case errors.Is(err, calstore.ErrBadExpiry):
		writeError(w, http.StatusBadRequest, apiclient.CodeBadRequest, "expiry must be between 1 and 365 days")
	case errors.Is(err, sharetoken.ErrNoOwner):
		writeError(w, http.StatusBadRequest, apiclient.CodeBadRequest, "calendar has no owner")
	default:
		s.logger.Error("owner request failed", "error", err)
		writeError(w, http.StatusInternalServerError, apiclient.CodeInternal, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, apiclient.CodeBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiclient.ErrorResponse{Error: message, Code: code})
}
