// Package handlers implements the HTTP handlers for the Concierge API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hearthware/concierge/internal/breaker"
	"github.com/hearthware/concierge/internal/coordinator"
	"github.com/hearthware/concierge/internal/diagnostics"
	"github.com/hearthware/concierge/internal/journal"
	"github.com/hearthware/concierge/internal/store"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Coordinator *coordinator.Coordinator
	Journal     *journal.Journal
	Diagnostics *diagnostics.Service
	Circuit     *breaker.CircuitBreaker
	Store       store.Store
}

// New creates a Handlers instance.
func New(c *coordinator.Coordinator, j *journal.Journal, d *diagnostics.Service, cb *breaker.CircuitBreaker, s store.Store) *Handlers {
	return &Handlers{Coordinator: c, Journal: j, Diagnostics: d, Circuit: cb, Store: s}
}

// handleRequestBody is the inbound payload for request handling.
type handleRequestBody struct {
	Text string `json:"text"`
}

// HandleRequest runs one request through the full lifecycle and returns its
// execution report.
func (h *Handlers) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var body handleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		respondError(w, http.StatusBadRequest, "Request body must contain non-empty text")
		return
	}

	report := h.Coordinator.HandleText(r.Context(), body.Text)
	respondJSON(w, http.StatusOK, report)
}

// StreamRequest streams the generated response as newline-delimited JSON
// chunks of growing prefixes.
func (h *Handlers) StreamRequest(w http.ResponseWriter, r *http.Request) {
	var body handleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		respondError(w, http.StatusBadRequest, "Request body must contain non-empty text")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	chunks, decision, err := h.Coordinator.StreamText(r.Context(), body.Text)
	if err != nil {
		switch {
		case errors.Is(err, coordinator.ErrRateLimited):
			respondError(w, http.StatusTooManyRequests, "Request rate limit exceeded")
		case errors.Is(err, context.DeadlineExceeded):
			respondError(w, http.StatusGatewayTimeout, "Request timed out")
		default:
			respondError(w, http.StatusInternalServerError, "Request handling failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Route", string(decision.Route))
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for chunk := range chunks {
		if err := enc.Encode(map[string]string{"text": chunk}); err != nil {
			return
		}
		flusher.Flush()
	}
}

// ListJournal returns the automation journal, newest last.
func (h *Handlers) ListJournal(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Journal.Entries())
}

// SoftDeleteJournal marks the newest journal entry deleted.
func (h *Handlers) SoftDeleteJournal(w http.ResponseWriter, r *http.Request) {
	if !h.Journal.SoftDeleteLast() {
		respondError(w, http.StatusNotFound, "Journal is empty")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// RollbackJournal undoes the most recent reversible action.
func (h *Handlers) RollbackJournal(w http.ResponseWriter, r *http.Request) {
	if !h.Journal.RollbackLast() {
		respondError(w, http.StatusConflict, "Nothing to roll back")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"rolled_back": true})
}

// GetDiagnostics runs the self-checks and returns the report.
func (h *Handlers) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Diagnostics.Run(r.Context()))
}

// GetCircuit returns the current circuit breaker snapshot.
func (h *Handlers) GetCircuit(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Circuit.State())
}

// ListInteractions returns recent persisted interactions.
func (h *Handlers) ListInteractions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	interactions, err := h.Store.ListInteractions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, interactions)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
