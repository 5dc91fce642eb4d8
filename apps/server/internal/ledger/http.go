package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jass-lite/apps/server/internal/auth"
	"jass-lite/apps/server/internal/codec"
)

const queryTimeout = 5 * time.Second

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventView struct {
	EventItem
	Envelope json.RawMessage `json:"envelope,omitempty"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{auth: authService, ledger: ledgerService}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history/recent", h.handleRecent)
	mux.HandleFunc("GET /api/history/matches/{matchId}/events", h.handleEvents)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.resolveAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	items, err := h.ledger.ListRecent(ctx, accountID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		log.Printf("[Ledger] list recent failed: account=%d err=%v", accountID, err)
		writeError(w, http.StatusInternalServerError, "query recent matches failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.resolveAccount(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	matchID := strings.TrimSpace(r.PathValue("matchId"))
	if matchID == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	events, err := h.ledger.GetMatchEvents(ctx, accountID, matchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "match not found")
			return
		}
		log.Printf("[Ledger] get events failed: match=%s err=%v", matchID, err)
		writeError(w, http.StatusInternalServerError, "query match events failed")
		return
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{EventItem: e, Envelope: renderEnvelope(e.EnvelopeB64)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match_id": matchID,
		"events":   views,
	})
}

func renderEnvelope(b64 string) json.RawMessage {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil
	}
	out, err := codec.LedgerJSON(raw)
	if err != nil {
		return nil
	}
	return out
}

func (h *HTTPHandler) resolveAccount(r *http.Request) (uint64, bool) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return 0, false
	}
	ident, ok := h.auth.ResolveSession(r.Context(), token)
	if !ok {
		return 0, false
	}
	return ident.AccountID, true
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
