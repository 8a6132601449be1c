package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cryptoavisos/core/events"
	"cryptoavisos/integrations/journal"
)

var errNoJournal = errors.New("event journal not configured")

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	token, err := parseToken(r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	balance, err := h.engine.Balance(token, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	allowance, err := h.engine.Allowance(token, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address":   owner.Hex(),
		"token":     events.TokenLabel(token),
		"balance":   balance.String(),
		"allowance": allowance.String(),
	})
}

// approve sets the allowance the custody account may pull from the caller
// when it pays for token priced products.
func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := parseToken(req.Token)
	if err != nil {
		h.fail(w, r, invalid(fmt.Errorf("token: %w", err)))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.fail(w, r, invalid(fmt.Errorf("amount: %w", err)))
		return
	}
	owner := caller(r)
	if err := h.engine.Approve(r.Context(), owner, token, amount); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address":   owner.Hex(),
		"token":     events.TokenLabel(token),
		"allowance": amount.String(),
	})
}

type eventView struct {
	Position   uint64            `json:"position"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"createdAt"`
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: errNoJournal.Error()})
		return
	}
	query := r.URL.Query()
	filter := journal.Filter{
		Type:      query.Get("type"),
		TicketID:  query.Get("ticketId"),
		ProductID: query.Get("productId"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.fail(w, r, invalid(fmt.Errorf("invalid limit %q", raw)))
			return
		}
		filter.Limit = limit
	}
	entries, err := h.events.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]eventView, 0, len(entries))
	for _, entry := range entries {
		rec, err := entry.Record()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, eventView{
			Position:   entry.Position,
			Type:       rec.Type,
			Attributes: rec.Attributes,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}
