package routes

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"cryptoavisos/integrations/exports"
	"cryptoavisos/native/market"
)

// ticketIDsFor selects the index named by the product or buyer query
// parameter. Without either it lists every ticket.
func (h *handler) ticketIDsFor(r *http.Request) ([]common.Hash, error) {
	query := r.URL.Query()
	if raw := query.Get("product"); raw != "" {
		id, err := parseProductID(raw)
		if err != nil {
			return nil, err
		}
		return h.engine.TicketsIDsByProduct(id)
	}
	if raw := query.Get("buyer"); raw != "" {
		buyer, err := parseAddress(raw)
		if err != nil {
			return nil, invalid(err)
		}
		return h.engine.TicketsIDsByAddress(buyer)
	}
	return h.engine.TicketsIDs()
}

func (h *handler) listTickets(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ticketIDsFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": hashes(ids)})
}

func (h *handler) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ticket, err := h.engine.Ticket(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketView(ticket))
}

func (h *handler) exportTickets(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ticketIDsFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tickets := make([]*market.Ticket, 0, len(ids))
	for _, id := range ids {
		ticket, err := h.engine.Ticket(id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		tickets = append(tickets, ticket)
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	var (
		data     []byte
		checksum string
	)
	contentType := "text/csv"
	switch format {
	case "", "csv":
		data, checksum, err = exports.TicketsCSV(tickets)
	case "jsonl":
		contentType = "application/x-ndjson"
		data, checksum, err = exports.TicketsJSONL(tickets)
	default:
		h.fail(w, r, invalid(errUnknownFormat(format)))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Checksum-SHA256", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handler) payProduct(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	payment, err := req.payment()
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	ticket, err := h.engine.PayProduct(r.Context(), caller(r), payment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTicketView(ticket))
}

func (h *handler) releasePay(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, false)
}

func (h *handler) refundProduct(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, true)
}

func (h *handler) settle(w http.ResponseWriter, r *http.Request, refund bool) {
	id, err := parseTicketID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var ticket *market.Ticket
	if refund {
		ticket, err = h.engine.RefundProduct(r.Context(), caller(r), id)
	} else {
		ticket, err = h.engine.ReleasePay(r.Context(), caller(r), id)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketView(ticket))
}
