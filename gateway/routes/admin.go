package routes

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"cryptoavisos/core/events"
	"cryptoavisos/native/fees"
)

func (h *handler) getFee(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.Fee()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFeeView(cfg))
}

func (h *handler) prepareFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	fee, err := fees.ParsePercent(req.Fee)
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	cfg, err := h.engine.PrepareFee(r.Context(), caller(r), fee)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFeeView(cfg))
}

func (h *handler) implementFee(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.ImplementFee(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFeeView(cfg))
}

func (h *handler) getClaimable(w http.ResponseWriter, r *http.Request) {
	token, err := parseToken(r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	fee, err := h.engine.ClaimableFee(token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shipping, err := h.engine.ClaimableShippingCost(token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    events.TokenLabel(token),
		"fee":      fee.String(),
		"shipping": shipping.String(),
	})
}

type claimFunc func(ctx context.Context, caller, token common.Address, amount *big.Int) error

func (h *handler) claimFees(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.engine.ClaimFees)
}

func (h *handler) claimShipping(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.engine.ClaimShippingCost)
}

func (h *handler) claim(w http.ResponseWriter, r *http.Request, fn claimFunc) {
	var req claimRequest
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
	if err := fn(r.Context(), caller(r), token, amount); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": events.TokenLabel(token), "claimed": amount.String()})
}

func (h *handler) getShipping(w http.ResponseWriter, r *http.Request) {
	signer, err := h.engine.AllowedSigner()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nonce, err := h.engine.ShippingNonce()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signer":   signer.Hex(),
		"nonce":    nonce,
		"domainId": h.engine.DomainID(),
	})
}

func (h *handler) setSigner(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	signer, err := parseAddress(req.Address)
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if err := h.engine.SetAllowedSigner(r.Context(), caller(r), signer); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signer": signer.Hex()})
}

func (h *handler) getWhitelisted(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	ok, err := h.engine.IsWhitelisted(addr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": addr.Hex(), "whitelisted": ok})
}

func (h *handler) addWhitelisted(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	seller, err := parseAddress(req.Address)
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if err := h.engine.AddWhitelistedSeller(r.Context(), caller(r), seller); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": seller.Hex(), "whitelisted": true})
}

func (h *handler) removeWhitelisted(w http.ResponseWriter, r *http.Request) {
	seller, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if err := h.engine.RemoveWhitelistedSeller(r.Context(), caller(r), seller); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": seller.Hex(), "whitelisted": false})
}
