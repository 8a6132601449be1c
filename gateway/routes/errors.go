package routes

import (
	"errors"
	"net/http"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/native/bank"
	"cryptoavisos/native/market"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps ledger errors onto HTTP statuses. Unknown errors are treated
// as internal failures.
func statusFor(err error) (int, string) {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, "request"
	case errors.Is(err, coreerrors.ErrNotExist):
		return http.StatusNotFound, coreerrors.KindState.String()
	case errors.Is(err, bank.ErrInsufficientBalance), errors.Is(err, bank.ErrInsufficientAllowance):
		return http.StatusPaymentRequired, coreerrors.KindFunds.String()
	case errors.Is(err, market.ErrReentrant):
		return http.StatusConflict, "reentrant"
	}
	kind, ok := coreerrors.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, ""
	}
	switch kind {
	case coreerrors.KindValidation:
		return http.StatusBadRequest, kind.String()
	case coreerrors.KindState:
		return http.StatusConflict, kind.String()
	case coreerrors.KindAuthorization:
		return http.StatusForbidden, kind.String()
	case coreerrors.KindFunds:
		return http.StatusPaymentRequired, kind.String()
	default:
		return http.StatusInternalServerError, ""
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
