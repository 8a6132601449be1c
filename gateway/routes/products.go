package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.ProductsIDs()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": ids})
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.engine.Product(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductView(product))
}

func (h *handler) submitProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if err := h.engine.SubmitProduct(r.Context(), caller(r), in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusCreated, in.ID)
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req productRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.ID = id
	in, err := req.input()
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if err := h.engine.UpdateProduct(r.Context(), caller(r), in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusOK, id)
}

func (h *handler) switchEnable(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.SwitchEnable(r.Context(), caller(r), id, req.Enabled); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusOK, id)
}

func (h *handler) addStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, false)
}

func (h *handler) removeStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, true)
}

func (h *handler) adjustStock(w http.ResponseWriter, r *http.Request, remove bool) {
	id, err := parseProductID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if remove {
		err = h.engine.RemoveStock(r.Context(), caller(r), id, req.Amount)
	} else {
		err = h.engine.AddStock(r.Context(), caller(r), id, req.Amount)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusOK, id)
}

func (h *handler) respondProduct(w http.ResponseWriter, r *http.Request, status int, id uint64) {
	product, err := h.engine.Product(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, newProductView(product))
}

func (h *handler) batchSubmit(w http.ResponseWriter, r *http.Request) {
	h.applyBatch(w, r, false)
}

func (h *handler) batchUpdate(w http.ResponseWriter, r *http.Request) {
	h.applyBatch(w, r, true)
}

func (h *handler) applyBatch(w http.ResponseWriter, r *http.Request, update bool) {
	var req batchRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	batch, err := req.batch()
	if err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if update {
		err = h.engine.BatchUpdateProduct(r.Context(), caller(r), batch)
	} else {
		err = h.engine.BatchSubmitProduct(r.Context(), caller(r), batch)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if update {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{"ids": batch.IDs})
}

func (h *handler) batchEnable(w http.ResponseWriter, r *http.Request) {
	var req enableBatchRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.BatchSwitchEnable(r.Context(), caller(r), req.IDs, req.Enabled); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": req.IDs})
}

func (h *handler) batchAddStock(w http.ResponseWriter, r *http.Request) {
	h.batchStock(w, r, false)
}

func (h *handler) batchRemoveStock(w http.ResponseWriter, r *http.Request) {
	h.batchStock(w, r, true)
}

func (h *handler) batchStock(w http.ResponseWriter, r *http.Request, remove bool) {
	var req stockBatchRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var err error
	if remove {
		err = h.engine.BatchRemoveStock(r.Context(), caller(r), req.IDs, req.Amounts)
	} else {
		err = h.engine.BatchAddStock(r.Context(), caller(r), req.IDs, req.Amounts)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": req.IDs})
}
