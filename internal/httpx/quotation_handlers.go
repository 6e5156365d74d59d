package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/quotation"
)

type createQuotationReq struct {
	CustomerID string `json:"customer_id"`
}

type lineReq struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (a *API) listQuotations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.Quotes.List(r.URL.Query().Get("customer_id")))
}

func (a *API) createQuotation(w http.ResponseWriter, r *http.Request) {
	var req createQuotationReq
	if !decode(w, r, &req) {
		return
	}
	q, err := a.Svc.Quotes.CreateDraft(r.Context(), roleOf(r), req.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *API) getQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := a.Svc.Quotes.Get(param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) addLine(w http.ResponseWriter, r *http.Request) {
	var req lineReq
	if !decode(w, r, &req) {
		return
	}
	q, err := a.Svc.Quotes.AddLine(r.Context(), roleOf(r), param(r, "id"), req.SKU, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) setLineQuantity(w http.ResponseWriter, r *http.Request) {
	var req lineReq
	if !decode(w, r, &req) {
		return
	}
	q, err := a.Svc.Quotes.SetLineQuantity(r.Context(), roleOf(r), param(r, "id"), param(r, "sku"), req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type quoteFunc func(ctx context.Context, role authz.Role, id string) (quotation.Quotation, error)

func (a *API) quoteStep(w http.ResponseWriter, r *http.Request, step quoteFunc) {
	q, err := step(r.Context(), roleOf(r), param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) submitQuotation(w http.ResponseWriter, r *http.Request) {
	a.quoteStep(w, r, a.Svc.Quotes.Submit)
}

func (a *API) approveQuotation(w http.ResponseWriter, r *http.Request) {
	a.quoteStep(w, r, a.Svc.Quotes.Approve)
}

func (a *API) rejectQuotation(w http.ResponseWriter, r *http.Request) {
	a.quoteStep(w, r, a.Svc.Quotes.Reject)
}
