package httpx

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type paymentReq struct {
	Amount decimal.Decimal `json:"amount"`
}

func (a *API) listInvoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.Billing.List(r.URL.Query().Get("customer_id")))
}

func (a *API) listOverdue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.Billing.ListOverdue(a.Svc.Now()))
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.Billing.Summary(a.Svc.Now()))
}

func (a *API) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := a.Svc.Billing.GetInvoice(param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if !decode(w, r, &req) {
		return
	}
	inv, err := a.Svc.Billing.RecordPayment(r.Context(), roleOf(r), param(r, "id"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) markOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := a.Svc.Billing.MarkOverdue(r.Context(), roleOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}
