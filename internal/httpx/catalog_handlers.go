package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-order-to-cash/internal/catalog"
	"github.com/ariefcatur/go-order-to-cash/internal/credit"
)

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	low, _ := strconv.ParseBool(q.Get("low_stock"))
	writeJSON(w, http.StatusOK, a.Svc.Catalog.List(catalog.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		State:    catalog.State(strings.ToUpper(q.Get("state"))),
		LowStock: low,
	}))
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := a.Svc.Catalog.CreateProduct(r.Context(), roleOf(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Svc.Catalog.Get(param(r, "sku"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) getAvailability(w http.ResponseWriter, r *http.Request) {
	av, err := a.Svc.Catalog.GetAvailability(param(r, "sku"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (a *API) receiveStock(w http.ResponseWriter, r *http.Request) {
	var in catalog.ReceiptInput
	if !decode(w, r, &in) {
		return
	}
	p, err := a.Svc.Catalog.Receive(r.Context(), roleOf(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.Credit.List())
}

func (a *API) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var in credit.CustomerInput
	if !decode(w, r, &in) {
		return
	}
	c, err := a.Svc.Credit.RegisterCustomer(r.Context(), roleOf(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := a.Svc.Credit.Get(param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getCreditStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.Svc.Credit.GetCreditStatus(param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
