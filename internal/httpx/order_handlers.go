package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/orders"
)

type createOrderReq struct {
	QuotationID string `json:"quotation_id"`
}

// listOrders accepts ?status=RECEIVED,DISPATCHED.
func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	var statuses []orders.Status
	for _, s := range strings.Split(r.URL.Query().Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, orders.Status(strings.ToUpper(s)))
		}
	}
	writeJSON(w, http.StatusOK, a.Svc.Orders.ListOrders(statuses...))
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !decode(w, r, &req) {
		return
	}
	o, err := a.Svc.Orders.CreateOrder(r.Context(), roleOf(r), req.QuotationID)
	if err != nil {
		writeError(w, err)
		return
	}
	a.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusCreated, o)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Svc.Orders.GetOrder(param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves from the status cache and falls back to the lifecycle.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	ctx := r.Context()
	if a.Status != nil {
		cs, ok, err := a.Status.Get(ctx, id)
		if err != nil {
			a.Log.WarnContext(ctx, "status cache read failed", "order_id", id, "error", err)
		}
		if ok {
			writeJSON(w, http.StatusOK, cs)
			return
		}
	}
	o, err := a.Svc.Orders.GetOrder(id)
	if err != nil {
		writeError(w, err)
		return
	}
	a.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status, "updated_at": o.UpdatedAt.UTC()})
}

func (a *API) cacheStatus(ctx context.Context, o orders.Order) {
	if a.Status == nil {
		return
	}
	if err := a.Status.Put(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
		a.Log.WarnContext(ctx, "status cache write failed", "order_id", o.ID, "error", err)
	}
}

type orderFunc func(ctx context.Context, role authz.Role, id string) (orders.Order, error)

func (a *API) orderStep(w http.ResponseWriter, r *http.Request, step orderFunc) {
	o, err := step(r.Context(), roleOf(r), param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	a.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (a *API) startPreparation(w http.ResponseWriter, r *http.Request) {
	a.orderStep(w, r, a.Svc.Orders.StartPreparation)
}

func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	a.orderStep(w, r, a.Svc.Orders.Dispatch)
}

func (a *API) deliver(w http.ResponseWriter, r *http.Request) {
	a.orderStep(w, r, a.Svc.Orders.Deliver)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	a.orderStep(w, r, a.Svc.Orders.Cancel)
}

func (a *API) reconcileInvoice(w http.ResponseWriter, r *http.Request) {
	a.orderStep(w, r, a.Svc.Orders.ReconcileInvoice)
}

func (a *API) reconcilePending(w http.ResponseWriter, r *http.Request) {
	n, err := a.Svc.Orders.ReconcilePending(r.Context(), roleOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reconciled": n})
}
