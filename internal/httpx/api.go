package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/app"
	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/redisx"
	"github.com/go-chi/chi/v5"
)

// StatusCache is satisfied by redisx.StatusCache.
type StatusCache interface {
	Put(ctx context.Context, orderID, status string, at time.Time) error
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
}

// API exposes the services over JSON/HTTP. Idem and Status are optional.
type API struct {
	Svc    *app.Services
	Idem   IdempotencyStore
	Status StatusCache
	Log    *slog.Logger
}

func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(a.idempotent)

		r.Get("/roles/{role}/actions", a.roleActions)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", a.listProducts)
			r.Post("/", a.createProduct)
			r.Get("/{sku}", a.getProduct)
			r.Get("/{sku}/availability", a.getAvailability)
		})
		r.Post("/receipts", a.receiveStock)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", a.listCustomers)
			r.Post("/", a.registerCustomer)
			r.Get("/{id}", a.getCustomer)
			r.Get("/{id}/credit", a.getCreditStatus)
		})

		r.Route("/quotations", func(r chi.Router) {
			r.Get("/", a.listQuotations)
			r.Post("/", a.createQuotation)
			r.Get("/{id}", a.getQuotation)
			r.Post("/{id}/lines", a.addLine)
			r.Put("/{id}/lines/{sku}", a.setLineQuantity)
			r.Post("/{id}/submit", a.submitQuotation)
			r.Post("/{id}/approve", a.approveQuotation)
			r.Post("/{id}/reject", a.rejectQuotation)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", a.listOrders)
			r.Post("/", a.createOrder)
			r.Post("/reconcile-pending", a.reconcilePending)
			r.Get("/{id}", a.getOrder)
			r.Get("/{id}/status", a.getOrderStatus)
			r.Post("/{id}/start-preparation", a.startPreparation)
			r.Post("/{id}/dispatch", a.dispatch)
			r.Post("/{id}/deliver", a.deliver)
			r.Post("/{id}/cancel", a.cancelOrder)
			r.Post("/{id}/reconcile-invoice", a.reconcileInvoice)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", a.listInvoices)
			r.Get("/overdue", a.listOverdue)
			r.Get("/summary", a.summary)
			r.Post("/mark-overdue", a.markOverdue)
			r.Get("/{id}", a.getInvoice)
			r.Post("/{id}/payments", a.recordPayment)
		})
	})
}

// param returns a path parameter with percent escapes removed. SKUs such as
// MNG-HIDR-3/4 travel escaped.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (a *API) roleActions(w http.ResponseWriter, r *http.Request) {
	role := authz.ParseRole(param(r, "role"))
	writeJSON(w, http.StatusOK, map[string]any{
		"role":    role,
		"actions": a.Svc.Gate.Actions(role),
	})
}
