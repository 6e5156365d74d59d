package orders

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/billing"
	"github.com/ariefcatur/go-order-to-cash/internal/catalog"
	"github.com/ariefcatur/go-order-to-cash/internal/credit"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/ariefcatur/go-order-to-cash/internal/ids"
	"github.com/ariefcatur/go-order-to-cash/internal/quotation"
)

type Quotes interface {
	Get(id string) (quotation.Quotation, error)
	Claim(id, orderID string) (quotation.Quotation, error)
	Unclaim(id, orderID string)
}

type Stock interface {
	ReserveAll(ctx context.Context, holder string, lines []catalog.Line) error
	ReleaseAll(ctx context.Context, holder string, lines []catalog.Line) error
	CommitAll(ctx context.Context, holder string, lines []catalog.Line) error
}

type CreditBook interface {
	GetCreditStatus(customerID string) (credit.CreditStatus, error)
}

type Invoicer interface {
	IssueInvoice(ctx context.Context, req billing.IssueRequest) (billing.Invoice, error)
}

type record struct {
	mu sync.Mutex
	o  Order
}

// Lifecycle runs the order state machine. Every transition holds the lock of
// its own order only, so different orders move in parallel.
type Lifecycle struct {
	Gate      *authz.Gate
	Quotes    Quotes
	Stock     Stock
	Credit    CreditBook
	Invoicer  Invoicer
	IDs       *ids.Allocator
	Publisher events.Publisher
	Producer  string
	Log       *slog.Logger
	Now       func() time.Time

	mu     sync.RWMutex
	orders map[string]*record
}

func NewLifecycle(gate *authz.Gate, quotes Quotes, stock Stock, cb CreditBook, inv Invoicer, alloc *ids.Allocator, pub events.Publisher, log *slog.Logger) *Lifecycle {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{
		Gate:      gate,
		Quotes:    quotes,
		Stock:     stock,
		Credit:    cb,
		Invoicer:  inv,
		IDs:       alloc,
		Publisher: pub,
		Producer:  "orders",
		Log:       log,
		Now:       time.Now,
		orders:    make(map[string]*record),
	}
}

func (l *Lifecycle) get(id string) (*record, error) {
	l.mu.RLock()
	r, ok := l.orders[id]
	l.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("order", id)
	}
	return r, nil
}

// CreateOrder converts an Approved quotation into an order in Received and
// reserves stock for every line as one set. If any line cannot be reserved
// nothing is reserved and the quotation stays convertible.
func (l *Lifecycle) CreateOrder(ctx context.Context, role authz.Role, quotationID string) (Order, error) {
	if err := l.Gate.Authorize(role, authz.ActionCreateOrder); err != nil {
		return Order{}, err
	}
	q, err := l.Quotes.Get(quotationID)
	if err != nil {
		return Order{}, err
	}
	if q.Status != quotation.StatusApproved {
		return Order{}, errs.InvalidTransition("quotation", quotationID, string(q.Status), string(authz.ActionCreateOrder))
	}
	st, err := l.Credit.GetCreditStatus(q.CustomerID)
	if err != nil {
		return Order{}, err
	}
	if err := l.Gate.AuthorizeCredit(role, authz.ActionCreateOrder, q.CustomerID, st.Status == credit.StatusBlocked); err != nil {
		return Order{}, err
	}

	orderID := l.IDs.Next(ids.PrefixOrder)
	snap, err := l.Quotes.Claim(quotationID, orderID)
	if err != nil {
		return Order{}, err
	}

	now := l.Now()
	o := Order{
		ID:          orderID,
		QuotationID: snap.ID,
		CustomerID:  snap.CustomerID,
		Lines:       make([]Line, 0, len(snap.Lines)),
		Total:       snap.Total,
		Status:      StatusReceived,
		Timestamps:  map[Status]time.Time{StatusReceived: now},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, ln := range snap.Lines {
		o.Lines = append(o.Lines, Line{SKU: ln.SKU, Qty: ln.Qty, UnitPrice: ln.UnitPrice, Subtotal: ln.Subtotal})
	}

	if err := l.Stock.ReserveAll(ctx, orderID, o.stockLines()); err != nil {
		l.Quotes.Unclaim(quotationID, orderID)
		l.Log.InfoContext(ctx, "order creation refused", "quotation_id", quotationID, "error", err)
		return Order{}, err
	}

	l.mu.Lock()
	l.orders[orderID] = &record{o: o}
	l.mu.Unlock()

	l.Log.InfoContext(ctx, "order created", "order_id", orderID, "quotation_id", quotationID,
		"customer_id", o.CustomerID, "total", o.Total.StringFixed(2), "role", role)
	items := make([]events.ItemPrice, 0, len(o.Lines))
	for _, ln := range o.Lines {
		items = append(items, events.ItemPrice{SKU: ln.SKU, Qty: ln.Qty, UnitPrice: ln.UnitPrice})
	}
	l.publish(ctx, events.EventOrderCreated, orderID, events.OrderCreatedPayload{
		OrderID:     orderID,
		QuotationID: quotationID,
		CustomerID:  o.CustomerID,
		Items:       items,
		Total:       o.Total,
	}, now)
	return o.clone(), nil
}

// advance applies t to the order and publishes the change once the order
// lock is released.
func (l *Lifecycle) advance(ctx context.Context, role authz.Role, id string, t transition, effect func(o *Order) error) (Order, error) {
	if err := l.Gate.Authorize(role, t.action); err != nil {
		return Order{}, err
	}
	r, err := l.get(id)
	if err != nil {
		return Order{}, err
	}
	o, from, changed, err := l.apply(r, t, effect)
	if err != nil || !changed {
		return o, err
	}

	l.Log.InfoContext(ctx, "order status changed", "order_id", id, "from", from, "to", t.to, "role", role)
	evType := events.EventOrderStatusChanged
	if t.to == StatusCancelled {
		evType = events.EventOrderCancelled
	}
	l.publish(ctx, evType, id, events.OrderStatusChangedPayload{
		OrderID: id, From: string(from), To: string(t.to), Role: string(role),
	}, o.UpdatedAt)
	return o, nil
}

// apply runs effect and moves the order under its lock. changed is false when
// the order already was in t.to.
func (l *Lifecycle) apply(r *record, t transition, effect func(o *Order) error) (Order, Status, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.o.Status
	if from == t.to {
		return r.o.clone(), from, false, nil
	}
	if !t.allowedFrom(from) {
		return Order{}, from, false, errs.InvalidTransition("order", r.o.ID, string(from), string(t.action))
	}
	if effect != nil {
		if err := effect(&r.o); err != nil {
			return Order{}, from, false, err
		}
	}
	now := l.Now()
	r.o.Status = t.to
	r.o.Timestamps[t.to] = now
	r.o.UpdatedAt = now
	return r.o.clone(), from, true, nil
}

func (l *Lifecycle) StartPreparation(ctx context.Context, role authz.Role, id string) (Order, error) {
	return l.advance(ctx, role, id, startPreparation, nil)
}

// Dispatch ships the reserved stock and issues the invoice. A failed invoice
// does not undo the dispatch: the order keeps PendingInvoice until
// ReconcileInvoice succeeds. Billing is called without the order lock; it is
// keyed by order id, so overlapping calls still yield one invoice.
func (l *Lifecycle) Dispatch(ctx context.Context, role authz.Role, id string) (Order, error) {
	o, err := l.advance(ctx, role, id, dispatch, func(o *Order) error {
		return l.Stock.CommitAll(ctx, o.ID, o.stockLines())
	})
	if err != nil || o.InvoiceID != "" || o.PendingInvoice {
		return o, err
	}
	o, err = l.invoice(ctx, o)
	if err != nil {
		l.Log.WarnContext(ctx, "invoice not issued, order pending reconciliation", "order_id", id, "error", err)
	}
	return o, nil
}

// invoice issues the invoice for the dispatched order o and records the
// outcome on the stored order. On failure the order is flagged PendingInvoice
// unless a concurrent call already invoiced it.
func (l *Lifecycle) invoice(ctx context.Context, o Order) (Order, error) {
	inv, issueErr := l.Invoicer.IssueInvoice(ctx, billing.IssueRequest{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Amount:     o.Total,
	})
	r, err := l.get(o.ID)
	if err != nil {
		return Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case issueErr == nil:
		r.o.InvoiceID = inv.ID
		r.o.PendingInvoice = false
		r.o.UpdatedAt = l.Now()
	case r.o.InvoiceID == "":
		r.o.PendingInvoice = true
	}
	return r.o.clone(), issueErr
}

func (l *Lifecycle) Deliver(ctx context.Context, role authz.Role, id string) (Order, error) {
	return l.advance(ctx, role, id, deliver, nil)
}

// Cancel releases exactly what the order reserved.
func (l *Lifecycle) Cancel(ctx context.Context, role authz.Role, id string) (Order, error) {
	return l.advance(ctx, role, id, cancel, func(o *Order) error {
		return l.Stock.ReleaseAll(ctx, o.ID, o.stockLines())
	})
}

// ReconcileInvoice retries invoice issuance for a dispatched order. Orders
// that already have an invoice are returned unchanged.
func (l *Lifecycle) ReconcileInvoice(ctx context.Context, role authz.Role, id string) (Order, error) {
	if err := l.Gate.Authorize(role, authz.ActionReconcileInvoice); err != nil {
		return Order{}, err
	}
	o, err := l.GetOrder(id)
	if err != nil {
		return Order{}, err
	}
	if !o.PendingInvoice {
		return o, nil
	}
	o, err = l.invoice(ctx, o)
	if err != nil {
		return Order{}, err
	}
	l.Log.InfoContext(ctx, "pending invoice reconciled", "order_id", id, "invoice_id", o.InvoiceID, "role", role)
	return o, nil
}

// ReconcilePending runs ReconcileInvoice over every order flagged
// PendingInvoice and returns how many were invoiced.
func (l *Lifecycle) ReconcilePending(ctx context.Context, role authz.Role) (int, error) {
	if err := l.Gate.Authorize(role, authz.ActionReconcileInvoice); err != nil {
		return 0, err
	}
	var (
		done    int
		errList []error
	)
	for _, o := range l.ListOrders(StatusDispatched, StatusDelivered) {
		if !o.PendingInvoice {
			continue
		}
		if _, err := l.ReconcileInvoice(ctx, role, o.ID); err != nil {
			errList = append(errList, err)
			continue
		}
		done++
	}
	return done, errors.Join(errList...)
}

func (l *Lifecycle) GetOrder(id string) (Order, error) {
	r, err := l.get(id)
	if err != nil {
		return Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.o.clone(), nil
}

// ListOrders returns orders by id, limited to the given statuses when any are passed.
func (l *Lifecycle) ListOrders(statuses ...Status) []Order {
	l.mu.RLock()
	recs := make([]*record, 0, len(l.orders))
	for _, r := range l.orders {
		recs = append(recs, r)
	}
	l.mu.RUnlock()

	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]Order, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		o := r.o.clone()
		r.mu.Unlock()
		if len(want) == 0 || want[o.Status] {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Lifecycle) publish(ctx context.Context, eventType, orderID string, payload any, at time.Time) {
	ev, err := events.New(eventType, l.Producer, orderID, payload, at)
	if err != nil {
		l.Log.ErrorContext(ctx, "build event", "error", err)
		return
	}
	l.Publisher.Publish(ctx, events.TopicOrders, ev)
}
