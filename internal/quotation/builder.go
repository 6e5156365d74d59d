package quotation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/credit"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/ariefcatur/go-order-to-cash/internal/ids"
	"github.com/shopspring/decimal"
)

type PriceBook interface {
	UnitPrice(sku string) (decimal.Decimal, error)
}

type CreditBook interface {
	GetCreditStatus(customerID string) (credit.CreditStatus, error)
}

type record struct {
	mu sync.Mutex
	q  Quotation
}

// Builder owns quotations until they are converted into orders. Editing a
// quotation only locks that quotation; catalog and credit are read per call.
type Builder struct {
	Gate      *authz.Gate
	Prices    PriceBook
	Credit    CreditBook
	IDs       *ids.Allocator
	Publisher events.Publisher
	Producer  string
	Log       *slog.Logger
	Now       func() time.Time

	mu     sync.RWMutex
	quotes map[string]*record
}

func NewBuilder(gate *authz.Gate, prices PriceBook, cb CreditBook, alloc *ids.Allocator, pub events.Publisher, log *slog.Logger) *Builder {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		Gate:      gate,
		Prices:    prices,
		Credit:    cb,
		IDs:       alloc,
		Publisher: pub,
		Producer:  "quotation",
		Log:       log,
		Now:       time.Now,
		quotes:    make(map[string]*record),
	}
}

func (b *Builder) get(id string) (*record, error) {
	b.mu.RLock()
	r, ok := b.quotes[id]
	b.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("quotation", id)
	}
	return r, nil
}

func (b *Builder) CreateDraft(ctx context.Context, role authz.Role, customerID string) (Quotation, error) {
	if err := b.Gate.Authorize(role, authz.ActionCreateQuotation); err != nil {
		return Quotation{}, err
	}
	if _, err := b.Credit.GetCreditStatus(customerID); err != nil {
		return Quotation{}, err
	}
	now := b.Now()
	q := Quotation{
		ID:         b.IDs.Next(ids.PrefixQuotation),
		CustomerID: customerID,
		Lines:      []Line{},
		Total:      decimal.Zero,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.mu.Lock()
	b.quotes[q.ID] = &record{q: q}
	b.mu.Unlock()
	b.Log.InfoContext(ctx, "quotation drafted", "quotation_id", q.ID, "customer_id", customerID, "role", role)
	return q.clone(), nil
}

// edit runs fn on a Draft quotation under its lock.
func (b *Builder) edit(role authz.Role, id, op string, fn func(q *Quotation) error) (Quotation, error) {
	if err := b.Gate.Authorize(role, authz.ActionEditQuotation); err != nil {
		return Quotation{}, err
	}
	r, err := b.get(id)
	if err != nil {
		return Quotation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.q.Status != StatusDraft {
		return Quotation{}, errs.InvalidTransition("quotation", id, string(r.q.Status), op)
	}
	if err := fn(&r.q); err != nil {
		return Quotation{}, err
	}
	r.q.recompute()
	r.q.UpdatedAt = b.Now()
	return r.q.clone(), nil
}

// AddLine appends sku at its current price, or adds qty to an existing line
// keeping that line's original price.
func (b *Builder) AddLine(ctx context.Context, role authz.Role, id, sku string, qty int) (Quotation, error) {
	if qty < 1 {
		return Quotation{}, errs.InvalidQuantity("quotation", id, "qty", qty)
	}
	return b.edit(role, id, "add_line", func(q *Quotation) error {
		if i := q.lineIndex(sku); i >= 0 {
			q.Lines[i].Qty += qty
			return nil
		}
		price, err := b.Prices.UnitPrice(sku)
		if err != nil {
			return err
		}
		q.Lines = append(q.Lines, Line{SKU: sku, Qty: qty, UnitPrice: price})
		return nil
	})
}

// SetLineQuantity overwrites the quantity of sku; zero removes the line.
func (b *Builder) SetLineQuantity(ctx context.Context, role authz.Role, id, sku string, qty int) (Quotation, error) {
	if qty < 0 {
		return Quotation{}, errs.InvalidQuantity("quotation", id, "qty", qty)
	}
	return b.edit(role, id, "set_line_quantity", func(q *Quotation) error {
		i := q.lineIndex(sku)
		switch {
		case i < 0 && qty == 0:
			return nil
		case i < 0:
			price, err := b.Prices.UnitPrice(sku)
			if err != nil {
				return err
			}
			q.Lines = append(q.Lines, Line{SKU: sku, Qty: qty, UnitPrice: price})
		case qty == 0:
			q.Lines = append(q.Lines[:i], q.Lines[i+1:]...)
		default:
			q.Lines[i].Qty = qty
		}
		return nil
	})
}

// move applies a status transition. Calling it again once the quotation is
// already in target is a no-op; any other state is an InvalidTransition.
// The event goes out after the quotation lock is released.
func (b *Builder) move(ctx context.Context, role authz.Role, id string, action authz.Action, from, to Status) (Quotation, error) {
	r, err := b.get(id)
	if err != nil {
		return Quotation{}, err
	}
	q, changed, err := b.transition(r, role, action, from, to)
	if err != nil || !changed {
		return q, err
	}
	b.Log.InfoContext(ctx, "quotation status changed", "quotation_id", id, "from", from, "to", to, "role", role)
	b.publish(ctx, q, role, q.UpdatedAt)
	return q, nil
}

func (b *Builder) transition(r *record, role authz.Role, action authz.Action, from, to Status) (Quotation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if action == authz.ActionApproveQuotation {
		st, err := b.Credit.GetCreditStatus(r.q.CustomerID)
		if err != nil {
			return Quotation{}, false, err
		}
		if err := b.Gate.AuthorizeCredit(role, action, r.q.CustomerID, st.Status == credit.StatusBlocked); err != nil {
			return Quotation{}, false, err
		}
	} else if err := b.Gate.Authorize(role, action); err != nil {
		return Quotation{}, false, err
	}

	switch r.q.Status {
	case to:
		return r.q.clone(), false, nil
	case from:
	default:
		return Quotation{}, false, errs.InvalidTransition("quotation", r.q.ID, string(r.q.Status), string(action))
	}
	if to == StatusPendingApproval && len(r.q.Lines) == 0 {
		return Quotation{}, false, errs.EmptyQuotation(r.q.ID)
	}

	now := b.Now()
	r.q.Status = to
	r.q.UpdatedAt = now
	if to == StatusApproved || to == StatusRejected {
		r.q.DecidedAt = &now
	}
	return r.q.clone(), true, nil
}

func (b *Builder) publish(ctx context.Context, q Quotation, role authz.Role, at time.Time) {
	var evType string
	switch q.Status {
	case StatusApproved:
		evType = events.EventQuotationApproved
	case StatusRejected:
		evType = events.EventQuotationRejected
	default:
		return
	}
	ev, err := events.New(evType, b.Producer, q.ID, events.QuotationDecidedPayload{
		QuotationID: q.ID,
		CustomerID:  q.CustomerID,
		Total:       q.Total,
		Role:        string(role),
	}, at)
	if err != nil {
		b.Log.ErrorContext(ctx, "build event", "error", err)
		return
	}
	b.Publisher.Publish(ctx, events.TopicQuotations, ev)
}

func (b *Builder) Get(id string) (Quotation, error) {
	r, err := b.get(id)
	if err != nil {
		return Quotation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.q.clone(), nil
}

// List returns quotations, optionally for one customer, oldest first.
func (b *Builder) List(customerID string) []Quotation {
	b.mu.RLock()
	recs := make([]*record, 0, len(b.quotes))
	for _, r := range b.quotes {
		recs = append(recs, r)
	}
	b.mu.RUnlock()

	out := make([]Quotation, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		q := r.q.clone()
		r.mu.Unlock()
		if customerID == "" || q.CustomerID == customerID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Claim marks an Approved quotation as converted into orderID and returns the
// frozen snapshot. A quotation is converted at most once.
func (b *Builder) Claim(id, orderID string) (Quotation, error) {
	r, err := b.get(id)
	if err != nil {
		return Quotation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.q.Status != StatusApproved {
		return Quotation{}, errs.InvalidTransition("quotation", id, string(r.q.Status), string(authz.ActionCreateOrder))
	}
	if r.q.OrderID != "" {
		e := errs.InvalidTransition("quotation", id, string(r.q.Status), string(authz.ActionCreateOrder))
		e.Msg = "already converted to " + r.q.OrderID
		return Quotation{}, e
	}
	r.q.OrderID = orderID
	r.q.UpdatedAt = b.Now()
	return r.q.clone(), nil
}

// Unclaim undoes Claim when order creation fails after it.
func (b *Builder) Unclaim(id, orderID string) {
	r, err := b.get(id)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.q.OrderID == orderID {
		r.q.OrderID = ""
	}
}
