package billing

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

// Poster books invoice amounts against a customer's credit balance.
type Poster interface {
	ApplyCharge(ctx context.Context, customerID string, amount decimal.Decimal) (credit.CreditStatus, error)
	ApplyPayment(ctx context.Context, customerID string, amount decimal.Decimal) (credit.CreditStatus, error)
}

// Service issues invoices and tracks them as receivables until paid.
//
// The invoice table sits behind a single RWMutex that is never held while
// calling the credit ledger, because the ledger calls back into
// MaxDaysOverdue. Issuance is serialized per order id instead.
type Service struct {
	Gate        *authz.Gate
	Credit      Poster
	IDs         *ids.Allocator
	Publisher   events.Publisher
	Producer    string
	Log         *slog.Logger
	Now         func() time.Time
	TermDays    int
	DueSoonDays int

	issuing sync.Map // order id -> *sync.Mutex

	mu       sync.RWMutex
	invoices map[string]*Invoice
	byOrder  map[string]string
}

func NewService(gate *authz.Gate, poster Poster, alloc *ids.Allocator, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		Gate:        gate,
		Credit:      poster,
		IDs:         alloc,
		Publisher:   pub,
		Producer:    "billing",
		Log:         log,
		Now:         time.Now,
		TermDays:    30,
		DueSoonDays: 7,
		invoices:    make(map[string]*Invoice),
		byOrder:     make(map[string]string),
	}
}

func (s *Service) orderLock(orderID string) *sync.Mutex {
	m, _ := s.issuing.LoadOrStore(orderID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// IssueInvoice posts an Open invoice for the order and charges the customer.
// It is keyed by order id: a second call for the same order returns the
// invoice issued the first time and charges nothing.
func (s *Service) IssueInvoice(ctx context.Context, req IssueRequest) (Invoice, error) {
	if req.Amount.IsNegative() {
		return Invoice{}, errs.InvalidAmount("invoice", req.OrderID, "amount", "must be non-negative")
	}
	out, fresh, err := s.issue(ctx, req)
	if err != nil || !fresh {
		return out, err
	}

	s.Log.InfoContext(ctx, "invoice issued",
		"invoice_id", out.ID, "order_id", out.OrderID, "customer_id", out.CustomerID,
		"amount", out.Amount.StringFixed(2), "due_date", out.DueDate.Format(time.DateOnly))
	s.publish(ctx, events.EventInvoiceIssued, out.ID, events.InvoiceIssuedPayload{
		InvoiceID:  out.ID,
		OrderID:    out.OrderID,
		CustomerID: out.CustomerID,
		Amount:     out.Amount,
		IssueDate:  out.IssueDate,
		DueDate:    out.DueDate,
	})
	return out, nil
}

// issue runs under the order's issuing lock. fresh is false when the order
// already had an invoice.
func (s *Service) issue(ctx context.Context, req IssueRequest) (Invoice, bool, error) {
	lk := s.orderLock(req.OrderID)
	lk.Lock()
	defer lk.Unlock()

	if inv, ok := s.InvoiceForOrder(req.OrderID); ok {
		return inv, false, nil
	}

	if _, err := s.Credit.ApplyCharge(ctx, req.CustomerID, req.Amount); err != nil {
		return Invoice{}, false, err
	}

	issued := civil(s.Now())
	inv := &Invoice{
		ID:         s.IDs.Next(ids.PrefixInvoice),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		IssueDate:  issued,
		DueDate:    issued.AddDate(0, 0, s.TermDays),
		Status:     StatusOpen,
	}
	s.mu.Lock()
	s.invoices[inv.ID] = inv
	s.byOrder[req.OrderID] = inv.ID
	out := *inv
	s.mu.Unlock()
	return out, true, nil
}

// MarkOverdue moves every Open invoice whose due date has passed to PastDue
// and returns how many changed. Running it again changes nothing and it never
// touches balances.
func (s *Service) MarkOverdue(ctx context.Context, role authz.Role) (int, error) {
	if err := s.Gate.Authorize(role, authz.ActionMarkOverdue); err != nil {
		return 0, err
	}
	now := s.Now()

	s.mu.Lock()
	var changed []Invoice
	for _, inv := range s.invoices {
		if inv.Status == StatusOpen && inv.DaysOverdue(now) > 0 {
			inv.Status = StatusPastDue
			changed = append(changed, *inv)
		}
	}
	s.mu.Unlock()

	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	for _, inv := range changed {
		s.publish(ctx, events.EventInvoicePastDue, inv.ID, statusPayload(inv))
	}
	if len(changed) > 0 {
		s.Log.InfoContext(ctx, "invoices past due", "count", len(changed), "role", role)
	}
	return len(changed), nil
}

// RecordPayment settles an invoice in full. Partial payments are refused.
func (s *Service) RecordPayment(ctx context.Context, role authz.Role, invoiceID string, amount decimal.Decimal) (Invoice, error) {
	if err := s.Gate.Authorize(role, authz.ActionRecordPayment); err != nil {
		return Invoice{}, err
	}

	s.mu.Lock()
	inv, ok := s.invoices[invoiceID]
	if !ok {
		s.mu.Unlock()
		return Invoice{}, errs.NotFound("invoice", invoiceID)
	}
	if inv.Status == StatusPaid {
		s.mu.Unlock()
		return Invoice{}, errs.InvalidTransition("invoice", invoiceID, string(inv.Status), string(authz.ActionRecordPayment))
	}
	if !amount.Equal(inv.Amount) {
		s.mu.Unlock()
		return Invoice{}, errs.InvalidAmount("invoice", invoiceID, "amount",
			"payment "+amount.StringFixed(2)+" does not match outstanding "+inv.Amount.StringFixed(2))
	}
	prev := inv.Status
	now := s.Now()
	inv.Status = StatusPaid
	inv.PaidAt = &now
	out := *inv
	s.mu.Unlock()

	if _, err := s.Credit.ApplyPayment(ctx, out.CustomerID, out.Amount); err != nil {
		s.mu.Lock()
		inv.Status = prev
		inv.PaidAt = nil
		s.mu.Unlock()
		return Invoice{}, err
	}

	s.Log.InfoContext(ctx, "invoice paid", "invoice_id", out.ID, "customer_id", out.CustomerID,
		"amount", out.Amount.StringFixed(2), "role", role)
	s.publish(ctx, events.EventInvoicePaid, out.ID, statusPayload(out))
	return out, nil
}

func (s *Service) GetInvoice(id string) (Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, errs.NotFound("invoice", id)
	}
	return *inv, nil
}

func (s *Service) InvoiceForOrder(orderID string) (Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrder[orderID]
	if !ok {
		return Invoice{}, false
	}
	return *s.invoices[id], true
}

// List returns invoices, optionally for one customer, by id.
func (s *Service) List(customerID string) []Invoice {
	s.mu.RLock()
	out := make([]Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if customerID == "" || inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListOverdue returns unpaid invoices past their due date, worst first.
func (s *Service) ListOverdue(now time.Time) []Invoice {
	s.mu.RLock()
	var out []Invoice
	for _, inv := range s.invoices {
		if inv.DaysOverdue(now) > 0 {
			out = append(out, *inv)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DaysOverdue(now), out[j].DaysOverdue(now)
		if di != dj {
			return di > dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MaxDaysOverdue implements credit.Receivables.
func (s *Service) MaxDaysOverdue(customerID string, now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	worst := 0
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID {
			worst = max(worst, inv.DaysOverdue(now))
		}
	}
	return worst
}

func (s *Service) Summary(now time.Time) Summary {
	sum := Summary{
		TotalReceivable: decimal.Zero,
		TotalOverdue:    decimal.Zero,
		Buckets:         map[Bucket]int{},
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		b := inv.Bucket(now, s.DueSoonDays)
		sum.Buckets[b]++
		switch inv.Status {
		case StatusOpen:
			sum.Open++
		case StatusPastDue:
			sum.PastDue++
		case StatusPaid:
			sum.Paid++
			continue
		}
		sum.TotalReceivable = sum.TotalReceivable.Add(inv.Amount)
		if b == BucketOverdue {
			sum.TotalOverdue = sum.TotalOverdue.Add(inv.Amount)
		}
	}
	return sum
}

func statusPayload(inv Invoice) events.InvoiceStatusPayload {
	return events.InvoiceStatusPayload{
		InvoiceID:  inv.ID,
		CustomerID: inv.CustomerID,
		Status:     string(inv.Status),
		Amount:     inv.Amount,
	}
}

func (s *Service) publish(ctx context.Context, eventType, invoiceID string, payload any) {
	ev, err := events.New(eventType, s.Producer, invoiceID, payload, s.Now())
	if err != nil {
		s.Log.ErrorContext(ctx, "build event", "error", err)
		return
	}
	s.Publisher.Publish(ctx, events.TopicInvoices, ev)
}
