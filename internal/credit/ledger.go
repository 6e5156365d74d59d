package credit

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusGood    Status = "GOOD"
	StatusWarning Status = "WARNING"
	StatusBlocked Status = "BLOCKED"
)

type Customer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TaxID       string          `json:"tax_id"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Balance     decimal.Decimal `json:"balance"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CustomerInput struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TaxID       string          `json:"tax_id"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type CreditStatus struct {
	CustomerID     string          `json:"customer_id"`
	Limit          decimal.Decimal `json:"limit"`
	Balance        decimal.Decimal `json:"balance"`
	Status         Status          `json:"status"`
	MaxDaysOverdue int             `json:"max_days_overdue"`
}

type Policy struct {
	WarningRatio decimal.Decimal // share of the limit that flips Good to Warning
	GraceDays    int             // overdue days tolerated before Warning
}

func DefaultPolicy() Policy {
	return Policy{WarningRatio: decimal.RequireFromString("0.75")}
}

// Receivables reports the worst overdue receivable of a customer. The billing
// service implements it; nil means no receivable is ever overdue.
type Receivables interface {
	MaxDaysOverdue(customerID string, now time.Time) int
}

// Derive computes the credit status. A zero limit means cash only, so any
// balance including zero is Blocked.
func Derive(limit, balance decimal.Decimal, maxDaysOverdue int, p Policy) Status {
	switch {
	case balance.GreaterThanOrEqual(limit):
		return StatusBlocked
	case balance.GreaterThanOrEqual(limit.Mul(p.WarningRatio)):
		return StatusWarning
	case maxDaysOverdue > p.GraceDays:
		return StatusWarning
	default:
		return StatusGood
	}
}

type account struct {
	mu sync.Mutex
	c  Customer
}

// Ledger tracks limit and outstanding balance per customer. It never refuses
// a posting: blocking is decided by the authorization gate before a transition.
type Ledger struct {
	Gate        *authz.Gate
	Policy      Policy
	Receivables Receivables
	Log         *slog.Logger
	Now         func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account
}

func NewLedger(gate *authz.Gate, p Policy, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		Gate:     gate,
		Policy:   p,
		Log:      log,
		Now:      time.Now,
		accounts: make(map[string]*account),
	}
}

func (l *Ledger) get(id string) (*account, error) {
	l.mu.RLock()
	a, ok := l.accounts[id]
	l.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("customer", id)
	}
	return a, nil
}

func (l *Ledger) RegisterCustomer(ctx context.Context, role authz.Role, in CustomerInput) (Customer, error) {
	if err := l.Gate.Authorize(role, authz.ActionRegisterCustomer); err != nil {
		return Customer{}, err
	}
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Customer{}, errs.InvalidInput("customer", "", "id", "required")
	}
	if in.CreditLimit.IsNegative() {
		return Customer{}, errs.InvalidAmount("customer", in.ID, "credit_limit", "must be non-negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[in.ID]; ok {
		return Customer{}, errs.AlreadyExists("customer", in.ID)
	}
	now := l.Now()
	c := Customer{
		ID:          in.ID,
		Name:        in.Name,
		TaxID:       in.TaxID,
		CreditLimit: in.CreditLimit,
		Balance:     decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.accounts[in.ID] = &account{c: c}
	l.Log.InfoContext(ctx, "customer registered", "customer_id", in.ID, "role", role)
	c.Status = l.derive(c)
	return c, nil
}

func (l *Ledger) derive(c Customer) Status {
	overdue := 0
	if l.Receivables != nil {
		overdue = l.Receivables.MaxDaysOverdue(c.ID, l.Now())
	}
	return Derive(c.CreditLimit, c.Balance, overdue, l.Policy)
}

func (l *Ledger) Get(id string) (Customer, error) {
	a, err := l.get(id)
	if err != nil {
		return Customer{}, err
	}
	a.mu.Lock()
	c := a.c
	a.mu.Unlock()
	c.Status = l.derive(c)
	return c, nil
}

func (l *Ledger) List() []Customer {
	l.mu.RLock()
	ids := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Strings(ids)

	out := make([]Customer, 0, len(ids))
	for _, id := range ids {
		if c, err := l.Get(id); err == nil {
			out = append(out, c)
		}
	}
	return out
}

func (l *Ledger) GetCreditStatus(id string) (CreditStatus, error) {
	a, err := l.get(id)
	if err != nil {
		return CreditStatus{}, err
	}
	a.mu.Lock()
	c := a.c
	a.mu.Unlock()

	overdue := 0
	if l.Receivables != nil {
		overdue = l.Receivables.MaxDaysOverdue(id, l.Now())
	}
	return CreditStatus{
		CustomerID:     id,
		Limit:          c.CreditLimit,
		Balance:        c.Balance,
		Status:         Derive(c.CreditLimit, c.Balance, overdue, l.Policy),
		MaxDaysOverdue: overdue,
	}, nil
}

// ApplyCharge posts an issued invoice against the customer's balance.
func (l *Ledger) ApplyCharge(ctx context.Context, id string, amount decimal.Decimal) (CreditStatus, error) {
	if amount.IsNegative() {
		return CreditStatus{}, errs.InvalidAmount("customer", id, "amount", "charge must be non-negative")
	}
	a, err := l.get(id)
	if err != nil {
		return CreditStatus{}, err
	}
	a.mu.Lock()
	a.c.Balance = a.c.Balance.Add(amount)
	a.c.UpdatedAt = l.Now()
	balance := a.c.Balance
	a.mu.Unlock()

	l.Log.InfoContext(ctx, "charge applied", "customer_id", id, "amount", amount.StringFixed(2), "balance", balance.StringFixed(2))
	return l.GetCreditStatus(id)
}

// ApplyPayment lowers the balance, floored at zero.
func (l *Ledger) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal) (CreditStatus, error) {
	if amount.IsNegative() {
		return CreditStatus{}, errs.InvalidAmount("customer", id, "amount", "payment must be non-negative")
	}
	a, err := l.get(id)
	if err != nil {
		return CreditStatus{}, err
	}
	a.mu.Lock()
	a.c.Balance = decimal.Max(decimal.Zero, a.c.Balance.Sub(amount))
	a.c.UpdatedAt = l.Now()
	balance := a.c.Balance
	a.mu.Unlock()

	l.Log.InfoContext(ctx, "payment applied", "customer_id", id, "amount", amount.StringFixed(2), "balance", balance.StringFixed(2))
	return l.GetCreditStatus(id)
}
