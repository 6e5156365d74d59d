// Package app wires the order-to-cash services together.
package app

import (
	"log/slog"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/billing"
	"github.com/ariefcatur/go-order-to-cash/internal/catalog"
	"github.com/ariefcatur/go-order-to-cash/internal/config"
	"github.com/ariefcatur/go-order-to-cash/internal/credit"
	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/ariefcatur/go-order-to-cash/internal/ids"
	"github.com/ariefcatur/go-order-to-cash/internal/orders"
	"github.com/ariefcatur/go-order-to-cash/internal/quotation"
)

type Options struct {
	Gate        authz.Policy
	Credit      credit.Policy
	TermDays    int
	DueSoonDays int
	Publisher   events.Publisher
	Log         *slog.Logger
	Now         func() time.Time
}

// OptionsFrom maps process configuration onto service options.
func OptionsFrom(c config.Config, pub events.Publisher, log *slog.Logger) Options {
	return Options{
		Gate:        authz.Policy{HardCreditBlock: c.CreditHardBlock},
		Credit:      credit.Policy{WarningRatio: c.CreditWarningRatio, GraceDays: c.OverdueGraceDays},
		TermDays:    c.CreditTermDays,
		DueSoonDays: c.DueSoonDays,
		Publisher:   pub,
		Log:         log,
	}
}

type Services struct {
	Gate    *authz.Gate
	Catalog *catalog.Ledger
	Credit  *credit.Ledger
	Quotes  *quotation.Builder
	Billing *billing.Service
	Orders  *orders.Lifecycle
	Now     func() time.Time
	Log     *slog.Logger
}

func New(o Options) *Services {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Publisher == nil {
		o.Publisher = events.Nop{}
	}
	if !o.Credit.WarningRatio.IsPositive() {
		o.Credit.WarningRatio = credit.DefaultPolicy().WarningRatio
	}
	if o.Credit.GraceDays < 0 {
		o.Credit.GraceDays = 0
	}

	gate := authz.NewGate(o.Gate)
	alloc := ids.NewAllocator(o.Now)

	cat := catalog.NewLedger(gate, o.Publisher, o.Log.With("component", "catalog"))
	cat.Now = o.Now

	cr := credit.NewLedger(gate, o.Credit, o.Log.With("component", "credit"))
	cr.Now = o.Now

	qb := quotation.NewBuilder(gate, cat, cr, alloc, o.Publisher, o.Log.With("component", "quotation"))
	qb.Now = o.Now

	bill := billing.NewService(gate, cr, alloc, o.Publisher, o.Log.With("component", "billing"))
	bill.Now = o.Now
	if o.TermDays > 0 {
		bill.TermDays = o.TermDays
	}
	if o.DueSoonDays > 0 {
		bill.DueSoonDays = o.DueSoonDays
	}
	cr.Receivables = bill

	life := orders.NewLifecycle(gate, qb, cat, cr, bill, alloc, o.Publisher, o.Log.With("component", "orders"))
	life.Now = o.Now

	return &Services{
		Gate:    gate,
		Catalog: cat,
		Credit:  cr,
		Quotes:  qb,
		Billing: bill,
		Orders:  life,
		Now:     o.Now,
		Log:     o.Log,
	}
}
