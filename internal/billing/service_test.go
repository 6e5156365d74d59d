package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/credit"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/ariefcatur/go-order-to-cash/internal/ids"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(days int) { c.t = c.t.AddDate(0, 0, days) }

func setup(t *testing.T) (*Service, *credit.Ledger, *events.Recorder, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)}
	gate := authz.NewGate(authz.Policy{HardCreditBlock: true})

	cr := credit.NewLedger(gate, credit.DefaultPolicy(), nil)
	cr.Now = clk.now
	_, err := cr.RegisterCustomer(ctx, authz.RoleAdministration, credit.CustomerInput{
		ID: "CLI-001", Name: "Industrias MetalCorp", CreditLimit: d("150000"),
	})
	require.NoError(t, err)

	rec := &events.Recorder{}
	svc := NewService(gate, cr, ids.NewAllocator(clk.now), rec, nil)
	svc.Now = clk.now
	cr.Receivables = svc
	return svc, cr, rec, clk
}

func TestIssueInvoice(t *testing.T) {
	svc, cr, rec, _ := setup(t)

	inv, err := svc.IssueInvoice(ctx, IssueRequest{OrderID: "ORD-2026-000001", CustomerID: "CLI-001", Amount: d("1255.00")})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-000001", inv.ID)
	assert.Equal(t, StatusOpen, inv.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), inv.DueDate)

	st, err := cr.GetCreditStatus("CLI-001")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(d("1255.00")))

	again, err := svc.IssueInvoice(ctx, IssueRequest{OrderID: "ORD-2026-000001", CustomerID: "CLI-001", Amount: d("1255.00")})
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID, "keyed by order id")

	st, _ = cr.GetCreditStatus("CLI-001")
	assert.True(t, st.Balance.Equal(d("1255.00")), "no second charge")
	assert.Equal(t, []string{events.EventInvoiceIssued}, rec.Types())

	got, ok := svc.InvoiceForOrder("ORD-2026-000001")
	require.True(t, ok)
	assert.Equal(t, inv, got)
}

func TestIssueInvoiceUnknownCustomer(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, err := svc.IssueInvoice(ctx, IssueRequest{OrderID: "ORD-1", CustomerID: "CLI-404", Amount: d("10")})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, ok := svc.InvoiceForOrder("ORD-1")
	assert.False(t, ok, "nothing recorded when the charge fails")
}

func TestIssueInvoiceConcurrentSameOrder(t *testing.T) {
	svc, cr, _, _ := setup(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.IssueInvoice(ctx, IssueRequest{OrderID: "ORD-7", CustomerID: "CLI-001", Amount: d("100")})
		}()
	}
	wg.Wait()
	assert.Len(t, svc.List(""), 1)
	st, _ := cr.GetCreditStatus("CLI-001")
	assert.True(t, st.Balance.Equal(d("100")))
}

func TestMarkOverdueAndAging(t *testing.T) {
	svc, cr, rec, clk := setup(t)
	inv, err := svc.IssueInvoice(ctx, IssueRequest{OrderID: "ORD-1", CustomerID: "CLI-001", Amount: d("500")})
	require.NoError(t, err)

	assert.Equal(t, BucketCurrent, inv.Bucket(clk.now(), svc.DueSoonDays))

	n, err := svc.MarkOverdue(ctx, authz.RoleSystem)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.advance(25)
	assert.Equal(t, BucketDueSoon, inv.Bucket(clk.now(), svc.DueSoonDays))

	clk.advance(5) // due date itself is not overdue
	assert.Zero(t, inv.DaysOverdue(clk.now()))

	clk.advance(3)
	assert.Equal(t, 3, inv.DaysOverdue(clk.now()))

	_, err = svc.MarkOverdue(ctx, authz.RoleHR)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	n, err = svc.MarkOverdue(ctx, authz.RoleSystem)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.MarkOverdue(ctx, authz.RoleSystem)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep is repeatable")

	got, _ := svc.GetInvoice(inv.ID)
	assert.Equal(t, StatusPastDue, got.Status)

	st, _ := cr.GetCreditStatus("CLI-001")
	assert.Equal(t, credit.StatusWarning, st.Status, "any overdue receivable marks Warning")
	assert.Equal(t, 3, st.MaxDaysOverdue)
	assert.True(t, st.Balance.Equal(d("500")), "sweep never charges")

	overdue := svc.ListOverdue(clk.now())
	require.Len(t, overdue, 1)
	assert.Equal(t, inv.ID, overdue[0].ID)

	sum := svc.Summary(clk.now())
	assert.True(t, sum.TotalReceivable.Equal(d("500")))
	assert.True(t, sum.TotalOverdue.Equal(d("500")))
	assert.Equal(t, 1, sum.PastDue)
	assert.Equal(t, 1, sum.Buckets[BucketOverdue])

	assert.Equal(t, []string{events.EventInvoiceIssued, events.EventInvoicePastDue}, rec.Types())
}

func TestRecordPayment(t *testing.T) {
	svc, cr, rec, clk := setup(t)
	inv, _ := svc.IssueInvoice(ctx, IssueRequest{OrderID: "ORD-1", CustomerID: "CLI-001", Amount: d("1255.00")})

	_, err := svc.RecordPayment(ctx, authz.RoleCommercial, inv.ID, d("1255.00"))
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	_, err = svc.RecordPayment(ctx, authz.RoleAdministration, inv.ID, d("1000"))
	assert.True(t, errors.Is(err, errs.ErrInvalidAmount), "partial payments are refused")

	_, err = svc.RecordPayment(ctx, authz.RoleAdministration, "FAC-404", d("1"))
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	clk.advance(40)
	_, _ = svc.MarkOverdue(ctx, authz.RoleSystem)

	paid, err := svc.RecordPayment(ctx, authz.RoleAdministration, inv.ID, d("1255"))
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Zero(t, paid.DaysOverdue(clk.now()))

	st, _ := cr.GetCreditStatus("CLI-001")
	assert.True(t, st.Balance.IsZero())
	assert.Equal(t, credit.StatusGood, st.Status)

	_, err = svc.RecordPayment(ctx, authz.RoleAdministration, inv.ID, d("1255"))
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	sum := svc.Summary(clk.now())
	assert.True(t, sum.TotalReceivable.IsZero())
	assert.Equal(t, 1, sum.Paid)
	assert.Equal(t, events.EventInvoicePaid, rec.Types()[len(rec.Types())-1])
}
