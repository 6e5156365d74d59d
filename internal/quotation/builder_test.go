package quotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/catalog"
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

type fixture struct {
	builder *Builder
	catalog *catalog.Ledger
	credit  *credit.Ledger
	events  *events.Recorder
}

func newFixture(t *testing.T, hardBlock bool) fixture {
	t.Helper()
	gate := authz.NewGate(authz.Policy{HardCreditBlock: hardBlock})
	rec := &events.Recorder{}

	cat := catalog.NewLedger(gate, nil, nil)
	for _, p := range []catalog.ProductInput{
		{SKU: "TRN-HEX-10", UnitPrice: d("125.50")},
		{SKU: "LUB-IND-X5", UnitPrice: d("2850.00")},
	} {
		_, err := cat.CreateProduct(ctx, authz.RoleDirector, p)
		require.NoError(t, err)
	}

	cr := credit.NewLedger(gate, credit.DefaultPolicy(), nil)
	_, err := cr.RegisterCustomer(ctx, authz.RoleDirector, credit.CustomerInput{ID: "CLI-001", Name: "Industrias MetalCorp", CreditLimit: d("150000")})
	require.NoError(t, err)
	_, err = cr.RegisterCustomer(ctx, authz.RoleDirector, credit.CustomerInput{ID: "CLI-003", Name: "Distribuciones Omega", CreditLimit: d("1000")})
	require.NoError(t, err)

	b := NewBuilder(gate, cat, cr, ids.NewAllocator(nil), rec, nil)
	return fixture{builder: b, catalog: cat, credit: cr, events: rec}
}

func TestDraftAndLines(t *testing.T) {
	f := newFixture(t, false)
	b := f.builder

	q, err := b.CreateDraft(ctx, authz.RoleCommercial, "CLI-001")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, q.Status)
	assert.Empty(t, q.Lines)

	q, err = b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 10)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(d("1255.00")))

	q, err = b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 2)
	require.NoError(t, err)
	require.Len(t, q.Lines, 1, "same SKU merges")
	assert.Equal(t, 12, q.Lines[0].Qty)

	q, err = b.AddLine(ctx, authz.RoleCommercial, q.ID, "LUB-IND-X5", 1)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(d("4356.00")))

	q, err = b.SetLineQuantity(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 0)
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.True(t, q.Total.Equal(d("2850.00")))

	q, err = b.SetLineQuantity(ctx, authz.RoleCommercial, q.ID, "LUB-IND-X5", 3)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(d("8550.00")))
}

func TestLineErrors(t *testing.T) {
	f := newFixture(t, false)
	b := f.builder
	q, _ := b.CreateDraft(ctx, authz.RoleCommercial, "CLI-001")

	_, err := b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 0)
	assert.True(t, errors.Is(err, errs.ErrInvalidQuantity))

	_, err = b.AddLine(ctx, authz.RoleCommercial, q.ID, "NOPE", 1)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = b.AddLine(ctx, authz.RoleCommercial, "QUO-404", "TRN-HEX-10", 1)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = b.SetLineQuantity(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", -1)
	assert.True(t, errors.Is(err, errs.ErrInvalidQuantity))

	_, err = b.CreateDraft(ctx, authz.RoleCommercial, "CLI-404")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = b.CreateDraft(ctx, authz.RoleHR, "CLI-001")
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestPriceSnapshotSurvivesPriceChange(t *testing.T) {
	f := newFixture(t, false)
	b := f.builder
	q, _ := b.CreateDraft(ctx, authz.RoleCommercial, "CLI-001")
	_, err := b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 1)
	require.NoError(t, err)

	b.Prices = fixedPrices{"TRN-HEX-10": d("999")}
	q, err = b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 1)
	require.NoError(t, err)
	assert.True(t, q.Lines[0].UnitPrice.Equal(d("125.50")))
}

type fixedPrices map[string]decimal.Decimal

func (p fixedPrices) UnitPrice(sku string) (decimal.Decimal, error) {
	v, ok := p[sku]
	if !ok {
		return decimal.Zero, errs.NotFound("product", sku)
	}
	return v, nil
}

func TestSubmitApproveReject(t *testing.T) {
	f := newFixture(t, false)
	b := f.builder
	q, _ := b.CreateDraft(ctx, authz.RoleMarketing, "CLI-001")

	_, err := b.Submit(ctx, authz.RoleMarketing, q.ID)
	assert.True(t, errors.Is(err, errs.ErrEmptyQuotation))

	_, err = b.AddLine(ctx, authz.RoleMarketing, q.ID, "TRN-HEX-10", 10)
	require.NoError(t, err)

	_, err = b.Approve(ctx, authz.RoleCommercial, q.ID)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "draft cannot be approved")

	q, err = b.Submit(ctx, authz.RoleMarketing, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, q.Status)

	_, err = b.Submit(ctx, authz.RoleMarketing, q.ID)
	assert.NoError(t, err, "repeat submit is a no-op")

	_, err = b.AddLine(ctx, authz.RoleMarketing, q.ID, "TRN-HEX-10", 1)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "only drafts are editable")

	_, err = b.Approve(ctx, authz.RoleMarketing, q.ID)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	q, err = b.Approve(ctx, authz.RoleCommercial, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, q.Status)
	assert.NotNil(t, q.DecidedAt)

	_, err = b.Reject(ctx, authz.RoleCommercial, q.ID)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	assert.Equal(t, []string{events.EventQuotationApproved}, f.events.Types())
}

func TestApproveBlockedCustomer(t *testing.T) {
	f := newFixture(t, true)
	b := f.builder
	q, _ := b.CreateDraft(ctx, authz.RoleCommercial, "CLI-003")
	_, _ = b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 1)
	_, _ = b.Submit(ctx, authz.RoleCommercial, q.ID)

	_, err := f.credit.ApplyCharge(ctx, "CLI-003", d("1000"))
	require.NoError(t, err)

	_, err = b.Approve(ctx, authz.RoleCommercial, q.ID)
	assert.True(t, errors.Is(err, errs.ErrCreditExceeded))

	q, err = b.Reject(ctx, authz.RoleCommercial, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, q.Status)
}

func TestClaimOnce(t *testing.T) {
	f := newFixture(t, false)
	b := f.builder
	q, _ := b.CreateDraft(ctx, authz.RoleCommercial, "CLI-001")
	_, _ = b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 1)

	_, err := b.Claim(q.ID, "ORD-1")
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "draft cannot be converted")

	_, _ = b.Submit(ctx, authz.RoleCommercial, q.ID)
	_, _ = b.Approve(ctx, authz.RoleCommercial, q.ID)

	snap, err := b.Claim(q.ID, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", snap.OrderID)

	_, err = b.Claim(q.ID, "ORD-2")
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	b.Unclaim(q.ID, "ORD-1")
	_, err = b.Claim(q.ID, "ORD-2")
	assert.NoError(t, err)
	assert.Len(t, b.List("CLI-001"), 1)
	assert.Empty(t, b.List("CLI-003"))
}

// stallingPublisher blocks every Publish until its ctx is done.
type stallingPublisher struct {
	entered chan struct{}
}

func (p stallingPublisher) Publish(ctx context.Context, _ string, _ events.Envelope) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
}

func TestApproveReleasesLockBeforePublishing(t *testing.T) {
	f := newFixture(t, false)
	b := f.builder
	q, _ := b.CreateDraft(ctx, authz.RoleCommercial, "CLI-001")
	_, _ = b.AddLine(ctx, authz.RoleCommercial, q.ID, "TRN-HEX-10", 1)
	_, _ = b.Submit(ctx, authz.RoleCommercial, q.ID)

	pub := stallingPublisher{entered: make(chan struct{}, 1)}
	b.Publisher = pub
	pctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = b.Approve(pctx, authz.RoleDirector, q.ID)
	}()
	<-pub.entered

	got := make(chan Quotation, 1)
	go func() {
		snap, _ := b.Get(q.ID)
		got <- snap
	}()
	select {
	case snap := <-got:
		assert.Equal(t, StatusApproved, snap.Status)
	case <-time.After(time.Second):
		t.Fatal("quotation read blocked while its event was being published")
	}
	stop()
	<-done
}
