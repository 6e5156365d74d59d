package orders

import (
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/catalog"
	"github.com/shopspring/decimal"
)

// Line is frozen from the quotation when the order is created.
type Line struct {
	SKU       string          `json:"sku"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID          string          `json:"id"`
	QuotationID string          `json:"quotation_id"`
	CustomerID  string          `json:"customer_id"`
	Lines       []Line          `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`

	// PendingInvoice is set when dispatch succeeded but the invoice could not
	// be issued. ReconcileInvoice clears it.
	PendingInvoice bool                 `json:"pending_invoice"`
	InvoiceID      string               `json:"invoice_id,omitempty"`
	Timestamps     map[Status]time.Time `json:"timestamps"` // when each status was entered
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func (o Order) stockLines() []catalog.Line {
	out := make([]catalog.Line, 0, len(o.Lines))
	for _, ln := range o.Lines {
		out = append(out, catalog.Line{SKU: ln.SKU, Qty: ln.Qty})
	}
	return out
}

func (o Order) clone() Order {
	o.Lines = append([]Line(nil), o.Lines...)
	ts := make(map[Status]time.Time, len(o.Timestamps))
	for k, v := range o.Timestamps {
		ts[k] = v
	}
	o.Timestamps = ts
	return o
}
