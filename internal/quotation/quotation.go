package quotation

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// Line carries the unit price seen when the SKU was first added.
type Line struct {
	SKU       string          `json:"sku"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Quotation struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Lines      []Line          `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	Status     Status          `json:"status"`
	OrderID    string          `json:"order_id,omitempty"` // set once converted
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
}

func (q *Quotation) recompute() {
	total := decimal.Zero
	for i := range q.Lines {
		q.Lines[i].Subtotal = q.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(q.Lines[i].Qty)))
		total = total.Add(q.Lines[i].Subtotal)
	}
	q.Total = total
}

func (q *Quotation) lineIndex(sku string) int {
	for i, ln := range q.Lines {
		if ln.SKU == sku {
			return i
		}
	}
	return -1
}

func (q Quotation) clone() Quotation {
	q.Lines = append([]Line(nil), q.Lines...)
	return q
}
