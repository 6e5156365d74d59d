package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusPastDue Status = "PAST_DUE"
	StatusPaid    Status = "PAID"
)

// Bucket is the receivables aging column an unpaid invoice falls into.
type Bucket string

const (
	BucketCurrent Bucket = "CURRENT"
	BucketDueSoon Bucket = "DUE_SOON"
	BucketOverdue Bucket = "OVERDUE"
	BucketSettled Bucket = "SETTLED"
)

type Invoice struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	IssueDate  time.Time       `json:"issue_date"`
	DueDate    time.Time       `json:"due_date"`
	Status     Status          `json:"status"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
}

// IssueRequest is what dispatch hands over to billing. Amount is the frozen
// order total.
type IssueRequest struct {
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
}

// DaysOverdue counts whole calendar days (UTC) past the due date. Paid
// invoices are never overdue.
func (inv Invoice) DaysOverdue(now time.Time) int {
	if inv.Status == StatusPaid {
		return 0
	}
	return max(0, daysBetween(inv.DueDate, now))
}

// Bucket places the invoice in an aging column. dueSoon is the window, in
// days, before the due date that counts as DueSoon.
func (inv Invoice) Bucket(now time.Time, dueSoon int) Bucket {
	switch {
	case inv.Status == StatusPaid:
		return BucketSettled
	case inv.DaysOverdue(now) > 0:
		return BucketOverdue
	case daysBetween(now, inv.DueDate) <= dueSoon:
		return BucketDueSoon
	default:
		return BucketCurrent
	}
}

func civil(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(civil(to).Sub(civil(from)).Hours() / 24)
}

// Summary is the receivables header of the billing view.
type Summary struct {
	TotalReceivable decimal.Decimal `json:"total_receivable"`
	TotalOverdue    decimal.Decimal `json:"total_overdue"`
	Open            int             `json:"open"`
	PastDue         int             `json:"past_due"`
	Paid            int             `json:"paid"`
	Buckets         map[Bucket]int  `json:"buckets"`
}
