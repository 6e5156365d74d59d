package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateAvailable State = "AVAILABLE"
	StateReserved  State = "RESERVED"
	StateInTransit State = "IN_TRANSIT"
)

// DeriveState is pure and total. The in-transit flag wins over any reservation.
func DeriveState(reserved int, inTransit bool) State {
	switch {
	case inTransit:
		return StateInTransit
	case reserved > 0:
		return StateReserved
	default:
		return StateAvailable
	}
}

// Product is one stock ledger entry. Available is the quantity at rest in the
// warehouse; Reserved is the part of it already promised to orders, so
// Reserved <= Available always holds.
type Product struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Available int             `json:"available"`
	Reserved  int             `json:"reserved"`
	Location  string          `json:"location"`
	InTransit bool            `json:"in_transit"`
	State     State           `json:"state"`
	MinStock  int             `json:"min_stock"` // reorder point, 0 disables
	UpdatedAt time.Time       `json:"updated_at"`
}

// Free is what can still be reserved.
func (p Product) Free() int { return p.Available - p.Reserved }

type Availability struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
	State     State  `json:"state"`
}

type ProductInput struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Location  string          `json:"location"`
	MinStock  int             `json:"min_stock"`
}

// ReceiptInput is a goods receipt. A non-empty ReceiptID makes the receipt
// idempotent; InTransit marks stock that is booked but still on its way.
type ReceiptInput struct {
	ReceiptID string `json:"receipt_id"`
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
	Location  string `json:"location"`
	InTransit bool   `json:"in_transit"`
}

// Line is a quantity of one SKU held by a reservation holder (an order id).
type Line struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type Filter struct {
	Query    string // matches name or SKU, case-insensitive
	Category string
	State    State
	LowStock bool // only products below their reorder point
}

// BelowMinimum reports whether free stock has fallen under the reorder point.
func (p Product) BelowMinimum() bool { return p.MinStock > 0 && p.Free() < p.MinStock }
