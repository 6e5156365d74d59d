package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventQuotationApproved  = "QuotationApproved"
	EventQuotationRejected  = "QuotationRejected"
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventInvoiceIssued      = "InvoiceIssued"
	EventInvoicePastDue     = "InvoicePastDue"
	EventInvoicePaid        = "InvoicePaid"
	EventStockReceived      = "StockReceived"
)

const Version = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // entity id the event is about
	Payload       json.RawMessage `json:"payload"`
}

// Publisher delivers envelopes to a topic. Delivery is fire-and-forget: the
// lifecycle never rolls back a committed transition because an event was lost.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Envelope)
}

// New wraps payload into a v1 envelope with a fresh event id.
func New(eventType, producer, correlationID string, payload any, at time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Unwrap decodes an envelope payload into T.
func Unwrap[T any](ev Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(ev.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	return t, nil
}

type traceKey struct{}

// WithTraceID tags ctx so envelopes published under it carry id as trace_id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

type Nop struct{}

func (Nop) Publish(context.Context, string, Envelope) {}

// ---- payloads ----

type ItemPrice struct {
	SKU       string          `json:"sku"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type QuotationDecidedPayload struct {
	QuotationID string          `json:"quotation_id"`
	CustomerID  string          `json:"customer_id"`
	Total       decimal.Decimal `json:"total"`
	Role        string          `json:"role"`
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	QuotationID string          `json:"quotation_id"`
	CustomerID  string          `json:"customer_id"`
	Items       []ItemPrice     `json:"items"`
	Total       decimal.Decimal `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Role    string `json:"role"`
}

type InvoiceIssuedPayload struct {
	InvoiceID  string          `json:"invoice_id"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	IssueDate  time.Time       `json:"issue_date"`
	DueDate    time.Time       `json:"due_date"`
}

type InvoiceStatusPayload struct {
	InvoiceID  string          `json:"invoice_id"`
	CustomerID string          `json:"customer_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
}

type StockReceivedPayload struct {
	ReceiptID string `json:"receipt_id,omitempty"`
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
	Location  string `json:"location,omitempty"`
	InTransit bool   `json:"in_transit"`
}
