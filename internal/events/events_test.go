package events

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndUnwrap(t *testing.T) {
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.FixedZone("VET", -4*3600))
	ev, err := New(EventInvoiceIssued, "o2c-api", "FAC-2026-000001", InvoiceIssuedPayload{
		InvoiceID: "FAC-2026-000001",
		Amount:    decimal.RequireFromString("1255.00"),
	}, at)
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, Version, ev.EventVersion)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())

	p, err := Unwrap[InvoiceIssuedPayload](ev)
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("1255")))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(context.Background(), TopicOrders, Envelope{EventType: EventOrderCreated})
	r.Publish(context.Background(), TopicInvoices, Envelope{EventType: EventInvoiceIssued})

	assert.Equal(t, []string{EventOrderCreated, EventInvoiceIssued}, r.Types())
	assert.Equal(t, TopicInvoices, r.Events()[1].Topic)
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	ctx := WithTraceID(context.Background(), "req-42")
	assert.Equal(t, "req-42", TraceID(ctx))
}
