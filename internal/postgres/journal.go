package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Entry struct {
	EventID       string
	EventType     string
	Topic         string
	Producer      string
	CorrelationID string
	OccurredAt    time.Time
	Payload       []byte
}

type OrderView struct {
	OrderID     string
	QuotationID string
	CustomerID  string
	Status      string
	Total       decimal.Decimal
	UpdatedAt   time.Time
}

// Journal is the durable record of lifecycle events plus the read models
// derived from them.
type Journal struct{ DB *pgxpool.Pool }

// Record appends ev and updates its projection in one transaction. It
// returns false, with no error, when ev was recorded before.
func (j *Journal) Record(ctx context.Context, topic string, ev events.Envelope) (bool, error) {
	tx, err := j.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO lifecycle_events
			(event_id, event_type, event_version, topic, producer, correlation_id, trace_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.EventType, ev.EventVersion, topic, ev.Producer,
		ev.CorrelationID, ev.TraceID, ev.OccurredAt, []byte(ev.Payload),
	)
	if err != nil {
		return false, fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := project(ctx, tx, ev); err != nil {
		return false, fmt.Errorf("project %s %s: %w", ev.EventType, ev.EventID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// project keeps order_projection and invoice_projection in step with the
// event stream. Older events never overwrite newer state.
func project(ctx context.Context, tx pgx.Tx, ev events.Envelope) error {
	switch ev.EventType {
	case events.EventOrderCreated:
		p, err := events.Unwrap[events.OrderCreatedPayload](ev)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_projection (order_id, quotation_id, customer_id, status, total, updated_at)
			VALUES ($1, $2, $3, 'RECEIVED', $4, $5)
			ON CONFLICT (order_id) DO UPDATE
			SET quotation_id = EXCLUDED.quotation_id,
			    customer_id  = EXCLUDED.customer_id,
			    total        = EXCLUDED.total`,
			p.OrderID, p.QuotationID, p.CustomerID, p.Total.String(), ev.OccurredAt)
		return err

	case events.EventOrderStatusChanged, events.EventOrderCancelled:
		p, err := events.Unwrap[events.OrderStatusChangedPayload](ev)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_projection (order_id, status, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (order_id) DO UPDATE
			SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
			WHERE order_projection.updated_at <= EXCLUDED.updated_at`,
			p.OrderID, p.To, ev.OccurredAt)
		return err

	case events.EventInvoiceIssued:
		p, err := events.Unwrap[events.InvoiceIssuedPayload](ev)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_projection
				(invoice_id, order_id, customer_id, amount, status, issue_date, due_date, updated_at)
			VALUES ($1, $2, $3, $4, 'OPEN', $5, $6, $7)
			ON CONFLICT (invoice_id) DO NOTHING`,
			p.InvoiceID, p.OrderID, p.CustomerID, p.Amount.String(), p.IssueDate, p.DueDate, ev.OccurredAt)
		return err

	case events.EventInvoicePastDue, events.EventInvoicePaid:
		p, err := events.Unwrap[events.InvoiceStatusPayload](ev)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_projection (invoice_id, customer_id, amount, status, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (invoice_id) DO UPDATE
			SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
			WHERE invoice_projection.updated_at <= EXCLUDED.updated_at`,
			p.InvoiceID, p.CustomerID, p.Amount.String(), p.Status, ev.OccurredAt)
		return err
	}
	return nil
}

// History lists the recorded events of one entity, oldest first.
func (j *Journal) History(ctx context.Context, correlationID string) ([]Entry, error) {
	rows, err := j.DB.Query(ctx, `
		SELECT event_id::text, event_type, topic, producer, correlation_id, occurred_at, payload
		FROM lifecycle_events
		WHERE correlation_id = $1
		ORDER BY occurred_at, recorded_at`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EventID, &e.EventType, &e.Topic, &e.Producer, &e.CorrelationID, &e.OccurredAt, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var ErrNoOrder = errors.New("order not projected")

func (j *Journal) Order(ctx context.Context, orderID string) (OrderView, error) {
	var (
		v     OrderView
		total string
	)
	err := j.DB.QueryRow(ctx, `
		SELECT order_id, quotation_id, customer_id, status, total::text, updated_at
		FROM order_projection WHERE order_id = $1`, orderID).
		Scan(&v.OrderID, &v.QuotationID, &v.CustomerID, &v.Status, &total, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ErrNoOrder
	}
	if err != nil {
		return v, err
	}
	v.Total, err = decimal.NewFromString(total)
	return v, err
}
