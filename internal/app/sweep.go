package app

import (
	"context"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
)

// Sweep refreshes overdue invoices and retries pending invoices. Both steps
// are idempotent, so overlapping or repeated sweeps are harmless.
func (s *Services) Sweep(ctx context.Context) (overdue, reconciled int, err error) {
	overdue, err = s.Billing.MarkOverdue(ctx, authz.RoleSystem)
	if err != nil {
		return 0, 0, err
	}
	reconciled, err = s.Orders.ReconcilePending(ctx, authz.RoleSystem)
	return overdue, reconciled, err
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables it.
func (s *Services) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			overdue, reconciled, err := s.Sweep(ctx)
			if err != nil {
				s.Log.WarnContext(ctx, "sweep incomplete", "overdue", overdue, "reconciled", reconciled, "error", err)
				continue
			}
			if overdue > 0 || reconciled > 0 {
				s.Log.InfoContext(ctx, "sweep done", "overdue", overdue, "reconciled", reconciled)
			}
		}
	}
}
