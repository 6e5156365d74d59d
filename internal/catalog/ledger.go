package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/shopspring/decimal"
)

type entry struct {
	mu       sync.Mutex
	p        Product
	holds    map[string]int // holder (order id) -> reserved qty
	receipts map[string]struct{}
}

func (e *entry) touch(now time.Time) {
	e.p.State = DeriveState(e.p.Reserved, e.p.InTransit)
	e.p.UpdatedAt = now
}

// Ledger is the authoritative stock record. Each SKU has its own lock, so
// operations on disjoint SKUs run in parallel; multi-SKU operations lock their
// entries in SKU order.
type Ledger struct {
	Gate      *authz.Gate
	Publisher events.Publisher
	Producer  string
	Log       *slog.Logger
	Now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewLedger(gate *authz.Gate, pub events.Publisher, log *slog.Logger) *Ledger {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		Gate:      gate,
		Publisher: pub,
		Producer:  "catalog",
		Log:       log,
		Now:       time.Now,
		entries:   make(map[string]*entry),
	}
}

func (l *Ledger) get(sku string) (*entry, error) {
	l.mu.RLock()
	e, ok := l.entries[sku]
	l.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("product", sku)
	}
	return e, nil
}

// CreateProduct registers a new SKU with zero stock. Stock arrives through Receive.
func (l *Ledger) CreateProduct(ctx context.Context, role authz.Role, in ProductInput) (Product, error) {
	if err := l.Gate.Authorize(role, authz.ActionCreateProduct); err != nil {
		return Product{}, err
	}
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU == "" {
		return Product{}, errs.InvalidInput("product", "", "sku", "required")
	}
	if in.UnitPrice.IsNegative() {
		return Product{}, errs.InvalidAmount("product", in.SKU, "unit_price", "must be non-negative")
	}
	if in.MinStock < 0 {
		return Product{}, errs.InvalidQuantity("product", in.SKU, "min_stock", in.MinStock)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[in.SKU]; ok {
		return Product{}, errs.AlreadyExists("product", in.SKU)
	}
	e := &entry{
		p: Product{
			SKU:       in.SKU,
			Name:      in.Name,
			Category:  in.Category,
			UnitPrice: in.UnitPrice,
			Location:  in.Location,
			MinStock:  in.MinStock,
		},
		holds:    map[string]int{},
		receipts: map[string]struct{}{},
	}
	e.touch(l.Now())
	l.entries[in.SKU] = e
	l.Log.InfoContext(ctx, "product created", "sku", in.SKU, "role", role)
	return e.p, nil
}

func (l *Ledger) Get(sku string) (Product, error) {
	e, err := l.get(sku)
	if err != nil {
		return Product{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p, nil
}

func (l *Ledger) GetAvailability(sku string) (Availability, error) {
	p, err := l.Get(sku)
	if err != nil {
		return Availability{}, err
	}
	return Availability{SKU: p.SKU, Available: p.Available, Reserved: p.Reserved, State: p.State}, nil
}

// UnitPrice is the current list price, used when a quotation line is added.
func (l *Ledger) UnitPrice(sku string) (decimal.Decimal, error) {
	p, err := l.Get(sku)
	if err != nil {
		return decimal.Zero, err
	}
	return p.UnitPrice, nil
}

func (l *Ledger) List(f Filter) []Product {
	l.mu.RLock()
	all := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		all = append(all, e)
	}
	l.mu.RUnlock()

	q := strings.ToLower(f.Query)
	out := make([]Product, 0, len(all))
	for _, e := range all {
		e.mu.Lock()
		p := e.p
		e.mu.Unlock()
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(f.Category, p.Category) {
			continue
		}
		if f.State != "" && f.State != p.State {
			continue
		}
		if f.LowStock && !p.BelowMinimum() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

// Reserve holds qty units of sku for holder.
func (l *Ledger) Reserve(ctx context.Context, holder, sku string, qty int) error {
	if qty < 1 {
		return errs.InvalidQuantity("product", sku, "qty", qty)
	}
	e, err := l.get(sku)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if free := e.p.Free(); qty > free {
		return errs.InsufficientStock(sku, qty, free)
	}
	e.p.Reserved += qty
	e.holds[holder] += qty
	e.touch(l.Now())
	l.Log.DebugContext(ctx, "stock reserved", "sku", sku, "holder", holder, "qty", qty)
	return nil
}

// Release gives back part of holder's reservation on sku.
func (l *Ledger) Release(ctx context.Context, holder, sku string, qty int) error {
	if qty < 1 {
		return errs.InvalidQuantity("product", sku, "qty", qty)
	}
	e, err := l.get(sku)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if held := e.holds[holder]; qty > held {
		return errs.InvalidRelease(sku, holder, qty, held)
	}
	e.release(holder, qty)
	e.touch(l.Now())
	l.Log.DebugContext(ctx, "stock released", "sku", sku, "holder", holder, "qty", qty)
	return nil
}

func (e *entry) release(holder string, qty int) {
	e.p.Reserved -= qty
	if e.holds[holder] -= qty; e.holds[holder] == 0 {
		delete(e.holds, holder)
	}
}

// Held reports how much of sku holder currently has reserved.
func (l *Ledger) Held(holder, sku string) int {
	e, err := l.get(sku)
	if err != nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.holds[holder]
}

// ReserveAll reserves every line for holder or nothing. All involved entries
// stay locked while the set is checked and applied, so two holders racing for
// the last units cannot both get a partial set. The error names the first
// failing SKU in line order.
func (l *Ledger) ReserveAll(ctx context.Context, holder string, lines []Line) error {
	need, order, err := mergeLines(lines)
	if err != nil {
		return err
	}
	locked, unlock, err := l.lockSorted(order)
	if err != nil {
		return err
	}
	defer unlock()

	for _, sku := range order {
		if free := locked[sku].p.Free(); need[sku] > free {
			return errs.InsufficientStock(sku, need[sku], free)
		}
	}
	now := l.Now()
	for _, sku := range order {
		e := locked[sku]
		e.p.Reserved += need[sku]
		e.holds[holder] += need[sku]
		e.touch(now)
	}
	l.Log.DebugContext(ctx, "stock reserved", "holder", holder, "lines", len(order))
	return nil
}

// ReleaseAll returns exactly the listed quantities of holder's reservations.
// Nothing changes unless every line is covered by what holder holds.
func (l *Ledger) ReleaseAll(ctx context.Context, holder string, lines []Line) error {
	return l.settle(ctx, holder, lines, false)
}

// CommitAll turns holder's reservations into shipped stock: the units leave the
// warehouse, so both Available and Reserved drop by the line quantity.
func (l *Ledger) CommitAll(ctx context.Context, holder string, lines []Line) error {
	return l.settle(ctx, holder, lines, true)
}

func (l *Ledger) settle(ctx context.Context, holder string, lines []Line, ship bool) error {
	need, order, err := mergeLines(lines)
	if err != nil {
		return err
	}
	locked, unlock, err := l.lockSorted(order)
	if err != nil {
		return err
	}
	defer unlock()

	for _, sku := range order {
		if held := locked[sku].holds[holder]; need[sku] > held {
			return errs.InvalidRelease(sku, holder, need[sku], held)
		}
	}
	now := l.Now()
	for _, sku := range order {
		e := locked[sku]
		e.release(holder, need[sku])
		if ship {
			e.p.Available -= need[sku]
		}
		e.touch(now)
	}
	l.Log.DebugContext(ctx, "reservations settled", "holder", holder, "shipped", ship, "lines", len(order))
	return nil
}

// Receive books a goods receipt. A repeated ReceiptID for the same SKU is a no-op.
func (l *Ledger) Receive(ctx context.Context, role authz.Role, in ReceiptInput) (Product, error) {
	if err := l.Gate.Authorize(role, authz.ActionReceiveStock); err != nil {
		return Product{}, err
	}
	if in.Qty < 1 {
		return Product{}, errs.InvalidQuantity("product", in.SKU, "qty", in.Qty)
	}
	e, err := l.get(in.SKU)
	if err != nil {
		return Product{}, err
	}

	e.mu.Lock()
	if in.ReceiptID != "" {
		if _, dup := e.receipts[in.ReceiptID]; dup {
			p := e.p
			e.mu.Unlock()
			return p, nil
		}
		e.receipts[in.ReceiptID] = struct{}{}
	}
	e.p.Available += in.Qty
	if in.Location != "" {
		e.p.Location = in.Location
	}
	e.p.InTransit = in.InTransit
	now := l.Now()
	e.touch(now)
	p := e.p
	e.mu.Unlock()

	l.Log.InfoContext(ctx, "stock received", "sku", in.SKU, "qty", in.Qty, "in_transit", in.InTransit, "role", role)
	l.publish(ctx, in, now)
	return p, nil
}

func (l *Ledger) publish(ctx context.Context, in ReceiptInput, at time.Time) {
	ev, err := events.New(events.EventStockReceived, l.Producer, in.SKU, events.StockReceivedPayload{
		ReceiptID: in.ReceiptID,
		SKU:       in.SKU,
		Qty:       in.Qty,
		Location:  in.Location,
		InTransit: in.InTransit,
	}, at)
	if err != nil {
		l.Log.ErrorContext(ctx, "build event", "error", err)
		return
	}
	l.Publisher.Publish(ctx, events.TopicStock, ev)
}

func (l *Ledger) lockSorted(skus []string) (map[string]*entry, func(), error) {
	sorted := append([]string(nil), skus...)
	sort.Strings(sorted)

	l.mu.RLock()
	locked := make(map[string]*entry, len(sorted))
	for _, sku := range skus {
		e, ok := l.entries[sku]
		if !ok {
			l.mu.RUnlock()
			return nil, nil, errs.NotFound("product", sku)
		}
		locked[sku] = e
	}
	l.mu.RUnlock()

	for _, sku := range sorted {
		locked[sku].mu.Lock()
	}
	unlock := func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			locked[sorted[i]].mu.Unlock()
		}
	}
	return locked, unlock, nil
}

// mergeLines sums quantities per SKU and keeps first-seen order.
func mergeLines(lines []Line) (map[string]int, []string, error) {
	need := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln.Qty < 1 {
			return nil, nil, errs.InvalidQuantity("product", ln.SKU, "qty", ln.Qty)
		}
		if _, seen := need[ln.SKU]; !seen {
			order = append(order, ln.SKU)
		}
		need[ln.SKU] += ln.Qty
	}
	return need, order, nil
}
