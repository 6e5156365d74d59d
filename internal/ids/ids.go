package ids

import (
	"fmt"
	"sync"
	"time"
)

// Allocator hands out sequential document numbers per prefix, e.g. ORD-2026-000001.
// Sequences are per prefix and never reused.
type Allocator struct {
	mu   sync.Mutex
	seq  map[string]int64
	year func() int
}

func NewAllocator(now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{
		seq:  make(map[string]int64),
		year: func() int { return now().Year() },
	}
}

func (a *Allocator) Next(prefix string) string {
	a.mu.Lock()
	a.seq[prefix]++
	n := a.seq[prefix]
	a.mu.Unlock()
	return Format(prefix, a.year(), n)
}

func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}

const (
	PrefixQuotation = "QUO"
	PrefixOrder     = "ORD"
	PrefixInvoice   = "FAC"
)
