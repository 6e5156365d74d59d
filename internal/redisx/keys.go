package redisx

import "time"

const (
	// Command idempotency: idem:{scope}:{Idempotency-Key} -> "pending" while running, then the stored JSON response
	KeyIdemCommand = "idem:%s:%s"

	// Order status cache: order_status:{order_id} -> hash {status, at (unix micros)}
	KeyOrderStatus = "order_status:%s"

	// Event processing dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
