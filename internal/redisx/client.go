package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Idempotency remembers the response of a command per client-supplied key.
// A key is claimed with a pending marker before the command runs and then
// overwritten with the response.
type Idempotency struct {
	R *redis.Client
}

const idemPending = "pending"

// Begin claims key in scope. When someone else holds it, claimed is false and
// resp is the stored response, or nil while that command is still running.
func (i Idempotency) Begin(ctx context.Context, scope, key string) (resp []byte, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemCommand, scope, key)
	ok, err := i.R.SetNX(ctx, k, idemPending, TTLIdemPending).Result()
	if err != nil || ok {
		return nil, ok, err
	}
	b, err := i.R.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) || string(b) == idemPending {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, false, nil
}

// Complete stores resp for a key claimed by Begin.
func (i Idempotency) Complete(ctx context.Context, scope, key string, resp []byte) error {
	return i.R.Set(ctx, fmt.Sprintf(KeyIdemCommand, scope, key), resp, TTLIdempotency).Err()
}

// Release drops a claim so the command can be tried again.
func (i Idempotency) Release(ctx context.Context, scope, key string) error {
	return i.R.Del(ctx, fmt.Sprintf(KeyIdemCommand, scope, key)).Err()
}

type CachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// putIfNewer writes the status only when no newer one is cached.
// KEYS[1] hash, ARGV: updated_at in unix micros, status, ttl ms.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'at')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'at', ARGV[1], 'status', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// StatusCache keeps the latest order status for fast reads. Writes carrying
// an older updated_at than the cached one are ignored.
type StatusCache struct {
	R *redis.Client
}

func (c StatusCache) Put(ctx context.Context, orderID, status string, at time.Time) error {
	k := fmt.Sprintf(KeyOrderStatus, orderID)
	return putIfNewer.Run(ctx, c.R, []string{k}, at.UnixMicro(), status, TTLStatusCache.Milliseconds()).Err()
}

func (c StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	var cs CachedStatus
	m, err := c.R.HGetAll(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil {
		return cs, false, err
	}
	if len(m) == 0 {
		return cs, false, nil
	}
	us, err := strconv.ParseInt(m["at"], 10, 64)
	if err != nil {
		return cs, false, fmt.Errorf("order status cache %s: %w", orderID, err)
	}
	cs.Status = m["status"]
	cs.UpdatedAt = time.UnixMicro(us).UTC()
	return cs, true, nil
}

// Dedup marks event ids as processed for one consuming service.
type Dedup struct {
	R       *redis.Client
	Service string
}

// FirstSeen claims id and reports whether this caller is the first to see it.
func (d Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.R.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
}

// Forget drops the claim so a failed event can be processed again.
func (d Dedup) Forget(ctx context.Context, id string) error {
	return d.R.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
