package handlers

import (
	"fmt"
	"sync"
	"time"

	"github.com/mkravets/finlog/internal/cache"
)

// Named views invalidated together after any transaction mutation.
const (
	ViewDashboard    = "dashboard"
	ViewTransactions = "transactions"
)

// ViewCache caches rendered view payloads per user. Invalidation bumps a
// per-user generation counter, which makes every cached entry for that user
// unreachable at once; stale entries age out of the underlying LRU.
type ViewCache struct {
	mu   sync.Mutex
	gens map[string]uint64
	data *cache.LRU[any]
}

func NewViewCache(size int, ttl time.Duration) *ViewCache {
	return &ViewCache{
		gens: make(map[string]uint64),
		data: cache.New[any](size, ttl),
	}
}

// Get returns the cached payload for the user's view, if still fresh, plus
// the generation-scoped key the lookup used. On a miss the caller computes
// the payload and hands the key back to Put; a mutation that bumps the
// generation in between leaves the write orphaned under the old key instead
// of resurfacing a pre-mutation payload under the new one.
// params distinguishes variants of the same view, e.g. page/limit.
func (v *ViewCache) Get(userID, view, params string) (any, string, bool) {
	key := v.key(userID, view, params)
	value, ok := v.data.Get(key)
	return value, key, ok
}

// Put stores a rendered payload under a key previously returned by Get.
func (v *ViewCache) Put(key string, value any) {
	v.data.Set(key, value)
}

// Invalidate marks every cached view of the user stale.
func (v *ViewCache) Invalidate(userID string) {
	v.mu.Lock()
	v.gens[userID]++
	v.mu.Unlock()
}

func (v *ViewCache) key(userID, view, params string) string {
	v.mu.Lock()
	gen := v.gens[userID]
	v.mu.Unlock()
	return fmt.Sprintf("%s|%d|%s|%s", userID, gen, view, params)
}
