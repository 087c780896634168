package services

import (
	"context"
	"sync"
)

const maxRemoteMessageLen = 255

// truncateMessage bounds remote error text before it reaches API consumers.
func truncateMessage(msg string) string {
	if len(msg) <= maxRemoteMessageLen {
		return msg
	}
	return msg[:maxRemoteMessageLen] + "..."
}

// keyedMutex serializes operations per offering id. Concurrent transitions on
// the same id would let the compensation logic act on stale state; a per-id
// lock avoids that without a global bottleneck. Entries are retained for the
// service lifetime, which is bounded by the number of distinct offerings.
type keyedMutex struct {
	locks sync.Map
}

// Lock acquires the mutex for key and returns the unlock function.
func (k *keyedMutex) Lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func sanitizePerPage(perPage int) int {
	switch {
	case perPage <= 0:
		return 25
	case perPage > 100:
		return 100
	default:
		return perPage
	}
}

func sanitizePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
