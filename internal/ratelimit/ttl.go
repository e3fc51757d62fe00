// Package ratelimit provides a best-effort duplicate suppressor for
// notification dispatch. It is advisory only: losing its state (say, on
// restart) degrades to sending once more, never to skipping a required
// check. Correctness of at-most-once dispatch rests on the storage-layer
// compare-and-set, not here.
package ratelimit

import (
	"sync"
	"time"
)

// TTLLimiter remembers keys for a fixed window.
type TTLLimiter struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewTTLLimiter(ttl time.Duration) *TTLLimiter {
	return &TTLLimiter{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether the key has not been seen within the TTL window,
// recording it as seen. Expired entries are pruned lazily.
func (l *TTLLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, at := range l.seen {
		if now.Sub(at) > l.ttl {
			delete(l.seen, k)
		}
	}

	if at, ok := l.seen[key]; ok && now.Sub(at) <= l.ttl {
		return false
	}
	l.seen[key] = now
	return true
}
