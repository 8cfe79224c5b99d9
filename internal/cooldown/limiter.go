package cooldown

import (
	"sync"
	"time"
)

// Limiter enforces the minimum interval between two allowed alerts sharing a
// key. Keys are per-channel: one cooldown bucket per channel, so a noisy
// channel cannot silence alerts for the rest of the workspace.
//
// The check and the timestamp update are a single critical section; two
// concurrent acquisitions for the same key can never both succeed inside the
// cooldown window.
type Limiter struct {
	cooldown time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func NewLimiter(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// TryAcquire reports whether an alert for key is allowed at now, and if so
// records now as the last allowed time. A zero cooldown disables limiting.
func (l *Limiter) TryAcquire(key string, now time.Time) bool {
	if l.cooldown <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[key]; ok && now.Sub(last) < l.cooldown {
		return false
	}

	l.last[key] = now
	l.evictStale(now)
	return true
}

// Cooldown returns the configured interval.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}

// evictStale drops entries whose cooldown has long expired so the map stays
// bounded by the set of recently active channels. Caller holds the lock.
func (l *Limiter) evictStale(now time.Time) {
	if len(l.last) < 1024 {
		return
	}
	for key, last := range l.last {
		if now.Sub(last) >= 2*l.cooldown {
			delete(l.last, key)
		}
	}
}
