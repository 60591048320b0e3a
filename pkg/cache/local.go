package cache

import (
	"sync"
	"time"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Local is the in-process tier. Entries expire purely by TTL.
type Local struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

// NewLocal creates an empty local tier. A nil clock means time.Now.
func NewLocal(now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		entries: make(map[string]localEntry),
		now:     now,
	}
}

func (l *Local) Get(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	if !l.now().Before(e.expiresAt) {
		delete(l.entries, key)
		return nil, false
	}
	return e.value, true
}

func (l *Local) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	l.mu.Lock()
	l.entries[key] = localEntry{value: value, expiresAt: l.now().Add(ttl)}
	l.mu.Unlock()
}

func (l *Local) Delete(keys ...string) {
	l.mu.Lock()
	for _, k := range keys {
		delete(l.entries, k)
	}
	l.mu.Unlock()
}

// Purge drops every expired entry and returns how many were removed.
func (l *Local) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, e := range l.entries {
		if !now.Before(e.expiresAt) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
