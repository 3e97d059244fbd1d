package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryLinkGuard is the in-process fallback for the link rate limiter.
// Counters reset when the process restarts, which is acceptable for a
// fallback path.
type MemoryLinkGuard struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryLinkGuard() *MemoryLinkGuard {
	return &MemoryLinkGuard{entries: make(map[string]*rateLimitEntry)}
}

func (r *MemoryLinkGuard) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || now.After(entry.expiresAt) {
		r.entries[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		return limit >= 1, nil
	}

	entry.count++
	return entry.count <= limit, nil
}
