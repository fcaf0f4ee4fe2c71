package utils

import (
	"sync"
	"time"
)

// TimedBuffer keeps the most recent entries per key, capped at limit, and
// answers "what arrived within the last window" queries.
type TimedBuffer[T any] struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]timedEntry[T]
}

type timedEntry[T any] struct {
	at    time.Time
	value T
}

func NewTimedBuffer[T any](limit int) *TimedBuffer[T] {
	if limit <= 0 {
		limit = 1
	}
	return &TimedBuffer[T]{limit: limit, entries: make(map[string][]timedEntry[T])}
}

func (b *TimedBuffer[T]) Add(key string, now time.Time, value T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := append(b.entries[key], timedEntry[T]{at: now, value: value})
	if over := len(entries) - b.limit; over > 0 {
		entries = entries[over:]
	}
	b.entries[key] = entries
	return len(entries)
}

// Since returns entries newer than now-window, newest first, at most max
// (max <= 0 means no cap).
func (b *TimedBuffer[T]) Since(key string, now time.Time, window time.Duration, max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-window)
	entries := b.entries[key]
	var out []T
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].at.After(cutoff) {
			break
		}
		out = append(out, entries[i].value)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func (b *TimedBuffer[T]) Len(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[key])
}
