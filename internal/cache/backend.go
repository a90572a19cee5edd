package cache

import (
	"context"
	"sync"
	"time"
)

// Backend stores encoded list results and the tag index that invalidation
// walks.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	Invalidate(ctx context.Context, tag string) error
	Close() error
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && b.now().After(e.expires) {
		delete(b.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = b.now().Add(ttl)
	}
	b.entries[key] = e

	for _, tag := range tags {
		keys, ok := b.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			b.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (b *MemoryBackend) Invalidate(_ context.Context, tag string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.tags[tag] {
		delete(b.entries, key)
	}
	delete(b.tags, tag)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (b *MemoryBackend) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for key, e := range b.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(b.entries, key)
			removed++
		}
	}
	for tag, keys := range b.tags {
		for key := range keys {
			if _, ok := b.entries[key]; !ok {
				delete(keys, key)
			}
		}
		if len(keys) == 0 {
			delete(b.tags, tag)
		}
	}
	return removed
}

func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *MemoryBackend) Close() error { return nil }
