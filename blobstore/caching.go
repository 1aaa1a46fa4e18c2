package blobstore

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCacheCapacity is the byte capacity used when none is given.
const DefaultCacheCapacity int64 = 64 << 20

// CachingStore wraps a Store with an in-memory, byte-capped LRU cache
// of whole blobs. Repeated reads of the same sample, typically across
// passes of the same dataset, are served from memory instead of the
// backend. Writes invalidate the cached entry and pass through.
type CachingStore struct {
	inner    Store
	capacity int64

	mu      sync.Mutex
	used    int64
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type cacheEntry struct {
	name string
	data []byte
}

// NewCachingStore wraps inner with a cache of at most capacityBytes.
// capacityBytes defaults to DefaultCacheCapacity if <= 0.
func NewCachingStore(inner Store, capacityBytes int64) *CachingStore {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCacheCapacity
	}
	return &CachingStore{
		inner:    inner,
		capacity: capacityBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the blob from the cache, falling back to the inner store
// and caching the result.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	if el, ok := s.entries[name]; ok {
		s.order.MoveToFront(el)
		data := el.Value.(*cacheEntry).data
		s.mu.Unlock()

		copied := make([]byte, len(data))
		copy(copied, data)
		return copied, nil
	}
	s.mu.Unlock()

	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	s.insert(name, data)
	return data, nil
}

// Put invalidates the cached entry and writes through to the inner
// store.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	s.evict(name)
	s.mu.Unlock()

	return s.inner.Put(ctx, name, data)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// CachedBytes returns the number of blob bytes currently cached.
func (s *CachingStore) CachedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *CachingStore) insert(name string, data []byte) {
	if int64(len(data)) > s.capacity {
		return
	}

	copied := make([]byte, len(data))
	copy(copied, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent Get may have inserted the same blob already.
	s.evict(name)
	el := s.order.PushFront(&cacheEntry{name: name, data: copied})
	s.entries[name] = el
	s.used += int64(len(copied))

	for s.used > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.evict(oldest.Value.(*cacheEntry).name)
	}
}

// evict removes one entry; the caller holds the lock.
func (s *CachingStore) evict(name string) {
	el, ok := s.entries[name]
	if !ok {
		return
	}
	s.order.Remove(el)
	delete(s.entries, name)
	s.used -= int64(len(el.Value.(*cacheEntry).data))
}
