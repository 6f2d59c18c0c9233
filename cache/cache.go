// Package cache implements the write-back LRU layer that composes two
// storage providers: a fast, bounded cache storage fronting a slow,
// authoritative next storage. A Layer is itself a storage.Provider, so
// layers stack into a chain.
package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"k8s.io/klog/v2"

	"github.com/tensorvault/tensorvault/storage"
)

// Layer is a write-back LRU cache over a next storage.
//
// Invariants after every public operation: used ≤ maxSize (unless a single
// admitted value exceeds the budget on its own — oversized values are
// admitted rather than rejected, so every write succeeds and a later flush
// observably persists it); every dirty key is cached; for a key present in
// both storages the cached bytes are authoritative until evicted clean or
// reloaded.
type Layer struct {
	name         string
	cacheStorage storage.Provider
	nextStorage  storage.Provider
	maxSize      int64

	mu      sync.Mutex
	used    int64
	sizes   map[string]int64
	lruList *list.List // Front is MRU, Back is LRU-oldest.
	lruMap  map[string]*list.Element
	dirty   map[string]struct{}
}

var _ storage.Provider = (*Layer)(nil)

// NewLayer composes cacheStorage over nextStorage with a byte budget.
// name labels log lines and metrics.
func NewLayer(name string, cacheStorage, nextStorage storage.Provider, maxSize int64) *Layer {
	if maxSize < 0 {
		panic("cache: maxSize must be non-negative")
	}
	return &Layer{
		name:         name,
		cacheStorage: cacheStorage,
		nextStorage:  nextStorage,
		maxSize:      maxSize,
		sizes:        make(map[string]int64),
		lruList:      list.New(),
		lruMap:       make(map[string]*list.Element),
		dirty:        make(map[string]struct{}),
	}
}

// Next returns the authoritative storage below this layer.
func (l *Layer) Next() storage.Provider {
	return l.nextStorage
}

// CacheUsed returns the current byte usage of the cache storage.
func (l *Layer) CacheUsed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// DirtyKeys returns a snapshot of the keys not yet persisted below.
func (l *Layer) DirtyKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.dirty))
	for key := range l.dirty {
		keys = append(keys, key)
	}
	return keys
}

// CachedKeys returns a snapshot of the cached keys, LRU-oldest first.
func (l *Layer) CachedKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, l.lruList.Len())
	for elem := l.lruList.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(string))
	}
	return keys
}

func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(ctx, key)
}

func (l *Layer) getLocked(ctx context.Context, key string) ([]byte, error) {
	if elem, ok := l.lruMap[key]; ok {
		l.lruList.MoveToFront(elem)
		metricHits.WithLabelValues(l.name).Inc()
		klog.V(5).Infof("[%s] cache hit: %s", l.name, key)
		return l.cacheStorage.Get(ctx, key)
	}
	value, err := l.nextStorage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	metricMisses.WithLabelValues(l.name).Inc()
	klog.V(5).Infof("[%s] cache miss: %s (%d bytes)", l.name, key, len(value))
	if err := l.admitLocked(ctx, key, value, false); err != nil {
		return nil, err
	}
	return value, nil
}

func (l *Layer) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	values := make([][]byte, len(keys))
	for i, key := range keys {
		value, err := l.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

func (l *Layer) Set(ctx context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.admitLocked(ctx, key, value, true)
}

// admitLocked inserts value into the cache at the MRU end, evicting as
// needed first. Writes are marked dirty; read-through fills are not.
func (l *Layer) admitLocked(ctx context.Context, key string, value []byte, markDirty bool) error {
	if elem, ok := l.lruMap[key]; ok {
		l.lruList.Remove(elem)
		delete(l.lruMap, key)
		l.used -= l.sizes[key]
		delete(l.sizes, key)
	}
	if err := l.ensureCapacityLocked(ctx, int64(len(value))); err != nil {
		return err
	}
	if err := l.cacheStorage.Set(ctx, key, value); err != nil {
		return err
	}
	l.lruMap[key] = l.lruList.PushFront(key)
	l.sizes[key] = int64(len(value))
	l.used += int64(len(value))
	if markDirty {
		l.dirty[key] = struct{}{}
	}
	return nil
}

// ensureCapacityLocked evicts LRU-oldest entries until need bytes fit in the
// budget. Dirty victims are written back first; a write-back failure
// surfaces here, at the operation that triggered the eviction. A value
// larger than the whole budget empties the cache and is then admitted
// anyway.
func (l *Layer) ensureCapacityLocked(ctx context.Context, need int64) error {
	for l.used+need > l.maxSize && l.lruList.Len() > 0 {
		elem := l.lruList.Back()
		victim := elem.Value.(string)
		if _, isDirty := l.dirty[victim]; isDirty {
			if err := l.writeBackLocked(ctx, victim); err != nil {
				return err
			}
		}
		if err := l.cacheStorage.Delete(ctx, victim); err != nil {
			return err
		}
		l.lruList.Remove(elem)
		delete(l.lruMap, victim)
		l.used -= l.sizes[victim]
		delete(l.sizes, victim)
		metricEvictions.WithLabelValues(l.name).Inc()
		klog.V(5).Infof("[%s] evicted %s, used now %d", l.name, victim, l.used)
	}
	return nil
}

func (l *Layer) writeBackLocked(ctx context.Context, key string) error {
	value, err := l.cacheStorage.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := l.nextStorage.Set(ctx, key, value); err != nil {
		return err
	}
	delete(l.dirty, key)
	metricWriteBacks.WithLabelValues(l.name).Inc()
	metricWriteBackBytes.WithLabelValues(l.name).Add(float64(len(value)))
	return nil
}

func (l *Layer) GetBytes(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Range reads operate on the cached copy; a miss pulls the full value
	// (chunk sizes are chosen to be RAM-friendly).
	value, err := l.getLocked(ctx, key)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+length > int64(len(value)) {
		return nil, storage.ErrOutOfRange{Key: key, Offset: offset, Length: length, Size: int64(len(value))}
	}
	out := make([]byte, length)
	copy(out, value[offset:offset+length])
	return out, nil
}

func (l *Layer) SetBytes(ctx context.Context, key string, value []byte, offset int64, overwrite bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if overwrite {
		return l.admitLocked(ctx, key, value, true)
	}
	base, err := l.peekLocked(ctx, key)
	if err != nil {
		return err
	}
	end := offset + int64(len(value))
	size := int64(len(base))
	if end > size {
		size = end
	}
	patched := make([]byte, size)
	copy(patched, base)
	copy(patched[offset:], value)
	return l.admitLocked(ctx, key, patched, true)
}

// peekLocked returns the current value without touching LRU order: the
// cached copy if present, the next storage's otherwise, nil if absent
// (set_bytes zero-pads missing keys).
func (l *Layer) peekLocked(ctx context.Context, key string) ([]byte, error) {
	if _, ok := l.lruMap[key]; ok {
		return l.cacheStorage.Get(ctx, key)
	}
	value, err := l.nextStorage.Get(ctx, key)
	if err != nil {
		var notFound storage.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

func (l *Layer) Delete(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasCached := false
	if elem, ok := l.lruMap[key]; ok {
		wasCached = true
		if err := l.cacheStorage.Delete(ctx, key); err != nil {
			return err
		}
		l.lruList.Remove(elem)
		delete(l.lruMap, key)
		l.used -= l.sizes[key]
		delete(l.sizes, key)
		delete(l.dirty, key)
	}
	err := l.nextStorage.Delete(ctx, key)
	if err != nil {
		var notFound storage.ErrKeyNotFound
		// The key may have lived only in the cache, never flushed.
		if wasCached && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func (l *Layer) Keys(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	below, err := l.nextStorage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(below)+len(l.sizes))
	keys := make([]string, 0, len(below)+len(l.sizes))
	for _, key := range below {
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range l.sizes {
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (l *Layer) Len(ctx context.Context) (int, error) {
	keys, err := l.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Flush persists every dirty entry to the next storage and propagates the
// flush down the chain. Cached entries stay cached, now clean. Flushing
// twice is the same as flushing once.
func (l *Layer) Flush(ctx context.Context) error {
	l.mu.Lock()
	for key := range l.dirty {
		if err := l.writeBackLocked(ctx, key); err != nil {
			l.mu.Unlock()
			return err
		}
	}
	l.mu.Unlock()
	return l.nextStorage.Flush(ctx)
}

// ClearCache flushes, then drops every cached entry and resets the LRU
// bookkeeping, recursively down the chain. The authoritative storage is
// untouched.
func (l *Layer) ClearCache(ctx context.Context) error {
	if err := l.Flush(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	if err := l.cacheStorage.Clear(ctx); err != nil {
		l.mu.Unlock()
		return err
	}
	l.used = 0
	l.sizes = make(map[string]int64)
	l.lruList.Init()
	l.lruMap = make(map[string]*list.Element)
	l.dirty = make(map[string]struct{})
	l.mu.Unlock()

	if next, ok := l.nextStorage.(*Layer); ok {
		return next.ClearCache(ctx)
	}
	return nil
}

// Clear destroys everything: the cache contents, the bookkeeping, and every
// key in the storages below. Irreversible.
func (l *Layer) Clear(ctx context.Context) error {
	l.mu.Lock()
	if err := l.cacheStorage.Clear(ctx); err != nil {
		l.mu.Unlock()
		return err
	}
	l.used = 0
	l.sizes = make(map[string]int64)
	l.lruList.Init()
	l.lruMap = make(map[string]*list.Element)
	l.dirty = make(map[string]struct{})
	l.mu.Unlock()
	return l.nextStorage.Clear(ctx)
}
