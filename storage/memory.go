package storage

import (
	"context"
	"sync"
)

// MemoryProvider is a map-backed Provider. It is the bottom of the chain in
// tests and the cache_storage of in-memory cache layers.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Provider = (*MemoryProvider)(nil)

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

func (m *MemoryProvider) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound(key)
	}
	return value, nil
}

func (m *MemoryProvider) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	values := make([][]byte, len(keys))
	for i, key := range keys {
		value, err := m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

func (m *MemoryProvider) GetBytes(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	value, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+length > int64(len(value)) {
		return nil, ErrOutOfRange{Key: key, Offset: offset, Length: length, Size: int64(len(value))}
	}
	out := make([]byte, length)
	copy(out, value[offset:offset+length])
	return out, nil
}

func (m *MemoryProvider) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *MemoryProvider) SetBytes(ctx context.Context, key string, value []byte, offset int64, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if overwrite {
		m.data[key] = append([]byte(nil), value...)
		return nil
	}
	prev := m.data[key]
	end := offset + int64(len(value))
	stored := make([]byte, max64(int64(len(prev)), end))
	copy(stored, prev)
	copy(stored[offset:], value)
	m.data[key] = stored
	return nil
}

func (m *MemoryProvider) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return ErrKeyNotFound(key)
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryProvider) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *MemoryProvider) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

func (m *MemoryProvider) Flush(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryProvider) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
