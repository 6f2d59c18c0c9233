package cache

import (
	"github.com/tensorvault/tensorvault/storage"
)

// NewChain stacks cache layers above a base provider: an in-memory LRU on
// top, optionally a local-disk LRU between it and the base. A bare
// MemoryProvider base is returned unwrapped (caching memory in memory buys
// nothing). Either budget may be zero to skip that layer.
//
// localCachePath is the directory backing the disk layer; when empty the
// disk layer is skipped regardless of budget (the base is already local).
func NewChain(base storage.Provider, memorySize, localSize int64, localCachePath string) (storage.Provider, error) {
	if _, ok := base.(*storage.MemoryProvider); ok {
		return base, nil
	}
	chain := base
	if localSize > 0 && localCachePath != "" {
		diskCache, err := storage.NewLocalProvider(localCachePath)
		if err != nil {
			return nil, err
		}
		chain = NewLayer("local", diskCache, chain, localSize)
	}
	if memorySize > 0 {
		chain = NewLayer("memory", storage.NewMemoryProvider(), chain, memorySize)
	}
	return chain, nil
}
