// Package tensorvault is the core storage engine of a tensor-dataset
// library: it persists arbitrarily many multi-dimensional numeric arrays to
// an object-addressed byte store, with efficient append, random-sample read,
// and lazy multi-axis slicing over datasets larger than RAM.
package tensorvault

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"

	"github.com/tensorvault/tensorvault/cache"
	"github.com/tensorvault/tensorvault/index"
	"github.com/tensorvault/tensorvault/meta"
	"github.com/tensorvault/tensorvault/storage"
)

var log = logging.Logger("tensorvault")

// Dataset groups named tensors under one storage chain. A Dataset view
// created by View shares the same chain and carries an ambient Index that is
// applied to every tensor read through it.
//
// Datasets are not safe for concurrent mutation; the engine is single-writer
// per tensor.
type Dataset struct {
	path string
	mode string

	provider storage.Provider
	meta     *meta.DatasetMeta
	idx      index.Index

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates a dataset at a local filesystem path.
func Open(ctx context.Context, path string, opts ...Option) (*Dataset, error) {
	cfg := defaultConfig()
	cfg.apply(opts)
	base, err := storage.NewLocalProvider(path)
	if err != nil {
		return nil, err
	}
	// A local base needs no disk cache in front of it; only the memory
	// layer applies.
	chain, err := cache.NewChain(base, cfg.memoryCacheSize, 0, "")
	if err != nil {
		return nil, err
	}
	return newDataset(ctx, path, chain, cfg)
}

// OpenStorage opens or creates a dataset over an arbitrary provider. The
// cache chain (memory over optional local-disk) is stacked on top, except
// that a MemoryProvider base is used unwrapped; the disk layer is built
// only when both WithLocalCacheSize and WithLocalCachePath are set.
func OpenStorage(ctx context.Context, base storage.Provider, opts ...Option) (*Dataset, error) {
	cfg := defaultConfig()
	cfg.apply(opts)
	chain, err := cache.NewChain(base, cfg.memoryCacheSize, cfg.localCacheSize, cfg.localCachePath)
	if err != nil {
		return nil, err
	}
	path := ""
	if local, ok := base.(*storage.LocalProvider); ok {
		path = local.Root()
	}
	return newDataset(ctx, path, chain, cfg)
}

func newDataset(ctx context.Context, path string, chain storage.Provider, cfg config) (*Dataset, error) {
	switch cfg.mode {
	case ModeRead, ModeWrite, ModeAppend:
	default:
		return nil, fmt.Errorf("unsupported mode %q", cfg.mode)
	}
	ds := &Dataset{
		path:     path,
		mode:     cfg.mode,
		provider: chain,
	}
	exists, err := meta.DatasetExists(ctx, chain)
	if err != nil {
		return nil, err
	}
	if exists {
		ds.meta, err = meta.LoadDatasetMeta(ctx, chain)
		if err != nil {
			return nil, err
		}
	} else {
		ds.meta = meta.NewDatasetMeta()
		if cfg.mode != ModeRead {
			if err := ds.meta.Save(ctx, chain); err != nil {
				return nil, err
			}
		}
	}
	log.Debugf(
		"opened dataset at %q (mode=%s, tensors=%d, memory cache %s)",
		path, cfg.mode, len(ds.meta.Tensors), humanize.IBytes(uint64(cfg.memoryCacheSize)),
	)
	return ds, nil
}

// Storage returns the dataset's cache chain.
func (ds *Dataset) Storage() storage.Provider {
	return ds.provider
}

// Mode returns the open mode.
func (ds *Dataset) Mode() string {
	return ds.mode
}

// Index returns the ambient index of this view.
func (ds *Dataset) Index() index.Index {
	return ds.idx
}

// TensorNames returns the names of the dataset's tensors.
func (ds *Dataset) TensorNames() []string {
	return append([]string(nil), ds.meta.Tensors...)
}

// Tensor returns the named tensor restricted by the dataset's ambient index.
func (ds *Dataset) Tensor(name string) (*Tensor, error) {
	if !ds.meta.HasTensor(name) {
		return nil, ErrTensorDoesNotExist(name)
	}
	return &Tensor{
		name:     name,
		provider: ds.provider,
		mode:     ds.mode,
		idx:      ds.idx,
	}, nil
}

// View returns a dataset view sharing this dataset's storage, with the
// selectors composed onto the ambient index. The operation is O(1) and
// performs no I/O.
func (ds *Dataset) View(selectors ...index.Selector) *Dataset {
	return &Dataset{
		path:     ds.path,
		mode:     ds.mode,
		provider: ds.provider,
		meta:     ds.meta,
		idx:      ds.idx.Compose(selectors...),
	}
}

// Get is the dynamic accessor mirroring dictionary-style dataset indexing:
// a string returns the named Tensor, an int / selector / coordinate list /
// Index returns a Dataset view. Anything else is ErrInvalidKeyType.
func (ds *Dataset) Get(item any) (any, error) {
	switch v := item.(type) {
	case string:
		return ds.Tensor(v)
	case int:
		return ds.View(index.At(v)), nil
	case []int:
		return ds.View(index.Pick(v...)), nil
	case index.Selector:
		return ds.View(v), nil
	case index.Index:
		return &Dataset{
			path:     ds.path,
			mode:     ds.mode,
			provider: ds.provider,
			meta:     ds.meta,
			idx:      ds.idx.ComposeIndex(v),
		}, nil
	default:
		return nil, ErrInvalidKeyType{Item: item}
	}
}

// CreateTensor creates a new tensor. htype supplies the defaults for dtype,
// chunk size, and compression; opts override them.
func (ds *Dataset) CreateTensor(ctx context.Context, name, htype string, opts ...TensorOption) (*Tensor, error) {
	if ds.mode == ModeRead {
		return nil, ErrReadOnly("create tensor " + name)
	}
	if ds.meta.HasTensor(name) {
		return nil, ErrTensorAlreadyExists(name)
	}
	exists, err := meta.TensorExists(ctx, ds.provider, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrTensorAlreadyExists(name)
	}

	defaults, err := htypeDefaultsFor(htype)
	if err != nil {
		return nil, err
	}
	cfg := tensorConfig{
		dtype:             defaults.dtype,
		chunkSize:         defaults.chunkSize,
		sampleCompression: defaults.sampleCompression,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	tm := &meta.TensorMeta{
		Dtype:             string(cfg.dtype),
		Length:            0,
		ChunkSize:         cfg.chunkSize,
		Htype:             htype,
		SampleCompression: cfg.sampleCompression,
		ClassNames:        cfg.classNames,
	}
	if err := tm.Validate(); err != nil {
		return nil, err
	}
	if err := tm.Save(ctx, ds.provider, name); err != nil {
		return nil, err
	}

	ds.meta.Tensors = append(ds.meta.Tensors, name)
	if err := ds.meta.Save(ctx, ds.provider); err != nil {
		return nil, err
	}
	return ds.Tensor(name)
}

// Len returns the smallest tensor length (0 for an empty dataset).
func (ds *Dataset) Len(ctx context.Context) (int, error) {
	shortest := 0
	for i, name := range ds.meta.Tensors {
		tensor, err := ds.Tensor(name)
		if err != nil {
			return 0, err
		}
		n, err := tensor.Len(ctx)
		if err != nil {
			return 0, err
		}
		if i == 0 || n < shortest {
			shortest = n
		}
	}
	return shortest, nil
}

// Flush writes all dirty cache entries down to the authoritative storage.
// Required after writes if the dataset is not closed via Close.
func (ds *Dataset) Flush(ctx context.Context) error {
	return ds.provider.Flush(ctx)
}

// ClearCache flushes, then drops the contents of every cache layer. Data in
// the authoritative storage is untouched.
func (ds *Dataset) ClearCache(ctx context.Context) error {
	if layer, ok := ds.provider.(*cache.Layer); ok {
		return layer.ClearCache(ctx)
	}
	return ds.provider.Flush(ctx)
}

// Delete removes the entire dataset from every cache layer and the
// authoritative storage. This operation is IRREVERSIBLE.
func (ds *Dataset) Delete(ctx context.Context) error {
	if ds.mode == ModeRead {
		return ErrReadOnly("delete dataset")
	}
	return ds.provider.Clear(ctx)
}

// Close flushes the cache chain. It is safe to defer and to call more than
// once; only the first call does work.
func (ds *Dataset) Close() error {
	ds.closeOnce.Do(func() {
		ds.closeErr = ds.provider.Flush(context.Background())
	})
	return ds.closeErr
}
