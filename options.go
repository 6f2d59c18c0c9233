package tensorvault

import (
	"github.com/tensorvault/tensorvault/narray"
)

const (
	// ModeRead opens a dataset for reading only.
	ModeRead = "r"
	// ModeWrite opens a dataset for writing.
	ModeWrite = "w"
	// ModeAppend opens a dataset for reading and appending. The default.
	ModeAppend = "a"
)

const (
	// DefaultMemoryCacheSize bounds the in-memory cache layer.
	DefaultMemoryCacheSize = 256 * mb
	// DefaultLocalCacheSize bounds the on-disk cache layer (0 disables it).
	DefaultLocalCacheSize = 0
)

type config struct {
	mode            string
	memoryCacheSize int64
	localCacheSize  int64
	localCachePath  string
}

func defaultConfig() config {
	return config{
		mode:            ModeAppend,
		memoryCacheSize: DefaultMemoryCacheSize,
		localCacheSize:  DefaultLocalCacheSize,
	}
}

// Option configures Open and OpenStorage.
type Option func(*config)

// WithMode sets the open mode: ModeRead, ModeWrite, or ModeAppend.
func WithMode(mode string) Option {
	return func(c *config) { c.mode = mode }
}

// WithMemoryCacheSize sets the in-memory cache budget in bytes. Zero skips
// the layer.
func WithMemoryCacheSize(bytes int64) Option {
	return func(c *config) { c.memoryCacheSize = bytes }
}

// WithLocalCacheSize sets the on-disk cache budget in bytes. Zero skips the
// layer. The layer is built only by OpenStorage and only when
// WithLocalCachePath is also set; Open ignores this option.
func WithLocalCacheSize(bytes int64) Option {
	return func(c *config) { c.localCacheSize = bytes }
}

// WithLocalCachePath sets the directory backing the on-disk cache layer.
func WithLocalCachePath(dir string) Option {
	return func(c *config) { c.localCachePath = dir }
}

func (c *config) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// TensorOption overrides an htype default at tensor creation.
type TensorOption func(*tensorConfig)

type tensorConfig struct {
	dtype             narray.DType
	chunkSize         int64
	sampleCompression string
	classNames        []string
}

// WithDtype overrides the tensor's element type.
func WithDtype(dtype narray.DType) TensorOption {
	return func(c *tensorConfig) { c.dtype = dtype }
}

// WithChunkSize overrides the chunk byte capacity.
func WithChunkSize(bytes int64) TensorOption {
	return func(c *tensorConfig) { c.chunkSize = bytes }
}

// WithSampleCompression selects the codec applied to each sample before
// chunking ("none" or "zstd").
func WithSampleCompression(name string) TensorOption {
	return func(c *tensorConfig) { c.sampleCompression = name }
}

// WithClassNames attaches label names to a class_label tensor.
func WithClassNames(names ...string) TensorOption {
	return func(c *tensorConfig) { c.classNames = append([]string(nil), names...) }
}
