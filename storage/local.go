package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("tensorvault/storage")

// LocalProvider stores each key as a file under a root directory. Keys are
// slash-delimited and mapped to relative paths; parent directories are
// created on write.
type LocalProvider struct {
	root string
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider returns a Provider rooted at root. The root directory is
// created if missing. An existing file at root is rejected.
func NewLocalProvider(root string) (*LocalProvider, error) {
	info, err := os.Stat(root)
	if err == nil && !info.IsDir() {
		return nil, ErrLeafAtContainerPath(root)
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat root %q: %w", root, err)
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create root %q: %w", root, err)
		}
	}
	return &LocalProvider{root: root}, nil
}

// Root returns the root directory of the provider.
func (l *LocalProvider) Root() string {
	return l.root
}

// fullPath maps a slash-delimited key to a path under root.
func (l *LocalProvider) fullPath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *LocalProvider) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.fullPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrKeyNotFound(key)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrPathIsDirectory(key)
	}
	value, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (l *LocalProvider) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	values := make([][]byte, len(keys))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxBulkReaders)
	for i, key := range keys {
		group.Go(func() error {
			value, err := l.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("bulk read of %q: %w", key, err)
			}
			values[i] = value
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func (l *LocalProvider) GetBytes(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.fullPath(key)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrKeyNotFound(key)
		}
		return nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrPathIsDirectory(key)
	}
	if offset < 0 || offset+length > info.Size() {
		return nil, ErrOutOfRange{Key: key, Offset: offset, Length: length, Size: info.Size()}
	}
	out := make([]byte, length)
	if _, err := file.ReadAt(out, offset); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *LocalProvider) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := l.fullPath(key)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return ErrPathIsDirectory(key)
	}
	if err := l.ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, value, 0o644)
}

func (l *LocalProvider) SetBytes(ctx context.Context, key string, value []byte, offset int64, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if overwrite {
		return l.Set(ctx, key, value)
	}
	path := l.fullPath(key)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return ErrPathIsDirectory(key)
	}
	if err := l.ensureParent(path); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	// WriteAt past EOF zero-pads the gap.
	if _, err := file.WriteAt(value, offset); err != nil {
		return err
	}
	return nil
}

// ensureParent creates the parent directory chain, rejecting key prefixes
// that already exist as leaf files.
func (l *LocalProvider) ensureParent(path string) error {
	dir := filepath.Dir(path)
	probe := dir
	for strings.HasPrefix(probe, l.root) && probe != l.root {
		if info, err := os.Stat(probe); err == nil && !info.IsDir() {
			rel, _ := filepath.Rel(l.root, probe)
			return ErrLeafAtContainerPath(filepath.ToSlash(rel))
		}
		probe = filepath.Dir(probe)
	}
	return os.MkdirAll(dir, 0o755)
}

func (l *LocalProvider) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := l.fullPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrKeyNotFound(key)
		}
		return err
	}
	if info.IsDir() {
		return ErrPathIsDirectory(key)
	}
	return os.Remove(path)
}

func (l *LocalProvider) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (l *LocalProvider) Len(ctx context.Context) (int, error) {
	keys, err := l.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (l *LocalProvider) Flush(ctx context.Context) error {
	return ctx.Err()
}

func (l *LocalProvider) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debugf("clearing local provider at %s", l.root)
	if err := os.RemoveAll(l.root); err != nil {
		return err
	}
	return os.MkdirAll(l.root, 0o755)
}
