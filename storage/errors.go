package storage

import "fmt"

// ErrKeyNotFound indicates the requested key has no value in this provider.
type ErrKeyNotFound string

func (e ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %q", string(e))
}

// ErrPathIsDirectory indicates the key resolves to a container, not a leaf.
type ErrPathIsDirectory string

func (e ErrPathIsDirectory) Error() string {
	return fmt.Sprintf("path is a directory: %q", string(e))
}

// ErrLeafAtContainerPath indicates a parent of the key is a leaf value, so
// the key cannot be created under it.
type ErrLeafAtContainerPath string

func (e ErrLeafAtContainerPath) Error() string {
	return fmt.Sprintf("leaf value at container path: %q", string(e))
}

// ErrOutOfRange indicates a byte-range operation past the stored length.
type ErrOutOfRange struct {
	Key    string
	Offset int64
	Length int64
	Size   int64
}

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf(
		"byte range [%d, %d) out of range for key %q of size %d",
		e.Offset, e.Offset+e.Length, e.Key, e.Size,
	)
}
