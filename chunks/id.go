// Package chunks packs variable-length samples into fixed-capacity chunks
// and maintains the structures that resolve a sample ordinal back to a byte
// region: the per-sample index map and the run-length chunk-name encoder.
package chunks

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// newChunkID returns a fresh 64-bit chunk identifier: the upper 64 bits of a
// random UUID. Identifiers are content-independent.
func newChunkID() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8])
}

// chunkName renders a chunk id as lowercase hex with no prefix.
func chunkName(id uint64) string {
	return strconv.FormatUint(id, 16)
}

// chunkIDFromName parses a lowercase-hex chunk name.
func chunkIDFromName(name string) (uint64, error) {
	id, err := strconv.ParseUint(name, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk name %q: %w", name, err)
	}
	return id, nil
}
