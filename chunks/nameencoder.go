package chunks

import (
	"fmt"
	"sort"
)

// nameEntry is one run of the encoder: the chunk's identifier and the index
// of the last sample whose bytes start in or before this chunk.
type nameEntry struct {
	id        uint64
	lastIndex uint64
}

// NameEncoder is a compact run-length structure mapping chunk ordinals to
// chunk identifiers and sample ordinals to the chunk(s) containing them.
//
// Two parallel arrays are maintained: entries[i] = (chunk_id, last_sample
// index attributed to chunk i) and connectivity[i], which is set when the
// sample at entries[i].lastIndex continues into chunk i+1. lastIndex is
// non-decreasing; a continuation chunk adds zero new samples and repeats the
// previous lastIndex.
type NameEncoder struct {
	entries      []nameEntry
	connectivity []bool
}

// NewNameEncoder returns an empty encoder.
func NewNameEncoder() *NameEncoder {
	return &NameEncoder{}
}

// NumChunks returns the number of chunks recorded.
func (e *NameEncoder) NumChunks() int {
	return len(e.entries)
}

// NumSamples returns the number of samples recorded (0 if empty).
func (e *NameEncoder) NumSamples() int {
	if len(e.entries) == 0 {
		return 0
	}
	return int(e.entries[len(e.entries)-1].lastIndex) + 1
}

// NameForChunk returns the name of the chunk at the given ordinal.
func (e *NameEncoder) NameForChunk(ordinal int) (string, error) {
	if ordinal < 0 || ordinal >= len(e.entries) {
		return "", fmt.Errorf("chunk ordinal %d out of bounds for %d chunks", ordinal, len(e.entries))
	}
	return chunkName(e.entries[ordinal].id), nil
}

// LastChunkConnected reports whether the final chunk is marked as continuing
// into a (not yet existing) next chunk.
func (e *NameEncoder) LastChunkConnected() bool {
	if len(e.connectivity) == 0 {
		return false
	}
	return e.connectivity[len(e.connectivity)-1]
}

// AppendChunk records a new chunk holding numSamples new samples.
// numSamples may be zero only when the previous chunk is connected to this
// one (the new chunk is a continuation of a spanning sample). The first
// chunk of an empty encoder must carry at least one sample. Returns the new
// chunk's name.
func (e *NameEncoder) AppendChunk(numSamples int, connectedToNext bool) (string, error) {
	if numSamples < 0 {
		return "", fmt.Errorf("when appending, num samples should be >= 0, got %d", numSamples)
	}
	if len(e.entries) == 0 {
		if numSamples == 0 {
			return "", fmt.Errorf("the first chunk must carry at least one sample")
		}
	} else if numSamples == 0 && !e.LastChunkConnected() {
		return "", fmt.Errorf("num samples can only be 0 when the previous chunk is connected to next")
	}
	id := newChunkID()
	e.appendChunkID(id, numSamples, connectedToNext)
	return chunkName(id), nil
}

// appendChunkID is AppendChunk with a caller-supplied id and no validation;
// the engine pre-generates ids so chunk bytes can be staged to storage
// before any bookkeeping is mutated.
func (e *NameEncoder) appendChunkID(id uint64, numSamples int, connectedToNext bool) {
	var lastIndex uint64
	if len(e.entries) == 0 {
		lastIndex = uint64(numSamples - 1)
	} else {
		lastIndex = e.entries[len(e.entries)-1].lastIndex + uint64(numSamples)
	}
	e.entries = append(e.entries, nameEntry{id: id, lastIndex: lastIndex})
	e.connectivity = append(e.connectivity, connectedToNext)
}

// ExtendChunk attributes numSamples further samples to the final chunk and
// updates its connectivity. The final chunk must exist and must not already
// be connected to a next chunk.
func (e *NameEncoder) ExtendChunk(numSamples int, connectedToNext bool) (string, error) {
	if numSamples <= 0 {
		return "", fmt.Errorf("when extending, num samples should be > 0, got %d", numSamples)
	}
	if len(e.entries) == 0 {
		return "", fmt.Errorf("cannot extend the previous chunk because it doesn't exist")
	}
	if e.LastChunkConnected() {
		return "", fmt.Errorf("cannot extend a chunk that is already connected to next")
	}
	last := &e.entries[len(e.entries)-1]
	last.lastIndex += uint64(numSamples)
	e.connectivity[len(e.connectivity)-1] = connectedToNext
	return chunkName(last.id), nil
}

// GetChunkNames returns, in order, the names of the chunk(s) holding the
// sample at sampleIndex. Negative indices count from the end.
func (e *NameEncoder) GetChunkNames(sampleIndex int) ([]string, error) {
	numSamples := e.NumSamples()
	if numSamples == 0 {
		return nil, fmt.Errorf("index %d is out of bounds for an empty chunk names encoding", sampleIndex)
	}
	if sampleIndex < 0 {
		sampleIndex += numSamples
	}
	if sampleIndex < 0 || sampleIndex >= numSamples {
		return nil, fmt.Errorf("index %d is out of bounds for %d samples", sampleIndex, numSamples)
	}

	target := uint64(sampleIndex)
	idx := sort.Search(len(e.entries), func(i int) bool {
		return e.entries[i].lastIndex >= target
	})

	names := []string{chunkName(e.entries[idx].id)}
	// The sample may continue into following chunks.
	for e.entries[idx].lastIndex == target && e.connectivity[idx] && idx+1 < len(e.entries) {
		idx++
		names = append(names, chunkName(e.entries[idx].id))
	}
	return names, nil
}

// Bytes serializes the encoder as a fixed-width row per chunk:
// chunk id (u64), last sample index (u48), connectivity (u8).
func (e *NameEncoder) Bytes() []byte {
	out := make([]byte, 0, 8+len(e.entries)*15)
	out = append(out, uint64tob(uint64(len(e.entries)))...)
	for i, entry := range e.entries {
		out = append(out, uint64tob(entry.id)...)
		out = append(out, uint48tob(entry.lastIndex)...)
		if e.connectivity[i] {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// NameEncoderFromBytes parses a serialized encoder.
func NameEncoderFromBytes(buf []byte) (*NameEncoder, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("chunk names encoding too short: %d bytes", len(buf))
	}
	count := btoUint64(buf[:8])
	buf = buf[8:]
	if uint64(len(buf)) != count*15 {
		return nil, fmt.Errorf("chunk names encoding corrupt: %d rows but %d payload bytes", count, len(buf))
	}
	e := NewNameEncoder()
	for i := uint64(0); i < count; i++ {
		row := buf[i*15 : (i+1)*15]
		e.entries = append(e.entries, nameEntry{
			id:        btoUint64(row[:8]),
			lastIndex: btoUint48(row[8:14]),
		})
		e.connectivity = append(e.connectivity, row[14] != 0)
	}
	return e, nil
}
