package chunks

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/tensorvault/tensorvault/meta"
	"github.com/tensorvault/tensorvault/narray"
	"github.com/tensorvault/tensorvault/storage"
)

var log = logging.Logger("tensorvault/chunks")

// Engine packs one tensor's samples into fixed-capacity chunks and resolves
// sample ordinals back to byte regions. It holds the tensor's index map and
// name encoder in memory; Commit persists them. Chunk bytes are always
// staged to storage before any in-memory structure is mutated, and the
// tensor meta (written by the caller, last) is the atomicity point of a
// write batch.
//
// Engines are single-writer: concurrent writers to the same tensor produce
// undefined index state.
type Engine struct {
	tensor    string
	provider  storage.Provider
	chunkSize int64
	codec     Codec

	im  *IndexMap
	enc *NameEncoder
}

// OpenEngine loads (or initializes) the chunk engine for a tensor. The index
// map and chunk-name encoder are read through the provider; a missing pair
// means an empty tensor.
func OpenEngine(ctx context.Context, provider storage.Provider, tensor string, tm *meta.TensorMeta) (*Engine, error) {
	codec, err := CodecByName(tm.SampleCompression)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", tensor, err)
	}
	e := &Engine{
		tensor:    tensor,
		provider:  provider,
		chunkSize: tm.ChunkSize,
		codec:     codec,
		im:        NewIndexMap(),
		enc:       NewNameEncoder(),
	}

	imBuf, imErr := provider.Get(ctx, meta.IndexMapKey(tensor))
	encBuf, encErr := provider.Get(ctx, meta.ChunkNamesKey(tensor))
	var notFound storage.ErrKeyNotFound
	imMissing := errors.As(imErr, &notFound)
	encMissing := errors.As(encErr, &notFound)
	switch {
	case imMissing && encMissing:
		return e, nil
	case imErr != nil:
		return nil, imErr
	case encErr != nil:
		return nil, encErr
	}

	if e.im, err = IndexMapFromBytes(imBuf); err != nil {
		return nil, fmt.Errorf("tensor %q: %w", tensor, err)
	}
	if e.enc, err = NameEncoderFromBytes(encBuf); err != nil {
		return nil, fmt.Errorf("tensor %q: %w", tensor, err)
	}
	if e.im.Len() != e.enc.NumSamples() {
		return nil, fmt.Errorf(
			"tensor %q: index map has %d samples but chunk names encode %d",
			tensor, e.im.Len(), e.enc.NumSamples(),
		)
	}
	return e, nil
}

// NumSamples returns the number of samples written so far (committed or
// staged in this engine).
func (e *Engine) NumSamples() int {
	return e.im.Len()
}

// lastChunkRoom returns the final chunk's ordinal, its used byte count, and
// whether it has room for more bytes.
func (e *Engine) lastChunkRoom() (ordinal int, used int64, hasRoom bool) {
	last, ok := e.im.Last()
	if !ok {
		return 0, 0, false
	}
	used = int64(last.EndByte)
	return int(last.EndChunk), used, used < e.chunkSize
}

// WriteSample appends one sample's payload. The payload is compressed with
// the tensor's codec, split across the final chunk's free space and as many
// new chunks as needed, and recorded as one index-map entry. Storage is
// written before bookkeeping so a failed call leaves the tensor unchanged
// (modulo unreachable orphan bytes).
func (e *Engine) WriteSample(ctx context.Context, payload []byte, shape []int) error {
	buf, err := e.codec.Compress(payload)
	if err != nil {
		return fmt.Errorf("tensor %q: compressing sample: %w", e.tensor, err)
	}

	lastOrdinal, lastUsed, hasRoom := e.lastChunkRoom()

	if hasRoom && int64(len(buf)) <= e.chunkSize-lastUsed {
		// The whole sample fits in the final chunk.
		name, err := e.enc.NameForChunk(lastOrdinal)
		if err != nil {
			return err
		}
		if err := e.provider.SetBytes(ctx, meta.ChunkKey(e.tensor, name), buf, lastUsed, false); err != nil {
			return err
		}
		if _, err := e.enc.ExtendChunk(1, false); err != nil {
			return err
		}
		e.im.Append(IndexEntry{
			StartChunk: uint64(lastOrdinal),
			EndChunk:   uint64(lastOrdinal),
			StartByte:  uint32(lastUsed),
			EndByte:    uint32(lastUsed + int64(len(buf))),
			Shape:      shape,
		})
		return nil
	}

	// The sample spills into new chunks. It may start in the final chunk's
	// free tail, or on a fresh chunk boundary.
	var head, rest []byte
	var startChunk int
	var startByte int64
	if hasRoom {
		startChunk = lastOrdinal
		startByte = lastUsed
		head = buf[:int(e.chunkSize-lastUsed)]
		rest = buf[int(e.chunkSize-lastUsed):]
	} else {
		startChunk = e.enc.NumChunks()
		startByte = 0
		rest = buf
	}

	var pieces [][]byte
	for int64(len(rest)) > e.chunkSize {
		pieces = append(pieces, rest[:int(e.chunkSize)])
		rest = rest[int(e.chunkSize):]
	}
	pieces = append(pieces, rest)

	newIDs := make([]uint64, len(pieces))
	for i := range newIDs {
		newIDs[i] = newChunkID()
	}

	// Stage all chunk bytes first.
	if head != nil {
		name, err := e.enc.NameForChunk(lastOrdinal)
		if err != nil {
			return err
		}
		if err := e.provider.SetBytes(ctx, meta.ChunkKey(e.tensor, name), head, startByte, false); err != nil {
			return err
		}
	}
	for i, piece := range pieces {
		if err := e.provider.Set(ctx, meta.ChunkKey(e.tensor, chunkName(newIDs[i])), piece); err != nil {
			return err
		}
	}

	// Then commit the bookkeeping. The sample is counted on its first
	// chunk; continuation chunks repeat the sample index with their
	// connectivity bits linking the run.
	if head != nil {
		if _, err := e.enc.ExtendChunk(1, true); err != nil {
			return err
		}
		for i := range pieces {
			connected := i < len(pieces)-1
			e.enc.appendChunkID(newIDs[i], 0, connected)
		}
	} else {
		for i := range pieces {
			numSamples := 0
			if i == 0 {
				numSamples = 1
			}
			connected := i < len(pieces)-1
			e.enc.appendChunkID(newIDs[i], numSamples, connected)
		}
	}

	endChunk := startChunk + len(pieces)
	if head == nil {
		endChunk = startChunk + len(pieces) - 1
	}
	e.im.Append(IndexEntry{
		StartChunk: uint64(startChunk),
		EndChunk:   uint64(endChunk),
		StartByte:  uint32(startByte),
		EndByte:    uint32(len(pieces[len(pieces)-1])),
		Shape:      shape,
	})
	log.Debugf(
		"tensor %s: sample %d spans chunks %d..%d",
		e.tensor, e.im.Len()-1, startChunk, endChunk,
	)
	return nil
}

// Commit persists the index map and chunk-name encoder. Callers write the
// tensor meta afterwards; its length is what makes new samples visible.
func (e *Engine) Commit(ctx context.Context) error {
	if err := e.provider.Set(ctx, meta.IndexMapKey(e.tensor), e.im.Bytes()); err != nil {
		return err
	}
	return e.provider.Set(ctx, meta.ChunkNamesKey(e.tensor), e.enc.Bytes())
}

// Entry returns the index-map entry for a sample ordinal.
func (e *Engine) Entry(ordinal int) (IndexEntry, error) {
	return e.im.Entry(ordinal)
}

// ReadSample loads one sample and reinterprets it as an array of the given
// dtype with the entry's shape.
func (e *Engine) ReadSample(ctx context.Context, ordinal int, dtype narray.DType) (*narray.Array, error) {
	entry, err := e.im.Entry(ordinal)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if entry.StartChunk == entry.EndChunk {
		name, err := e.enc.NameForChunk(int(entry.StartChunk))
		if err != nil {
			return nil, err
		}
		raw, err = e.provider.GetBytes(
			ctx, meta.ChunkKey(e.tensor, name),
			int64(entry.StartByte), int64(entry.EndByte-entry.StartByte),
		)
		if err != nil {
			return nil, err
		}
	} else {
		raw, err = e.readSpanning(ctx, entry)
		if err != nil {
			return nil, err
		}
	}

	payload, err := e.codec.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: decompressing sample %d: %w", e.tensor, ordinal, err)
	}
	arr, err := narray.New(dtype, entry.Shape, payload)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: sample %d: %w", e.tensor, ordinal, err)
	}
	return arr, nil
}

// readSpanning assembles a sample that crosses chunk boundaries: the tail of
// its first chunk, every intermediate chunk whole, and the head of its last.
func (e *Engine) readSpanning(ctx context.Context, entry IndexEntry) ([]byte, error) {
	firstName, err := e.enc.NameForChunk(int(entry.StartChunk))
	if err != nil {
		return nil, err
	}
	lastName, err := e.enc.NameForChunk(int(entry.EndChunk))
	if err != nil {
		return nil, err
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	first, err := e.provider.GetBytes(
		ctx, meta.ChunkKey(e.tensor, firstName),
		int64(entry.StartByte), e.chunkSize-int64(entry.StartByte),
	)
	if err != nil {
		return nil, err
	}
	bb.B = append(bb.B, first...)

	if entry.EndChunk-entry.StartChunk > 1 {
		middleKeys := make([]string, 0, entry.EndChunk-entry.StartChunk-1)
		for ordinal := entry.StartChunk + 1; ordinal < entry.EndChunk; ordinal++ {
			name, err := e.enc.NameForChunk(int(ordinal))
			if err != nil {
				return nil, err
			}
			middleKeys = append(middleKeys, meta.ChunkKey(e.tensor, name))
		}
		middles, err := e.provider.GetMany(ctx, middleKeys)
		if err != nil {
			return nil, err
		}
		for _, middle := range middles {
			bb.B = append(bb.B, middle...)
		}
	}

	tail, err := e.provider.GetBytes(
		ctx, meta.ChunkKey(e.tensor, lastName), 0, int64(entry.EndByte),
	)
	if err != nil {
		return nil, err
	}
	bb.B = append(bb.B, tail...)

	out := make([]byte, len(bb.B))
	copy(out, bb.B)
	return out, nil
}
