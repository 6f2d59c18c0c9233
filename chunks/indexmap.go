package chunks

import "fmt"

// IndexEntry maps one sample ordinal to its byte region. A sample occupies
// the bytes [StartByte, chunk end) of chunk StartChunk, the whole of any
// chunk strictly between StartChunk and EndChunk, and [0, EndByte) of chunk
// EndChunk. For a single-chunk sample StartChunk == EndChunk and the region
// is [StartByte, EndByte).
type IndexEntry struct {
	StartChunk uint64
	EndChunk   uint64
	StartByte  uint32
	EndByte    uint32
	Shape      []int
}

// NumChunks returns how many chunks the sample spans.
func (en IndexEntry) NumChunks() int {
	return int(en.EndChunk-en.StartChunk) + 1
}

// IndexMap holds one IndexEntry per sample ordinal.
type IndexMap struct {
	entries []IndexEntry
}

// NewIndexMap returns an empty index map.
func NewIndexMap() *IndexMap {
	return &IndexMap{}
}

func (im *IndexMap) Len() int {
	return len(im.entries)
}

// Entry returns the entry for the given sample ordinal.
func (im *IndexMap) Entry(ordinal int) (IndexEntry, error) {
	if ordinal < 0 || ordinal >= len(im.entries) {
		return IndexEntry{}, fmt.Errorf("sample ordinal %d out of bounds for %d samples", ordinal, len(im.entries))
	}
	return im.entries[ordinal], nil
}

// Append records the entry for the next sample ordinal.
func (im *IndexMap) Append(entry IndexEntry) {
	im.entries = append(im.entries, entry)
}

// Last returns the final entry, if any.
func (im *IndexMap) Last() (IndexEntry, bool) {
	if len(im.entries) == 0 {
		return IndexEntry{}, false
	}
	return im.entries[len(im.entries)-1], true
}

// Bytes serializes the map: a u64 entry count, then per entry
// startChunk (u48), endChunk (u48), startByte (u32), endByte (u32),
// rank (u8), and each dimension as u48.
func (im *IndexMap) Bytes() []byte {
	out := append([]byte(nil), uint64tob(uint64(len(im.entries)))...)
	for _, entry := range im.entries {
		out = append(out, uint48tob(entry.StartChunk)...)
		out = append(out, uint48tob(entry.EndChunk)...)
		out = append(out, uint32tob(entry.StartByte)...)
		out = append(out, uint32tob(entry.EndByte)...)
		out = append(out, byte(len(entry.Shape)))
		for _, dim := range entry.Shape {
			out = append(out, uint48tob(uint64(dim))...)
		}
	}
	return out
}

// IndexMapFromBytes parses a serialized index map.
func IndexMapFromBytes(buf []byte) (*IndexMap, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("index map encoding too short: %d bytes", len(buf))
	}
	count := btoUint64(buf[:8])
	buf = buf[8:]
	im := NewIndexMap()
	for i := uint64(0); i < count; i++ {
		if len(buf) < 21 {
			return nil, fmt.Errorf("index map encoding corrupt: truncated entry %d", i)
		}
		entry := IndexEntry{
			StartChunk: btoUint48(buf[0:6]),
			EndChunk:   btoUint48(buf[6:12]),
			StartByte:  btoUint32(buf[12:16]),
			EndByte:    btoUint32(buf[16:20]),
		}
		rank := int(buf[20])
		buf = buf[21:]
		if len(buf) < rank*6 {
			return nil, fmt.Errorf("index map encoding corrupt: truncated shape of entry %d", i)
		}
		if rank > 0 {
			entry.Shape = make([]int, rank)
			for d := 0; d < rank; d++ {
				entry.Shape[d] = int(btoUint48(buf[d*6 : (d+1)*6]))
			}
		}
		buf = buf[rank*6:]
		im.entries = append(im.entries, entry)
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("index map encoding corrupt: %d trailing bytes", len(buf))
	}
	return im, nil
}
