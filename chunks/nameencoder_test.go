package chunks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameEncoderSingleChunk(t *testing.T) {
	e := NewNameEncoder()
	require.Zero(t, e.NumChunks())
	require.Zero(t, e.NumSamples())

	name, err := e.AppendChunk(3, false)
	require.NoError(t, err)
	require.NotEmpty(t, name)
	require.Equal(t, 1, e.NumChunks())
	require.Equal(t, 3, e.NumSamples())

	for i := 0; i < 3; i++ {
		names, err := e.GetChunkNames(i)
		require.NoError(t, err)
		require.Equal(t, []string{name}, names)
	}
}

func TestNameEncoderExtend(t *testing.T) {
	e := NewNameEncoder()
	first, err := e.AppendChunk(1, false)
	require.NoError(t, err)

	got, err := e.ExtendChunk(2, false)
	require.NoError(t, err)
	require.Equal(t, first, got)
	require.Equal(t, 1, e.NumChunks())
	require.Equal(t, 3, e.NumSamples())
}

func TestNameEncoderSpanningSample(t *testing.T) {
	e := NewNameEncoder()

	// Two whole samples in the first chunk, then a third sample that
	// spills across two continuation chunks.
	first, err := e.AppendChunk(2, false)
	require.NoError(t, err)
	_, err = e.ExtendChunk(1, true)
	require.NoError(t, err)
	second, err := e.AppendChunk(0, true)
	require.NoError(t, err)
	third, err := e.AppendChunk(0, false)
	require.NoError(t, err)

	require.Equal(t, 3, e.NumChunks())
	require.Equal(t, 3, e.NumSamples())

	names, err := e.GetChunkNames(0)
	require.NoError(t, err)
	require.Equal(t, []string{first}, names)

	// Sample 2 spans all three chunks.
	names, err = e.GetChunkNames(2)
	require.NoError(t, err)
	require.Equal(t, []string{first, second, third}, names)

	// A fourth sample lands on the terminal chunk of the span.
	_, err = e.ExtendChunk(1, false)
	require.NoError(t, err)
	names, err = e.GetChunkNames(3)
	require.NoError(t, err)
	require.Equal(t, []string{third}, names)

	// Negative indices count from the end.
	names, err = e.GetChunkNames(-2)
	require.NoError(t, err)
	require.Equal(t, []string{first, second, third}, names)
}

func TestNameEncoderValidation(t *testing.T) {
	e := NewNameEncoder()

	// The first chunk must carry at least one sample.
	_, err := e.AppendChunk(0, false)
	require.Error(t, err)

	// Extending a non-existent chunk fails.
	_, err = e.ExtendChunk(1, false)
	require.Error(t, err)

	_, err = e.AppendChunk(1, true)
	require.NoError(t, err)

	// A chunk already connected to next cannot be extended.
	_, err = e.ExtendChunk(1, false)
	require.Error(t, err)

	// Zero new samples is only valid after a connected chunk.
	_, err = e.AppendChunk(0, false)
	require.NoError(t, err)
	_, err = e.AppendChunk(0, false)
	require.Error(t, err)

	// Out of bounds on an empty encoder.
	empty := NewNameEncoder()
	_, err = empty.GetChunkNames(0)
	require.Error(t, err)
}

func TestNameEncoderRoundTrip(t *testing.T) {
	e := NewNameEncoder()
	_, err := e.AppendChunk(5, false)
	require.NoError(t, err)
	_, err = e.ExtendChunk(1, true)
	require.NoError(t, err)
	_, err = e.AppendChunk(0, false)
	require.NoError(t, err)
	_, err = e.ExtendChunk(4, false)
	require.NoError(t, err)

	decoded, err := NameEncoderFromBytes(e.Bytes())
	require.NoError(t, err)
	require.Equal(t, e.NumChunks(), decoded.NumChunks())
	require.Equal(t, e.NumSamples(), decoded.NumSamples())
	for i := 0; i < e.NumSamples(); i++ {
		want, err := e.GetChunkNames(i)
		require.NoError(t, err)
		got, err := decoded.GetChunkNames(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestChunkNameFormat(t *testing.T) {
	// Names are lowercase hex with no prefix and round-trip to the id.
	id := newChunkID()
	name := chunkName(id)
	require.NotContains(t, name, "0x")
	back, err := chunkIDFromName(name)
	require.NoError(t, err)
	require.Equal(t, id, back)

	_, err = chunkIDFromName("not-hex")
	require.Error(t, err)
}
