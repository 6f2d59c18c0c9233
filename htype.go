package tensorvault

import (
	"fmt"

	"github.com/tensorvault/tensorvault/chunks"
	"github.com/tensorvault/tensorvault/narray"
)

// Htype names an archetype of data that supplies defaults for a new tensor:
// dtype, chunk capacity, and sample compression. Explicit tensor options
// override any default.
const (
	HtypeGeneric    = "generic"
	HtypeImage      = "image"
	HtypeClassLabel = "class_label"

	DefaultHtype = HtypeGeneric
)

const mb = 1 << 20

// DefaultChunkSize is the byte capacity of a chunk unless overridden.
const DefaultChunkSize = 16 * mb

type htypeConfig struct {
	dtype             narray.DType
	chunkSize         int64
	sampleCompression string
}

var htypeDefaults = map[string]htypeConfig{
	HtypeGeneric:    {dtype: narray.Float64, chunkSize: DefaultChunkSize, sampleCompression: chunks.CodecNone},
	HtypeImage:      {dtype: narray.Uint8, chunkSize: DefaultChunkSize, sampleCompression: chunks.CodecNone},
	HtypeClassLabel: {dtype: narray.Int64, chunkSize: DefaultChunkSize, sampleCompression: chunks.CodecNone},
}

func htypeDefaultsFor(htype string) (htypeConfig, error) {
	cfg, ok := htypeDefaults[htype]
	if !ok {
		return htypeConfig{}, fmt.Errorf("unknown htype %q", htype)
	}
	return cfg, nil
}
