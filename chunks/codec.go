package chunks

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses sample payloads before they are chunked. Codecs are
// pluggable; the tensor meta records which one was used.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

const (
	CodecNone = "none"
	CodecZstd = "zstd"
)

// CodecByName resolves a codec name from a tensor meta. The empty string
// means no compression.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecNone:
		return noneCodec{}, nil
	case CodecZstd:
		return newZstdCodec()
	default:
		return nil, fmt.Errorf("unknown sample compression %q", name)
	}
}

type noneCodec struct{}

func (noneCodec) Name() string                          { return CodecNone }
func (noneCodec) Compress(src []byte) ([]byte, error)   { return src, nil }
func (noneCodec) Decompress(src []byte) ([]byte, error) { return src, nil }

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (z *zstdCodec) Name() string { return CodecZstd }

func (z *zstdCodec) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, nil), nil
}

func (z *zstdCodec) Decompress(src []byte) ([]byte, error) {
	return z.dec.DecodeAll(src, nil)
}
