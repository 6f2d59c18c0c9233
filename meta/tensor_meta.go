package meta

import (
	"context"
	"errors"
	"fmt"

	"github.com/tensorvault/tensorvault/narray"
	"github.com/tensorvault/tensorvault/storage"
)

// TensorMeta is the persisted schema of one tensor: the declared dtype, the
// sample count, the element-wise min/max of per-sample shapes, and the chunk
// byte capacity. MinShape and MaxShape are equal for fixed-shape tensors and
// nil until the first sample fixes the rank.
type TensorMeta struct {
	Dtype             string   `json:"dtype"`
	Length            int64    `json:"length"`
	MinShape          []int    `json:"min_shape"`
	MaxShape          []int    `json:"max_shape"`
	ChunkSize         int64    `json:"chunk_size"`
	Htype             string   `json:"htype,omitempty"`
	SampleCompression string   `json:"sample_compression,omitempty"`
	ClassNames        []string `json:"class_names,omitempty"`
}

// Validate checks the meta document is well-formed before it is written.
func (tm *TensorMeta) Validate() error {
	if !narray.DType(tm.Dtype).Valid() {
		return fmt.Errorf("tensor meta has unknown dtype %q", tm.Dtype)
	}
	if tm.ChunkSize <= 0 {
		return fmt.Errorf("tensor meta has non-positive chunk_size %d", tm.ChunkSize)
	}
	if tm.Length < 0 {
		return fmt.Errorf("tensor meta has negative length %d", tm.Length)
	}
	return nil
}

// IsDynamic reports whether recorded samples vary in shape.
func (tm *TensorMeta) IsDynamic() bool {
	for d := range tm.MinShape {
		if tm.MinShape[d] != tm.MaxShape[d] {
			return true
		}
	}
	return false
}

// CheckCompatible validates one candidate sample against the schema: the
// dtype must match exactly and, once the first sample has fixed the rank,
// every later sample must have the same rank. Per-dimension sizes may vary.
func (tm *TensorMeta) CheckCompatible(dtype narray.DType, sampleShape []int) error {
	if tm.Dtype != string(dtype) {
		return ErrTensorMetaMismatch{Field: "dtype", Expected: tm.Dtype, Got: string(dtype)}
	}
	if tm.Length == 0 && tm.MinShape == nil {
		return nil
	}
	if len(tm.MinShape) != len(sampleShape) {
		return ErrTensorMetaMismatch{Field: "min_shape", Expected: tm.MinShape, Got: sampleShape}
	}
	if len(tm.MaxShape) != len(sampleShape) {
		return ErrTensorMetaMismatch{Field: "max_shape", Expected: tm.MaxShape, Got: sampleShape}
	}
	return nil
}

// RecordSample folds one appended sample into the meta: bumps the length and
// widens the shape bounds. The first sample fixes min = max = its shape.
func (tm *TensorMeta) RecordSample(sampleShape []int) {
	tm.Length++
	if tm.MinShape == nil {
		tm.MinShape = append([]int(nil), sampleShape...)
		tm.MaxShape = append([]int(nil), sampleShape...)
		return
	}
	for d := range sampleShape {
		if sampleShape[d] < tm.MinShape[d] {
			tm.MinShape[d] = sampleShape[d]
		}
		if sampleShape[d] > tm.MaxShape[d] {
			tm.MaxShape[d] = sampleShape[d]
		}
	}
}

// Save writes the tensor meta document.
func (tm *TensorMeta) Save(ctx context.Context, provider storage.Provider, tensor string) error {
	buf, err := json.Marshal(tm)
	if err != nil {
		return fmt.Errorf("failed to encode tensor meta for %q: %w", tensor, err)
	}
	return provider.Set(ctx, TensorMetaKey(tensor), buf)
}

// LoadTensorMeta reads the tensor meta document.
func LoadTensorMeta(ctx context.Context, provider storage.Provider, tensor string) (*TensorMeta, error) {
	buf, err := provider.Get(ctx, TensorMetaKey(tensor))
	if err != nil {
		return nil, err
	}
	tm := &TensorMeta{}
	if err := json.Unmarshal(buf, tm); err != nil {
		return nil, fmt.Errorf("failed to decode tensor meta for %q: %w", tensor, err)
	}
	return tm, nil
}

// TensorExists reports whether a tensor meta document is present. A tensor
// exists iff its meta does.
func TensorExists(ctx context.Context, provider storage.Provider, tensor string) (bool, error) {
	_, err := provider.Get(ctx, TensorMetaKey(tensor))
	if err != nil {
		var notFound storage.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
