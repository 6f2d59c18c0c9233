package meta_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorvault/tensorvault/meta"
	"github.com/tensorvault/tensorvault/narray"
	"github.com/tensorvault/tensorvault/storage"
)

func TestKeyLayout(t *testing.T) {
	require.Equal(t, "dataset_meta.json", meta.DatasetMetaKey())
	require.Equal(t, "image/tensor_meta.json", meta.TensorMetaKey("image"))
	require.Equal(t, "image/index_map", meta.IndexMapKey("image"))
	require.Equal(t, "image/chunk_names", meta.ChunkNamesKey("image"))
	require.Equal(t, "image/chunks/3fa9c1d2", meta.ChunkKey("image", "3fa9c1d2"))
}

func TestDatasetMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewMemoryProvider()

	exists, err := meta.DatasetExists(ctx, provider)
	require.NoError(t, err)
	require.False(t, exists)

	dm := meta.NewDatasetMeta()
	dm.Tensors = append(dm.Tensors, "image", "label")
	require.NoError(t, dm.Save(ctx, provider))

	exists, err = meta.DatasetExists(ctx, provider)
	require.NoError(t, err)
	require.True(t, exists)

	loaded, err := meta.LoadDatasetMeta(ctx, provider)
	require.NoError(t, err)
	require.Equal(t, []string{"image", "label"}, loaded.Tensors)
	require.True(t, loaded.HasTensor("image"))
	require.False(t, loaded.HasTensor("audio"))
}

func TestTensorMetaValidate(t *testing.T) {
	tm := &meta.TensorMeta{Dtype: "uint8", ChunkSize: 1 << 20}
	require.NoError(t, tm.Validate())

	require.Error(t, (&meta.TensorMeta{Dtype: "uint9", ChunkSize: 1}).Validate())
	require.Error(t, (&meta.TensorMeta{Dtype: "uint8", ChunkSize: 0}).Validate())
	require.Error(t, (&meta.TensorMeta{Dtype: "uint8", ChunkSize: 1, Length: -1}).Validate())
}

func TestTensorMetaCompatibility(t *testing.T) {
	tm := &meta.TensorMeta{Dtype: "uint8", ChunkSize: 1 << 20}

	// Any rank is fine for the first sample; dtype is always strict.
	require.NoError(t, tm.CheckCompatible(narray.Uint8, []int{28, 28}))
	err := tm.CheckCompatible(narray.Float64, []int{28, 28})
	var mismatch meta.ErrTensorMetaMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "dtype", mismatch.Field)
	require.Equal(t, "uint8", mismatch.Expected)
	require.Equal(t, "float64", mismatch.Got)

	// After the first sample the rank is fixed but dimensions may vary.
	tm.RecordSample([]int{28, 28})
	require.NoError(t, tm.CheckCompatible(narray.Uint8, []int{36, 11}))
	err = tm.CheckCompatible(narray.Uint8, []int{28, 28, 3})
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "min_shape", mismatch.Field)
}

func TestTensorMetaRecordSample(t *testing.T) {
	tm := &meta.TensorMeta{Dtype: "float64", ChunkSize: 1 << 20}
	tm.RecordSample([]int{28, 28})
	require.Equal(t, int64(1), tm.Length)
	require.Equal(t, []int{28, 28}, tm.MinShape)
	require.Equal(t, []int{28, 28}, tm.MaxShape)
	require.False(t, tm.IsDynamic())

	tm.RecordSample([]int{36, 11})
	tm.RecordSample([]int{29, 10})
	require.Equal(t, int64(3), tm.Length)
	require.Equal(t, []int{28, 10}, tm.MinShape)
	require.Equal(t, []int{36, 28}, tm.MaxShape)
	require.True(t, tm.IsDynamic())
}

func TestTensorMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewMemoryProvider()

	exists, err := meta.TensorExists(ctx, provider, "image")
	require.NoError(t, err)
	require.False(t, exists)

	tm := &meta.TensorMeta{
		Dtype:             "uint8",
		ChunkSize:         1 << 20,
		Htype:             "image",
		SampleCompression: "zstd",
		ClassNames:        []string{"cat", "dog"},
	}
	tm.RecordSample([]int{4, 4})
	require.NoError(t, tm.Save(ctx, provider, "image"))

	exists, err = meta.TensorExists(ctx, provider, "image")
	require.NoError(t, err)
	require.True(t, exists)

	loaded, err := meta.LoadTensorMeta(ctx, provider, "image")
	require.NoError(t, err)
	require.Equal(t, tm, loaded)
}
