package tensorvault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	tensorvault "github.com/tensorvault/tensorvault"
	"github.com/tensorvault/tensorvault/index"
	"github.com/tensorvault/tensorvault/meta"
	"github.com/tensorvault/tensorvault/narray"
	"github.com/tensorvault/tensorvault/storage"
)

func openMemoryDataset(t *testing.T) *tensorvault.Dataset {
	t.Helper()
	ds, err := tensorvault.OpenStorage(context.Background(), storage.NewMemoryProvider())
	require.NoError(t, err)
	return ds
}

func TestPersistWithLocal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ds, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	image, err := ds.CreateTensor(ctx, "image", tensorvault.HtypeGeneric)
	require.NoError(t, err)
	require.NoError(t, image.Extend(ctx, narray.Ones(narray.Float64, 4, 64, 64)))

	// Before any flush a fresh dataset over the same root sees nothing:
	// the writes are dirty in the first dataset's cache chain.
	ds2, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	n, err := ds2.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	_, err = ds2.Tensor("image")
	var missing tensorvault.ErrTensorDoesNotExist
	require.ErrorAs(t, err, &missing)

	// Closing flushes on every exit path.
	require.NoError(t, ds.Close())

	ds3, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	defer ds3.Close()
	n, err = ds3.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	image3, err := ds3.Tensor("image")
	require.NoError(t, err)
	shape, err := image3.Shape(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{64, 64}, shape.Lower)
	require.Equal(t, []int{64, 64}, shape.Upper)
	require.False(t, shape.IsDynamic())

	arr, err := image3.Numpy(ctx)
	require.NoError(t, err)
	require.True(t, narray.Equal(narray.Ones(narray.Float64, 4, 64, 64), arr))
}

func TestAppendThenReadWithoutFlush(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)
	tensor, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)

	require.NoError(t, tensor.Append(ctx, narray.Ones(narray.Float64, 2, 2)))
	// Reads through the same chain see the sample with no flush in between.
	arr, err := tensor.Numpy(ctx)
	require.NoError(t, err)
	require.True(t, narray.Equal(narray.Ones(narray.Float64, 1, 2, 2), arr))
}

func TestDynamicShapes(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)
	tensor, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)

	require.NoError(t, tensor.Extend(ctx, narray.Ones(narray.Float64, 32, 28, 28)))
	require.NoError(t, tensor.Extend(ctx, narray.Ones(narray.Float64, 10, 36, 11)))
	require.NoError(t, tensor.Append(ctx, narray.Ones(narray.Float64, 29, 10)))

	n, err := tensor.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 43, n)

	shape, err := tensor.Shape(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{28, 10}, shape.Lower)
	require.Equal(t, []int{36, 28}, shape.Upper)
	require.True(t, shape.IsDynamic())

	// Heterogeneous shapes cannot stack.
	_, err = tensor.Numpy(ctx)
	var dynamic tensorvault.ErrDynamicTensor
	require.ErrorAs(t, err, &dynamic)
	require.Equal(t, "t", string(dynamic))

	samples, err := tensor.NumpyList(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 43)
	for i, sample := range samples {
		switch {
		case i < 32:
			require.True(t, narray.Equal(narray.Ones(narray.Float64, 28, 28), sample))
		case i < 42:
			require.True(t, narray.Equal(narray.Ones(narray.Float64, 36, 11), sample))
		default:
			require.True(t, narray.Equal(narray.Ones(narray.Float64, 29, 10), sample))
		}
	}
}

func TestScalarSamples(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)
	tensor, err := ds.CreateTensor(
		ctx, "t", tensorvault.HtypeGeneric, tensorvault.WithDtype(narray.Int64),
	)
	require.NoError(t, err)

	require.NoError(t, tensor.Append(ctx, narray.Scalar(5)))
	require.NoError(t, tensor.Append(ctx, narray.Scalar(10)))
	require.NoError(t, tensor.Append(ctx, narray.Scalar(-99)))
	require.NoError(t, tensor.Extend(ctx, narray.FromInt64s([]int64{10, 1, 4})))
	require.NoError(t, tensor.Extend(ctx, narray.FromInt64s([]int64{1})))

	n, err := tensor.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	arr, err := tensor.Numpy(ctx)
	require.NoError(t, err)
	values, err := arr.Int64s()
	require.NoError(t, err)
	require.Equal(t, []int64{5, 10, -99, 10, 1, 4, 1}, values)
}

func TestSliceComposition(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)
	// A chunk capacity just above the sample size forces samples to cross
	// chunk boundaries.
	tensor, err := ds.CreateTensor(
		ctx, "data", tensorvault.HtypeGeneric,
		tensorvault.WithDtype(narray.Int64), tensorvault.WithChunkSize(40000),
	)
	require.NoError(t, err)

	data, err := narray.Arange(64 * 16 * 16 * 16).Reshape(64, 16, 16, 16)
	require.NoError(t, err)
	require.NoError(t, tensor.Extend(ctx, data))

	full := func(n int) []int {
		coords := make([]int, n)
		for i := range coords {
			coords[i] = i
		}
		return coords
	}

	t.Run("nested slices and integer", func(t *testing.T) {
		got, err := tensor.View(
			index.Range(30, 40), index.All(), index.Range(8, 11), index.At(4),
		).Numpy(ctx)
		require.NoError(t, err)

		want, err := data.Gather([]narray.AxisPick{
			{Coords: []int{30, 31, 32, 33, 34, 35, 36, 37, 38, 39}},
			{Coords: full(16)},
			{Coords: []int{8, 9, 10}},
			{Coords: []int{4}, Collapse: true},
		})
		require.NoError(t, err)
		require.Equal(t, []int{10, 16, 3}, got.Shape())
		require.True(t, narray.Equal(want, got))
	})

	t.Run("list of ordinals", func(t *testing.T) {
		got, err := tensor.View(index.Pick(0, 1, 2, 5, 6, 10, 60)).Numpy(ctx)
		require.NoError(t, err)

		want, err := data.Gather([]narray.AxisPick{
			{Coords: []int{0, 1, 2, 5, 6, 10, 60}},
			{Coords: full(16)},
			{Coords: full(16)},
			{Coords: full(16)},
		})
		require.NoError(t, err)
		require.True(t, narray.Equal(want, got))
	})

	t.Run("tuple at dataset level", func(t *testing.T) {
		view := ds.View(index.Pick(0, 1, 6, 10, 15), index.All())
		viewTensor, err := view.Tensor("data")
		require.NoError(t, err)
		got, err := viewTensor.Numpy(ctx)
		require.NoError(t, err)

		want, err := data.Gather([]narray.AxisPick{
			{Coords: []int{0, 1, 6, 10, 15}},
			{Coords: full(16)},
			{Coords: full(16)},
			{Coords: full(16)},
		})
		require.NoError(t, err)
		require.True(t, narray.Equal(want, got))
	})

	t.Run("integer ordinal drops the batch axis", func(t *testing.T) {
		got, err := tensor.View(index.At(7)).Numpy(ctx)
		require.NoError(t, err)
		require.Equal(t, []int{16, 16, 16}, got.Shape())

		want, err := data.Row(7)
		require.NoError(t, err)
		require.True(t, narray.Equal(want, got))
	})
}

func TestDtypeMismatchLeavesTensorEmpty(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)
	tensor, err := ds.CreateTensor(
		ctx, "t", tensorvault.HtypeGeneric, tensorvault.WithDtype(narray.Uint8),
	)
	require.NoError(t, err)

	err = tensor.Append(ctx, narray.Ones(narray.Float64, 100))
	var mismatch meta.ErrTensorMetaMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "dtype", mismatch.Field)
	require.Equal(t, "uint8", mismatch.Expected)
	require.Equal(t, "float64", mismatch.Got)

	n, err := tensor.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCatalogErrors(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)

	_, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)
	_, err = ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	var exists tensorvault.ErrTensorAlreadyExists
	require.ErrorAs(t, err, &exists)
	require.Equal(t, "t", string(exists))

	_, err = ds.Tensor("nope")
	var missing tensorvault.ErrTensorDoesNotExist
	require.ErrorAs(t, err, &missing)

	_, err = ds.CreateTensor(ctx, "u", "hologram")
	require.Error(t, err)
}

func TestDynamicGetDispatch(t *testing.T) {
	ctx := context.Background()
	ds := openMemoryDataset(t)
	_, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)

	got, err := ds.Get("t")
	require.NoError(t, err)
	require.IsType(t, &tensorvault.Tensor{}, got)

	got, err = ds.Get(3)
	require.NoError(t, err)
	require.IsType(t, &tensorvault.Dataset{}, got)

	got, err = ds.Get([]int{0, 2})
	require.NoError(t, err)
	require.IsType(t, &tensorvault.Dataset{}, got)

	got, err = ds.Get(index.New(index.At(0)))
	require.NoError(t, err)
	require.IsType(t, &tensorvault.Dataset{}, got)

	_, err = ds.Get(3.14)
	var invalid tensorvault.ErrInvalidKeyType
	require.ErrorAs(t, err, &invalid)
}

func TestReadOnlyMode(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ds, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	tensor, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)
	require.NoError(t, tensor.Append(ctx, narray.Ones(narray.Float64, 2)))
	require.NoError(t, ds.Close())

	reader, err := tensorvault.Open(ctx, root, tensorvault.WithMode(tensorvault.ModeRead))
	require.NoError(t, err)
	defer reader.Close()

	readTensor, err := reader.Tensor("t")
	require.NoError(t, err)
	arr, err := readTensor.Numpy(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, arr.Shape())

	var readOnly tensorvault.ErrReadOnly
	err = readTensor.Append(ctx, narray.Ones(narray.Float64, 2))
	require.ErrorAs(t, err, &readOnly)
	_, err = reader.CreateTensor(ctx, "u", tensorvault.HtypeGeneric)
	require.ErrorAs(t, err, &readOnly)
	err = reader.Delete(ctx)
	require.ErrorAs(t, err, &readOnly)
}

func TestClearCacheKeepsData(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ds, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	defer ds.Close()

	tensor, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)
	require.NoError(t, tensor.Extend(ctx, narray.Ones(narray.Float64, 3, 4)))

	require.NoError(t, ds.ClearCache(ctx))
	require.NoError(t, ds.ClearCache(ctx))

	arr, err := tensor.Numpy(ctx)
	require.NoError(t, err)
	require.True(t, narray.Equal(narray.Ones(narray.Float64, 3, 4), arr))
}

func TestDeleteIsDestructive(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ds, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)

	tensor, err := ds.CreateTensor(ctx, "t", tensorvault.HtypeGeneric)
	require.NoError(t, err)
	require.NoError(t, tensor.Append(ctx, narray.Ones(narray.Float64, 2)))
	require.NoError(t, ds.Delete(ctx))

	n, err := ds.Storage().Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	reopened, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	defer reopened.Close()
	count, err := reopened.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, reopened.TensorNames())
}

func TestZstdCompressedTensorRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ds, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)

	tensor, err := ds.CreateTensor(
		ctx, "t", tensorvault.HtypeImage, tensorvault.WithSampleCompression("zstd"),
	)
	require.NoError(t, err)
	require.NoError(t, tensor.Extend(ctx, narray.Ones(narray.Uint8, 8, 32, 32)))
	require.NoError(t, ds.Close())

	reopened, err := tensorvault.Open(ctx, root)
	require.NoError(t, err)
	defer reopened.Close()
	tensor2, err := reopened.Tensor("t")
	require.NoError(t, err)
	arr, err := tensor2.Numpy(ctx)
	require.NoError(t, err)
	require.True(t, narray.Equal(narray.Ones(narray.Uint8, 8, 32, 32), arr))
}
