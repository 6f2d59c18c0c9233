package tensorvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/tensorvault/tensorvault/chunks"
	"github.com/tensorvault/tensorvault/index"
	"github.com/tensorvault/tensorvault/meta"
	"github.com/tensorvault/tensorvault/narray"
	"github.com/tensorvault/tensorvault/storage"
)

// Tensor is a borrowed façade over one tensor of a dataset: it holds the
// dataset's storage chain, its own key, and an ambient Index. It must not
// outlive its Dataset.
type Tensor struct {
	name     string
	provider storage.Provider
	mode     string
	idx      index.Index
}

// Name returns the tensor's name.
func (t *Tensor) Name() string {
	return t.name
}

// View returns a tensor view with the selectors composed onto the ambient
// index. No I/O is performed.
func (t *Tensor) View(selectors ...index.Selector) *Tensor {
	return &Tensor{
		name:     t.name,
		provider: t.provider,
		mode:     t.mode,
		idx:      t.idx.Compose(selectors...),
	}
}

// Meta loads the tensor's current meta document.
func (t *Tensor) Meta(ctx context.Context) (*meta.TensorMeta, error) {
	tm, err := meta.LoadTensorMeta(ctx, t.provider, t.name)
	if err != nil {
		var notFound storage.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return nil, ErrTensorDoesNotExist(t.name)
		}
		return nil, err
	}
	return tm, nil
}

// Len returns the number of samples in the tensor.
func (t *Tensor) Len(ctx context.Context) (int, error) {
	tm, err := t.Meta(ctx)
	if err != nil {
		return 0, err
	}
	return int(tm.Length), nil
}

// Shape bounds a tensor's per-sample shapes element-wise. Lower equals
// Upper for fixed-shape tensors.
type Shape struct {
	Lower []int
	Upper []int
}

// IsDynamic reports whether recorded samples vary in shape.
func (s Shape) IsDynamic() bool {
	for d := range s.Lower {
		if s.Lower[d] != s.Upper[d] {
			return true
		}
	}
	return false
}

// Shape returns the element-wise bounds of the tensor's sample shapes.
func (t *Tensor) Shape(ctx context.Context) (Shape, error) {
	tm, err := t.Meta(ctx)
	if err != nil {
		return Shape{}, err
	}
	return Shape{
		Lower: append([]int(nil), tm.MinShape...),
		Upper: append([]int(nil), tm.MaxShape...),
	}, nil
}

// Append adds one sample to the end of the tensor.
func (t *Tensor) Append(ctx context.Context, sample *narray.Array) error {
	return t.extendSamples(ctx, []*narray.Array{sample})
}

// Extend appends a batch: array's first axis is the batch axis, each row is
// one sample.
func (t *Tensor) Extend(ctx context.Context, batch *narray.Array) error {
	if batch.Rank() == 0 {
		return fmt.Errorf("tensor %q: cannot extend with a scalar; use Append", t.name)
	}
	samples := make([]*narray.Array, batch.Shape()[0])
	for i := range samples {
		row, err := batch.Row(i)
		if err != nil {
			return err
		}
		samples[i] = row
	}
	return t.extendSamples(ctx, samples)
}

// extendSamples validates every sample against the tensor meta, writes the
// chunk bytes and the index structures, and commits the meta last: a failed
// call leaves the tensor's visible length unchanged.
func (t *Tensor) extendSamples(ctx context.Context, samples []*narray.Array) error {
	if t.mode == ModeRead {
		return ErrReadOnly("append to tensor " + t.name)
	}
	if len(samples) == 0 {
		return nil
	}
	tm, err := t.Meta(ctx)
	if err != nil {
		return err
	}

	// All validation happens before any byte is written.
	for _, sample := range samples {
		if err := tm.CheckCompatible(sample.DType(), sample.Shape()); err != nil {
			return err
		}
	}
	if first := samples[0]; tm.MinShape == nil {
		// The first sample fixes the rank for everything that follows in
		// this batch too.
		for _, sample := range samples[1:] {
			if sample.Rank() != first.Rank() {
				return meta.ErrTensorMetaMismatch{
					Field:    "min_shape",
					Expected: first.Shape(),
					Got:      sample.Shape(),
				}
			}
		}
	}

	engine, err := chunks.OpenEngine(ctx, t.provider, t.name, tm)
	if err != nil {
		return err
	}
	for _, sample := range samples {
		if err := engine.WriteSample(ctx, sample.Bytes(), sample.Shape()); err != nil {
			return err
		}
		tm.RecordSample(sample.Shape())
	}
	if err := engine.Commit(ctx); err != nil {
		return err
	}
	// The meta write is the commit point that makes the samples visible.
	return tm.Save(ctx, t.provider, t.name)
}

// loadSamples resolves the ambient index against the tensor and loads the
// selected samples, applying any sample-axis selectors to each.
func (t *Tensor) loadSamples(ctx context.Context) (samples []*narray.Array, collapsed bool, err error) {
	tm, err := t.Meta(ctx)
	if err != nil {
		return nil, false, err
	}
	engine, err := chunks.OpenEngine(ctx, t.provider, t.name, tm)
	if err != nil {
		return nil, false, err
	}

	ordinals, collapsed, err := t.idx.Resolve(0, int(tm.Length))
	if err != nil {
		return nil, false, fmt.Errorf("tensor %q: %w", t.name, err)
	}

	dtype := narray.DType(tm.Dtype)
	samples = make([]*narray.Array, len(ordinals))
	for i, ordinal := range ordinals {
		sample, err := engine.ReadSample(ctx, ordinal, dtype)
		if err != nil {
			return nil, false, err
		}
		if t.idx.NumAxes() > 1 {
			sample, err = t.applySampleAxes(sample)
			if err != nil {
				return nil, false, fmt.Errorf("tensor %q: %w", t.name, err)
			}
		}
		samples[i] = sample
	}
	return samples, collapsed, nil
}

// applySampleAxes applies the index's axes ≥ 1 to one sample array.
func (t *Tensor) applySampleAxes(sample *narray.Array) (*narray.Array, error) {
	shape := sample.Shape()
	if t.idx.NumAxes() > len(shape)+1 {
		return nil, fmt.Errorf(
			"too many indices: %d axes for samples of rank %d", t.idx.NumAxes()-1, len(shape),
		)
	}
	picks := make([]narray.AxisPick, len(shape))
	for d := range shape {
		coords, axisCollapsed, err := t.idx.Resolve(d+1, shape[d])
		if err != nil {
			return nil, err
		}
		picks[d] = narray.AxisPick{Coords: coords, Collapse: axisCollapsed}
	}
	return sample.Gather(picks)
}

// Numpy materializes the indexed samples as one stacked array. Samples of
// heterogeneous shape cannot stack; use NumpyList for those. An ambient
// integer index returns the bare sample without a batch axis.
func (t *Tensor) Numpy(ctx context.Context) (*narray.Array, error) {
	samples, collapsed, err := t.loadSamples(ctx)
	if err != nil {
		return nil, err
	}
	if collapsed {
		return samples[0], nil
	}
	if len(samples) == 0 {
		tm, err := t.Meta(ctx)
		if err != nil {
			return nil, err
		}
		return narray.New(narray.DType(tm.Dtype), []int{0}, nil)
	}
	for _, sample := range samples[1:] {
		if !narray.EqualShapes(sample.Shape(), samples[0].Shape()) {
			return nil, ErrDynamicTensor(t.name)
		}
	}
	return narray.Stack(samples)
}

// NumpyList materializes the indexed samples as a list, one array per
// sample. Works for dynamically-shaped tensors.
func (t *Tensor) NumpyList(ctx context.Context) ([]*narray.Array, error) {
	samples, _, err := t.loadSamples(ctx)
	if err != nil {
		return nil, err
	}
	return samples, nil
}
