package narray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Array is a dense row-major buffer with a dtype and a shape. A rank-0 array
// (empty shape) holds a single scalar element.
type Array struct {
	dtype DType
	shape []int
	data  []byte
}

// New wraps data as an array. The buffer length must match the shape and
// dtype exactly. The buffer is not copied.
func New(dtype DType, shape []int, data []byte) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("narray: unknown dtype %q", string(dtype))
	}
	want := NumElements(shape) * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf(
			"narray: buffer of %d bytes does not fit shape %v of dtype %s (want %d)",
			len(data), shape, dtype, want,
		)
	}
	return &Array{dtype: dtype, shape: append([]int(nil), shape...), data: data}, nil
}

// NumElements returns the element count implied by shape. An empty shape is
// a scalar and counts as 1.
func NumElements(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

func (a *Array) Rank() int { return len(a.shape) }

func (a *Array) Len() int { return NumElements(a.shape) }

// Bytes returns the underlying row-major buffer. Callers must not mutate it.
func (a *Array) Bytes() []byte { return a.data }

// Reshape returns a view with the same buffer and a new shape holding the
// same number of elements.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if NumElements(shape) != NumElements(a.shape) {
		return nil, fmt.Errorf("narray: cannot reshape %v into %v", a.shape, shape)
	}
	return &Array{dtype: a.dtype, shape: append([]int(nil), shape...), data: a.data}, nil
}

// Row returns the i-th subarray along axis 0 as a view.
func (a *Array) Row(i int) (*Array, error) {
	if a.Rank() == 0 {
		return nil, fmt.Errorf("narray: cannot take a row of a scalar")
	}
	if i < 0 || i >= a.shape[0] {
		return nil, fmt.Errorf("narray: row %d out of bounds for axis of size %d", i, a.shape[0])
	}
	rowShape := a.shape[1:]
	rowBytes := NumElements(rowShape) * a.dtype.Size()
	return &Array{
		dtype: a.dtype,
		shape: append([]int(nil), rowShape...),
		data:  a.data[i*rowBytes : (i+1)*rowBytes],
	}, nil
}

// strides returns the row-major element strides for shape.
func strides(shape []int) []int {
	out := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		out[d] = acc
		acc *= shape[d]
	}
	return out
}

// AxisPick selects coordinates along one axis. Collapse drops the axis from
// the result (integer indexing); otherwise the axis survives with
// len(Coords) entries (slice or list indexing).
type AxisPick struct {
	Coords   []int
	Collapse bool
}

// Gather materializes the cross-product selection picks[d] applied to axis d.
// len(picks) must equal the array rank.
func (a *Array) Gather(picks []AxisPick) (*Array, error) {
	if len(picks) != len(a.shape) {
		return nil, fmt.Errorf(
			"narray: %d axis picks against rank %d", len(picks), len(a.shape),
		)
	}
	for d, pick := range picks {
		for _, c := range pick.Coords {
			if c < 0 || c >= a.shape[d] {
				return nil, fmt.Errorf(
					"narray: coordinate %d out of bounds for axis %d of size %d", c, d, a.shape[d],
				)
			}
		}
	}

	outShape := make([]int, 0, len(a.shape))
	for _, pick := range picks {
		if !pick.Collapse {
			outShape = append(outShape, len(pick.Coords))
		}
	}
	// An empty pick on any axis selects nothing; the result keeps its rank
	// but holds no elements.
	if NumElements(outShape) == 0 {
		return New(a.dtype, outShape, nil)
	}

	itemSize := a.dtype.Size()
	srcStrides := strides(a.shape)
	out := make([]byte, NumElements(outShape)*itemSize)

	// Odometer over the pick lists, row-major.
	counters := make([]int, len(picks))
	dst := 0
	for {
		src := 0
		for d, pick := range picks {
			src += pick.Coords[counters[d]] * srcStrides[d]
		}
		copy(out[dst:dst+itemSize], a.data[src*itemSize:(src+1)*itemSize])
		dst += itemSize

		d := len(picks) - 1
		for d >= 0 {
			counters[d]++
			if counters[d] < len(picks[d].Coords) {
				break
			}
			counters[d] = 0
			d--
		}
		if d < 0 {
			break
		}
	}
	return New(a.dtype, outShape, out)
}

// Stack concatenates arrays of identical dtype and shape along a new leading
// axis.
func Stack(arrays []*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("narray: cannot stack zero arrays")
	}
	first := arrays[0]
	for _, arr := range arrays[1:] {
		if arr.dtype != first.dtype {
			return nil, fmt.Errorf("narray: stack dtype mismatch: %s vs %s", first.dtype, arr.dtype)
		}
		if !EqualShapes(arr.shape, first.shape) {
			return nil, fmt.Errorf("narray: stack shape mismatch: %v vs %v", first.shape, arr.shape)
		}
	}
	data := make([]byte, 0, len(arrays)*len(first.data))
	for _, arr := range arrays {
		data = append(data, arr.data...)
	}
	shape := append([]int{len(arrays)}, first.shape...)
	return New(first.dtype, shape, data)
}

// Equal reports byte-wise equality of dtype, shape, and contents.
func Equal(a, b *Array) bool {
	return a.dtype == b.dtype && EqualShapes(a.shape, b.shape) && bytes.Equal(a.data, b.data)
}

// EqualShapes reports element-wise equality of two shapes.
func EqualShapes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Full returns an array of the given shape with every element set to value.
// The value is converted to the dtype's representation.
func Full(dtype DType, shape []int, value float64) *Array {
	itemSize := dtype.Size()
	item := make([]byte, itemSize)
	putScalar(item, dtype, value)
	data := make([]byte, NumElements(shape)*itemSize)
	for off := 0; off < len(data); off += itemSize {
		copy(data[off:], item)
	}
	arr, err := New(dtype, shape, data)
	if err != nil {
		panic(err)
	}
	return arr
}

// Ones returns an all-ones array.
func Ones(dtype DType, shape ...int) *Array {
	return Full(dtype, shape, 1)
}

// Zeros returns an all-zeros array.
func Zeros(dtype DType, shape ...int) *Array {
	return Full(dtype, shape, 0)
}

// Scalar returns a rank-0 int64 array holding v.
func Scalar(v int64) *Array {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(v))
	arr, err := New(Int64, nil, data)
	if err != nil {
		panic(err)
	}
	return arr
}

// FromInt64s returns a rank-1 int64 array holding values.
func FromInt64s(values []int64) *Array {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}
	arr, err := New(Int64, []int{len(values)}, data)
	if err != nil {
		panic(err)
	}
	return arr
}

// Arange returns int64 values 0..n-1 as a rank-1 array.
func Arange(n int) *Array {
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i)
	}
	return FromInt64s(values)
}

// Int64s decodes every element of an int64 array, in row-major order, as a
// flat slice of int64 values. The shape is not returned.
func (a *Array) Int64s() ([]int64, error) {
	if a.dtype != Int64 {
		return nil, fmt.Errorf("narray: Int64s on dtype %s", a.dtype)
	}
	out := make([]int64, a.Len())
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(a.data[i*8:]))
	}
	return out, nil
}

func putScalar(dst []byte, dtype DType, value float64) {
	switch dtype {
	case Uint8:
		dst[0] = byte(uint8(value))
	case Int8:
		dst[0] = byte(int8(value))
	case Uint16:
		binary.LittleEndian.PutUint16(dst, uint16(value))
	case Int16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(value)))
	case Uint32:
		binary.LittleEndian.PutUint32(dst, uint32(value))
	case Int32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(value)))
	case Uint64:
		binary.LittleEndian.PutUint64(dst, uint64(value))
	case Int64:
		binary.LittleEndian.PutUint64(dst, uint64(int64(value)))
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(value)))
	case Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(value))
	default:
		panic(fmt.Sprintf("narray: unknown dtype %q", string(dtype)))
	}
}
