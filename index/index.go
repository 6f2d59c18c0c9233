// Package index implements the symbolic, lazy multi-axis selection algebra
// applied to dataset views and tensor reads. An Index is an ordered vector of
// per-axis selector chains; composing one never touches data. Selectors only
// resolve to concrete coordinates when a read materializes them against an
// axis length.
package index

import "fmt"

// Selector is one per-axis selection: an integer, a half-open slice, or an
// explicit coordinate list.
type Selector interface {
	isSelector()
}

// Int selects a single coordinate and collapses the axis. Negative values
// count from the end.
type Int int

// Slice selects the half-open range [Start, Stop) with a positive Step.
// Unset bounds (HasStart/HasStop false) default to the full axis. Negative
// bounds count from the end.
type Slice struct {
	Start, Stop int
	Step        int
	HasStart    bool
	HasStop     bool
}

// List selects explicit coordinates, in order, possibly repeating.
type List []int

func (Int) isSelector()   {}
func (Slice) isSelector() {}
func (List) isSelector()  {}

// At selects coordinate i on an axis.
func At(i int) Int { return Int(i) }

// All selects the whole axis.
func All() Slice { return Slice{Step: 1} }

// Range selects [start, stop).
func Range(start, stop int) Slice {
	return Slice{Start: start, Stop: stop, Step: 1, HasStart: true, HasStop: true}
}

// RangeStep selects [start, stop) with the given step.
func RangeStep(start, stop, step int) Slice {
	return Slice{Start: start, Stop: stop, Step: step, HasStart: true, HasStop: true}
}

// From selects [start, end-of-axis).
func From(start int) Slice {
	return Slice{Start: start, Step: 1, HasStart: true}
}

// To selects [0, stop).
func To(stop int) Slice {
	return Slice{Stop: stop, Step: 1, HasStop: true}
}

// Pick selects the given coordinates.
func Pick(coords ...int) List { return List(coords) }

func (s Slice) isTrivial() bool {
	return !s.HasStart && !s.HasStop && (s.Step == 0 || s.Step == 1)
}

// axis is a chain of selectors applied successively to one dimension.
type axis struct {
	chain []Selector
}

// resolvedToInt reports whether the axis has been collapsed by an integer
// selector; such axes are skipped by composition.
func (ax axis) resolvedToInt() bool {
	for _, sel := range ax.chain {
		if _, ok := sel.(Int); ok {
			return true
		}
	}
	return false
}

// Index is an ordered list of per-axis selector chains.
type Index struct {
	axes []axis
}

// New builds an Index with one axis per selector.
func New(selectors ...Selector) Index {
	axes := make([]axis, len(selectors))
	for i, sel := range selectors {
		axes[i] = axis{chain: []Selector{sel}}
	}
	return Index{axes: axes}
}

// IsTrivial reports whether the index selects everything.
func (idx Index) IsTrivial() bool {
	for _, ax := range idx.axes {
		for _, sel := range ax.chain {
			s, ok := sel.(Slice)
			if !ok || !s.isTrivial() {
				return false
			}
		}
	}
	return true
}

// NumAxes returns the number of axes the index constrains.
func (idx Index) NumAxes() int { return len(idx.axes) }

// Compose refines the index with further selectors. The first selector lands
// on the first axis not already collapsed to an integer; each subsequent
// selector on the next such axis; leftovers open new axes. The receiver is
// unchanged.
func (idx Index) Compose(selectors ...Selector) Index {
	axes := make([]axis, len(idx.axes))
	for i, ax := range idx.axes {
		axes[i] = axis{chain: append([]Selector(nil), ax.chain...)}
	}

	target := 0
	for _, sel := range selectors {
		for target < len(axes) && axes[target].resolvedToInt() {
			target++
		}
		if target < len(axes) {
			axes[target].chain = append(axes[target].chain, sel)
		} else {
			axes = append(axes, axis{chain: []Selector{sel}})
		}
		target++
	}
	return Index{axes: axes}
}

// ComposeIndex refines the receiver with every axis of other: each of
// other's axes lands, chain intact, on the receiver's next axis not already
// collapsed to an integer.
func (idx Index) ComposeIndex(other Index) Index {
	axes := make([]axis, len(idx.axes))
	for i, ax := range idx.axes {
		axes[i] = axis{chain: append([]Selector(nil), ax.chain...)}
	}
	target := 0
	for _, sub := range other.axes {
		for target < len(axes) && axes[target].resolvedToInt() {
			target++
		}
		if target < len(axes) {
			axes[target].chain = append(axes[target].chain, sub.chain...)
		} else {
			axes = append(axes, axis{chain: append([]Selector(nil), sub.chain...)})
		}
		target++
	}
	return Index{axes: axes}
}

// IsAxisCollapsed reports whether axis d is integer-resolved. Axes beyond
// the constrained range are not collapsed.
func (idx Index) IsAxisCollapsed(d int) bool {
	if d >= len(idx.axes) {
		return false
	}
	return idx.axes[d].resolvedToInt()
}

// Resolve materializes axis d against a dimension of the given length,
// returning the selected coordinates and whether the axis collapses.
func (idx Index) Resolve(d, length int) (coords []int, collapsed bool, err error) {
	coords = make([]int, length)
	for i := range coords {
		coords[i] = i
	}
	if d >= len(idx.axes) {
		return coords, false, nil
	}
	for _, sel := range idx.axes[d].chain {
		coords, collapsed, err = applySelector(sel, coords, collapsed)
		if err != nil {
			return nil, false, fmt.Errorf("axis %d: %w", d, err)
		}
	}
	return coords, collapsed, nil
}

func applySelector(sel Selector, coords []int, collapsed bool) ([]int, bool, error) {
	if collapsed {
		return nil, false, fmt.Errorf("cannot index into an integer-resolved axis")
	}
	n := len(coords)
	switch s := sel.(type) {
	case Int:
		i, err := normalize(int(s), n)
		if err != nil {
			return nil, false, err
		}
		return []int{coords[i]}, true, nil
	case Slice:
		step := s.Step
		if step == 0 {
			step = 1
		}
		if step < 0 {
			return nil, false, fmt.Errorf("negative slice step %d is not supported", step)
		}
		start, stop := 0, n
		if s.HasStart {
			start = clampBound(s.Start, n)
		}
		if s.HasStop {
			stop = clampBound(s.Stop, n)
		}
		var out []int
		for i := start; i < stop; i += step {
			out = append(out, coords[i])
		}
		return out, false, nil
	case List:
		out := make([]int, len(s))
		for j, raw := range s {
			i, err := normalize(raw, n)
			if err != nil {
				return nil, false, err
			}
			out[j] = coords[i]
		}
		return out, false, nil
	default:
		return nil, false, fmt.Errorf("unknown selector type %T", sel)
	}
}

// normalize converts a possibly-negative index into [0, n).
func normalize(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %d out of bounds for axis of size %d", i, n)
	}
	return i, nil
}

// clampBound normalizes a slice bound the numpy way: negative counts from
// the end, then clamps into [0, n].
func clampBound(b, n int) int {
	if b < 0 {
		b += n
	}
	if b < 0 {
		return 0
	}
	if b > n {
		return n
	}
	return b
}
