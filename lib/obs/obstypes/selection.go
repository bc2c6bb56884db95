// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obstypes

import (
	"fmt"

	"github.com/maxrathmann/ioda/lib/obs/obserr"
)

// A DimRange is the (start, count) extent of a selection along one
// dimension.
type DimRange struct {
	Start int
	Count int
}

// A Selection describes a contiguous hyperslab of a variable: one
// DimRange per dimension, outermost first.
type Selection []DimRange

// WholeShape returns the selection covering all of shape.
func WholeShape(shape []int) Selection {
	ret := make(Selection, len(shape))
	for i, extent := range shape {
		ret[i] = DimRange{Start: 0, Count: extent}
	}
	return ret
}

// NumElements returns the element count of the hyperslab.
func (sel Selection) NumElements() int {
	n := 1
	for _, r := range sel {
		n *= r.Count
	}
	return n
}

// Counts returns the per-dimension extents of the hyperslab.
func (sel Selection) Counts() []int {
	ret := make([]int, len(sel))
	for i, r := range sel {
		ret[i] = r.Count
	}
	return ret
}

// Validate checks sel against a variable's current shape.
func (sel Selection) Validate(shape []int) error {
	if len(sel) != len(shape) {
		return fmt.Errorf("rank-%d selection of a rank-%d variable: %w",
			len(sel), len(shape), obserr.ErrShapeMismatch)
	}
	for d, r := range sel {
		if r.Start < 0 || r.Count < 0 || r.Start+r.Count > shape[d] {
			return fmt.Errorf("dimension %d: [%d,%d) of extent %d: %w",
				d, r.Start, r.Start+r.Count, shape[d], obserr.ErrOutOfRange)
		}
	}
	return nil
}

// Runs invokes fn(flatOff, runLen) once per contiguous run of the
// hyperslab in a variable of the given shape, in row-major order.
// flatOff is the flat element offset into the variable; runLen is the
// run's element count.  A rank-0 selection yields a single
// one-element run.
func (sel Selection) Runs(shape []int, fn func(flatOff, runLen int) error) error {
	if len(sel) == 0 {
		return fn(0, 1)
	}
	// strides[d] = number of flat elements one step along d covers
	strides := make([]int, len(shape))
	stride := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= shape[d]
	}
	last := len(sel) - 1
	runLen := sel[last].Count

	var walk func(d, off int) error
	walk = func(d, off int) error {
		if d == last {
			return fn(off+sel[d].Start, runLen)
		}
		for i := 0; i < sel[d].Count; i++ {
			if err := walk(d+1, off+(sel[d].Start+i)*strides[d]); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0, 0)
}
