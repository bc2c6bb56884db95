// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obstypes

import (
	"fmt"

	"github.com/maxrathmann/ioda/lib/obs/obserr"
)

// A Cell is a tagged union holding one typed, flat column.  The
// element count is the cell's length; shape is tracked by whoever
// owns the cell.
//
// Bulk copies between cells of POD tags go through copy() on the
// typed slice; strings are copied element-wise.
type Cell struct {
	tag Tag
	i   []int32
	f   []float32
	s   []string
	t   []DateTime
}

// NewCell returns a zero-filled cell of the given tag and length.
func NewCell(tag Tag, n int) Cell {
	c := Cell{tag: tag}
	switch tag {
	case TagInt:
		c.i = make([]int32, n)
	case TagFloat:
		c.f = make([]float32, n)
	case TagString:
		c.s = make([]string, n)
	case TagDateTime:
		c.t = make([]DateTime, n)
	default:
		panic(fmt.Errorf("%w: NewCell with %v", obserr.ErrInvariant, tag))
	}
	return c
}

// CellOf wraps a typed slice in a cell.  The cell aliases the slice;
// it does not copy.
func CellOf[T ColType](vals []T) Cell {
	c := Cell{tag: TagOf[T]()}
	switch vals := any(vals).(type) {
	case []int32:
		c.i = vals
	case []float32:
		c.f = vals
	case []string:
		c.s = vals
	case []DateTime:
		c.t = vals
	}
	return c
}

// CellData returns the typed slice inside c, or ErrTypeMismatch if T
// does not match c's tag.  The slice aliases the cell's storage.
func CellData[T ColType](c Cell) ([]T, error) {
	want := TagOf[T]()
	if c.tag != want {
		return nil, fmt.Errorf("requested %v from a %v cell: %w", want, c.tag, obserr.ErrTypeMismatch)
	}
	switch any([]T(nil)).(type) {
	case []int32:
		return any(c.i).([]T), nil
	case []float32:
		return any(c.f).([]T), nil
	case []string:
		return any(c.s).([]T), nil
	default:
		return any(c.t).([]T), nil
	}
}

func (c Cell) Tag() Tag { return c.tag }

func (c Cell) Len() int {
	switch c.tag {
	case TagInt:
		return len(c.i)
	case TagFloat:
		return len(c.f)
	case TagString:
		return len(c.s)
	case TagDateTime:
		return len(c.t)
	default:
		return 0
	}
}

// Clone returns a cell with its own copy of the storage.
func (c Cell) Clone() Cell {
	ret := NewCell(c.tag, c.Len())
	switch c.tag {
	case TagInt:
		copy(ret.i, c.i)
	case TagFloat:
		copy(ret.f, c.f)
	case TagString:
		copy(ret.s, c.s)
	case TagDateTime:
		copy(ret.t, c.t)
	}
	return ret
}

// Slice returns a sub-cell aliasing elements [start, start+count).
func (c Cell) Slice(start, count int) (Cell, error) {
	if start < 0 || count < 0 || start+count > c.Len() {
		return Cell{}, fmt.Errorf("slice [%d,%d) of a length-%d cell: %w",
			start, start+count, c.Len(), obserr.ErrOutOfRange)
	}
	ret := Cell{tag: c.tag}
	switch c.tag {
	case TagInt:
		ret.i = c.i[start : start+count]
	case TagFloat:
		ret.f = c.f[start : start+count]
	case TagString:
		ret.s = c.s[start : start+count]
	case TagDateTime:
		ret.t = c.t[start : start+count]
	}
	return ret, nil
}

// CopySpan copies n elements from src[srcOff:] into c[dstOff:].
func (c *Cell) CopySpan(dstOff int, src Cell, srcOff, n int) error {
	if src.tag != c.tag {
		return fmt.Errorf("copy %v into %v: %w", src.tag, c.tag, obserr.ErrTypeMismatch)
	}
	if dstOff < 0 || dstOff+n > c.Len() || srcOff < 0 || srcOff+n > src.Len() {
		return fmt.Errorf("copy span [%d,%d)->[%d,%d) (lengths %d, %d): %w",
			srcOff, srcOff+n, dstOff, dstOff+n, src.Len(), c.Len(), obserr.ErrOutOfRange)
	}
	switch c.tag {
	case TagInt:
		copy(c.i[dstOff:dstOff+n], src.i[srcOff:srcOff+n])
	case TagFloat:
		copy(c.f[dstOff:dstOff+n], src.f[srcOff:srcOff+n])
	case TagString:
		for i := 0; i < n; i++ {
			c.s[dstOff+i] = src.s[srcOff+i]
		}
	case TagDateTime:
		copy(c.t[dstOff:dstOff+n], src.t[srcOff:srcOff+n])
	}
	return nil
}

// Append grows c by src's elements.
func (c *Cell) Append(src Cell) error {
	if src.tag != c.tag {
		return fmt.Errorf("append %v to %v: %w", src.tag, c.tag, obserr.ErrTypeMismatch)
	}
	switch c.tag {
	case TagInt:
		c.i = append(c.i, src.i...)
	case TagFloat:
		c.f = append(c.f, src.f...)
	case TagString:
		c.s = append(c.s, src.s...)
	case TagDateTime:
		c.t = append(c.t, src.t...)
	}
	return nil
}

// Project returns a new cell holding c's elements at the given
// indices, in the order given.
func (c Cell) Project(indices []int) (Cell, error) {
	ret := NewCell(c.tag, len(indices))
	for dst, src := range indices {
		if err := ret.CopySpan(dst, c, src, 1); err != nil {
			return Cell{}, err
		}
	}
	return ret, nil
}

// Equal reports element-wise equality, tags included.
func (c Cell) Equal(other Cell) bool {
	if c.tag != other.tag || c.Len() != other.Len() {
		return false
	}
	switch c.tag {
	case TagInt:
		for i := range c.i {
			if c.i[i] != other.i[i] {
				return false
			}
		}
	case TagFloat:
		for i := range c.f {
			if c.f[i] != other.f[i] {
				return false
			}
		}
	case TagString:
		for i := range c.s {
			if c.s[i] != other.s[i] {
				return false
			}
		}
	case TagDateTime:
		for i := range c.t {
			if c.t[i].Cmp(other.t[i]) != 0 {
				return false
			}
		}
	}
	return true
}
