// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsstore

import (
	"fmt"

	"github.com/maxrathmann/ioda/lib/maps"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// A Variable is a typed, shaped array supporting partial reads and
// writes along contiguous hyperslabs.  The type tag is frozen at
// creation; the leading extent may grow by appending.
type Variable struct {
	name   string
	shape  []int
	chunks []int // advisory chunking for file engines; nil is fine
	dims   []string
	data   obstypes.Cell
}

func (v *Variable) Name() string       { return v.name }
func (v *Variable) Tag() obstypes.Tag  { return v.data.Tag() }
func (v *Variable) Shape() []int       { return v.shape }
func (v *Variable) Chunking() []int    { return v.chunks }
func (v *Variable) Dimensions() []string { return v.dims }

// SetDimensions records the names of the axes this variable is
// dimensioned by; the scanner reads them back.
func (v *Variable) SetDimensions(dims []string) {
	v.dims = append([]string(nil), dims...)
}

// Write stores src into the hyperslab sel.  src must be packed
// (length equal to the selection's element count).  Validation is
// complete before the first element moves, so a failed write leaves
// the variable untouched.
func (v *Variable) Write(sel obstypes.Selection, src obstypes.Cell) error {
	if src.Tag() != v.data.Tag() {
		return &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("write of %v into %v: %w", src.Tag(), v.data.Tag(), obserr.ErrTypeMismatch)}
	}
	if err := sel.Validate(v.shape); err != nil {
		return &obserr.VarError{Var: v.name, Err: err}
	}
	if src.Len() != sel.NumElements() {
		return &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("write of %d elements into a %d-element selection: %w",
				src.Len(), sel.NumElements(), obserr.ErrLengthMismatch)}
	}
	srcOff := 0
	return sel.Runs(v.shape, func(off, n int) error {
		err := v.data.CopySpan(off, src, srcOff, n)
		srcOff += n
		return err
	})
}

// Read returns a packed cell holding the hyperslab sel.
func (v *Variable) Read(sel obstypes.Selection) (obstypes.Cell, error) {
	if err := sel.Validate(v.shape); err != nil {
		return obstypes.Cell{}, &obserr.VarError{Var: v.name, Err: err}
	}
	ret := obstypes.NewCell(v.data.Tag(), sel.NumElements())
	dstOff := 0
	err := sel.Runs(v.shape, func(off, n int) error {
		err := ret.CopySpan(dstOff, v.data, off, n)
		dstOff += n
		return err
	})
	if err != nil {
		return obstypes.Cell{}, err
	}
	return ret, nil
}

// ReadAll returns the whole variable, packed.
func (v *Variable) ReadAll() (obstypes.Cell, error) {
	return v.Read(obstypes.WholeShape(v.shape))
}

// Append grows the leading extent by headCount, filling the new tail
// from src.  All trailing extents of src's logical shape must match,
// which reduces to a length check: src must hold headCount *
// product(shape[1:]) elements.
func (v *Variable) Append(src obstypes.Cell, headCount int) error {
	if src.Tag() != v.data.Tag() {
		return &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("append of %v to %v: %w", src.Tag(), v.data.Tag(), obserr.ErrTypeMismatch)}
	}
	if len(v.shape) == 0 {
		return &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("append to a rank-0 variable: %w", obserr.ErrShapeMismatch)}
	}
	tail := 1
	for _, extent := range v.shape[1:] {
		tail *= extent
	}
	if src.Len() != headCount*tail {
		return &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("append of %d elements, want %d*%d: %w",
				src.Len(), headCount, tail, obserr.ErrLengthMismatch)}
	}
	if err := v.data.Append(src); err != nil {
		return &obserr.VarError{Var: v.name, Err: err}
	}
	v.shape[0] += headCount
	return nil
}

// Variables is the variable map of a group.
type Variables struct {
	m map[string]*Variable
}

func (vs *Variables) init() {
	if vs.m == nil {
		vs.m = make(map[string]*Variable)
	}
}

func (vs *Variables) Create(name string, tag obstypes.Tag, shape, chunks []int) (*Variable, error) {
	vs.init()
	if _, taken := vs.m[name]; taken {
		return nil, &obserr.VarError{Var: name, Err: obserr.ErrAlreadyExists}
	}
	n := 1
	for _, extent := range shape {
		if extent < 0 {
			return nil, &obserr.VarError{Var: name,
				Err: fmt.Errorf("negative extent %d: %w", extent, obserr.ErrShapeMismatch)}
		}
		n *= extent
	}
	v := &Variable{
		name:   name,
		shape:  append([]int(nil), shape...),
		chunks: append([]int(nil), chunks...),
		data:   obstypes.NewCell(tag, n),
	}
	vs.m[name] = v
	return v, nil
}

func (vs *Variables) Open(name string) (*Variable, error) {
	if v, ok := vs.m[name]; ok {
		return v, nil
	}
	return nil, &obserr.VarError{Var: name, Err: obserr.ErrNotFound}
}

func (vs *Variables) Exists(name string) bool {
	_, ok := vs.m[name]
	return ok
}

func (vs *Variables) Remove(name string) error {
	if _, ok := vs.m[name]; !ok {
		return &obserr.VarError{Var: name, Err: obserr.ErrNotFound}
	}
	delete(vs.m, name)
	return nil
}

func (vs *Variables) Rename(oldName, newName string) error {
	v, ok := vs.m[oldName]
	if !ok {
		return &obserr.VarError{Var: oldName, Err: obserr.ErrNotFound}
	}
	if _, taken := vs.m[newName]; taken {
		return &obserr.VarError{Var: newName, Err: obserr.ErrAlreadyExists}
	}
	delete(vs.m, oldName)
	v.name = newName
	vs.m[newName] = v
	return nil
}

func (vs *Variables) List() []string {
	return maps.SortedKeys(vs.m)
}
