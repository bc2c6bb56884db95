// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obsspace is the in-memory observation database: typed
// variables keyed by (group, variable), held in insertion order with
// by-group and by-variable overlays, populated from obs files through
// a distribution and a time-window filter.
package obsspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
	"github.com/maxrathmann/ioda/lib/slices"
)

// GroupUndefined is where variables with no "@group" suffix land.
const GroupUndefined = "GroupUndefined"

// A Key addresses one variable record.
type Key struct {
	Group string
	Name  string
}

// SplitVarName parses the on-disk "variable@group" flattening.
func SplitVarName(flat string) Key {
	if at := strings.LastIndex(flat, "@"); at >= 0 {
		return Key{Group: flat[at+1:], Name: flat[:at]}
	}
	return Key{Group: GroupUndefined, Name: flat}
}

// FlatName is the inverse of SplitVarName.
func (k Key) FlatName() string {
	if k.Group == GroupUndefined || k.Group == "" {
		return k.Name
	}
	return k.Name + "@" + k.Group
}

func (k Key) String() string { return k.FlatName() }

// A VarView is the read-only face of one record, as yielded by the
// iteration orders.
type VarView struct {
	Group string
	Name  string
	Shape []int
	Tag   obstypes.Tag

	LocsDimensioned bool
	ReadOnly        bool
}

// varRecord is the owning record; the three indices hold arena
// positions into ObsSpace.arena, never pointers, so growth does not
// invalidate them.
type varRecord struct {
	key      Key
	v        *obsstore.Variable
	locsDim  bool
	readOnly bool
}

type ObsSpace struct {
	obsname  string
	winBegin obstypes.DateTime
	winEnd   obstypes.DateTime
	comm     obsdist.Comm
	dist     obsdist.Distribution

	nlocs int
	nvars int
	nrecs int

	arena   []*varRecord
	byKey   map[Key]int
	byGroup containers.SortedMap[containers.NativeOrdered[string], []int]
	byVar   containers.SortedMap[containers.NativeOrdered[string], []int]
}

// New returns an empty ObsSpace for the given obs type and window.
func New(obsname string, winBegin, winEnd obstypes.DateTime, comm obsdist.Comm) *ObsSpace {
	return &ObsSpace{
		obsname:  obsname,
		winBegin: winBegin,
		winEnd:   winEnd,
		comm:     comm,
		byKey:    make(map[Key]int),
	}
}

func (s *ObsSpace) ObsName() string                    { return s.obsname }
func (s *ObsSpace) WindowStart() obstypes.DateTime     { return s.winBegin }
func (s *ObsSpace) WindowEnd() obstypes.DateTime       { return s.winEnd }
func (s *ObsSpace) Comm() obsdist.Comm                 { return s.comm }
func (s *ObsSpace) Distribution() obsdist.Distribution { return s.dist }
func (s *ObsSpace) NLocs() int                         { return s.nlocs }
func (s *ObsSpace) NVars() int                         { return s.nvars }
func (s *ObsSpace) NRecs() int                         { return s.nrecs }

// SetNLocs pins the per-rank location count for a hand-built space;
// Load sets it from the post-filter owned index list.  Variables
// stored afterward with a matching leading extent are flagged
// locations-dimensioned.
func (s *ObsSpace) SetNLocs(n int) { s.nlocs = n }

// SetNVars pins the observed-variable (channel) count.
func (s *ObsSpace) SetNVars(n int) { s.nvars = n }

func (s *ObsSpace) Has(group, name string) bool {
	_, ok := s.byKey[Key{Group: group, Name: name}]
	return ok
}

func (s *ObsSpace) lookup(group, name string) (*varRecord, error) {
	idx, ok := s.byKey[Key{Group: group, Name: name}]
	if !ok {
		return nil, &obserr.VarError{Group: group, Var: name, Err: obserr.ErrNotFound}
	}
	return s.arena[idx], nil
}

// GetDB copies a whole variable into out.  want is the caller's idea
// of the total element count; a disagreement is a LengthMismatch.
func GetDB[T obstypes.ColType](s *ObsSpace, group, name string, want int, out []T) error {
	rec, err := s.lookup(group, name)
	if err != nil {
		return err
	}
	cell, err := rec.v.ReadAll()
	if err != nil {
		return wrapGroup(group, err)
	}
	vals, err := obstypes.CellData[T](cell)
	if err != nil {
		return &obserr.VarError{Group: group, Var: name, Err: err}
	}
	if len(vals) != want || len(out) < want {
		return &obserr.VarError{Group: group, Var: name,
			Err: fmt.Errorf("variable holds %d elements, caller wants %d into a %d-element buffer: %w",
				len(vals), want, len(out), obserr.ErrLengthMismatch)}
	}
	copy(out, vals)
	return nil
}

// PutDB stores a rank-1 variable, creating it on first call.  A
// later call with matching tag and length overwrites.
func PutDB[T obstypes.ColType](s *ObsSpace, group, name string, vals []T) error {
	return StoreToDB(s, group, name, []int{len(vals)}, vals, false)
}

// StoreToDB stores a shaped variable.  The first call freezes the
// type tag and the locations-dimensioned flag.  With doAppend set the
// leading extent grows by shape[0]; every trailing extent must match.
func StoreToDB[T obstypes.ColType](s *ObsSpace, group, name string, shape []int, vals []T, doAppend bool) error {
	cell := obstypes.CellOf(vals)
	rec, err := s.lookup(group, name)
	if err != nil {
		// first store creates the record
		locsDim := len(shape) > 0 && s.nlocs > 0 && shape[0] == s.nlocs
		v, err := newStoreVariable(Key{Group: group, Name: name}, cell.Tag(), shape)
		if err != nil {
			return err
		}
		if err := v.Write(obstypes.WholeShape(shape), cell); err != nil {
			return wrapGroup(group, err)
		}
		return s.insert(Key{Group: group, Name: name}, v, locsDim, false)
	}

	if cell.Tag() != rec.v.Tag() {
		return &obserr.VarError{Group: group, Var: name,
			Err: fmt.Errorf("store of %v over %v: %w", cell.Tag(), rec.v.Tag(), obserr.ErrTypeMismatch)}
	}
	if doAppend {
		if err := sameTail(shape, rec.v.Shape()); err != nil {
			return &obserr.VarError{Group: group, Var: name, Err: err}
		}
		if err := rec.v.Append(cell, shape[0]); err != nil {
			return wrapGroup(group, err)
		}
		return nil
	}
	if !slices.Equal(shape, rec.v.Shape()) {
		return &obserr.VarError{Group: group, Var: name,
			Err: fmt.Errorf("store of shape %v over %v: %w", shape, rec.v.Shape(), obserr.ErrShapeMismatch)}
	}
	if err := rec.v.Write(obstypes.WholeShape(shape), cell); err != nil {
		return wrapGroup(group, err)
	}
	return nil
}

// LoadFromDB reads a variable, optionally a partial range along the
// leading axis: [start, start+count); count < 0 means through the
// end.
func LoadFromDB[T obstypes.ColType](s *ObsSpace, group, name string, shape []int, out []T, start, count int) error {
	rec, err := s.lookup(group, name)
	if err != nil {
		return err
	}
	have := rec.v.Shape()
	if !slices.Equal(shape, have) {
		return &obserr.VarError{Group: group, Var: name,
			Err: fmt.Errorf("load of shape %v from %v: %w", shape, have, obserr.ErrShapeMismatch)}
	}
	sel := obstypes.WholeShape(have)
	if len(sel) > 0 {
		if count < 0 {
			count = have[0] - start
		}
		sel[0] = obstypes.DimRange{Start: start, Count: count}
	}
	cell, err := rec.v.Read(sel)
	if err != nil {
		return wrapGroup(group, err)
	}
	vals, err := obstypes.CellData[T](cell)
	if err != nil {
		return &obserr.VarError{Group: group, Var: name, Err: err}
	}
	if len(out) < len(vals) {
		return &obserr.VarError{Group: group, Var: name,
			Err: fmt.Errorf("load of %d elements into a %d-element buffer: %w",
				len(vals), len(out), obserr.ErrLengthMismatch)}
	}
	copy(out, vals)
	return nil
}

func newStoreVariable(key Key, tag obstypes.Tag, shape []int) (*obsstore.Variable, error) {
	var vs obsstore.Variables
	v, err := vs.Create(key.FlatName(), tag, shape, nil)
	if err != nil {
		return nil, &obserr.VarError{Group: key.Group, Var: key.Name, Err: err}
	}
	return v, nil
}

func wrapGroup(group string, err error) error {
	var verr *obserr.VarError
	if errors.As(err, &verr) && verr.Group == "" {
		return &obserr.VarError{Group: group, Var: verr.Var, Err: verr.Err}
	}
	return err
}

// sameTail checks that an append's trailing extents match the
// variable's.
func sameTail(incoming, have []int) error {
	if len(incoming) != len(have) || len(incoming) == 0 {
		return fmt.Errorf("append of rank-%d data to a rank-%d variable: %w",
			len(incoming), len(have), obserr.ErrShapeMismatch)
	}
	for d := 1; d < len(have); d++ {
		if incoming[d] != have[d] {
			return fmt.Errorf("append with trailing extent %d, want %d: %w",
				incoming[d], have[d], obserr.ErrShapeMismatch)
		}
	}
	return nil
}
