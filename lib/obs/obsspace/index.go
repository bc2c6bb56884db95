// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace

import (
	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/slices"
)

// The record arena is append-only: a removed record leaves a nil slot
// so every other record keeps its position, which is what the
// secondary indices store.

func key(s string) containers.NativeOrdered[string] {
	return containers.NativeOrdered[string]{Val: s}
}

// insert adds a brand-new record and registers it in all three
// indices.
func (s *ObsSpace) insert(k Key, v *obsstore.Variable, locsDim, readOnly bool) error {
	if _, taken := s.byKey[k]; taken {
		return &obserr.VarError{Group: k.Group, Var: k.Name, Err: obserr.ErrAlreadyExists}
	}
	idx := len(s.arena)
	s.arena = append(s.arena, &varRecord{
		key:      k,
		v:        v,
		locsDim:  locsDim,
		readOnly: readOnly,
	})
	s.byKey[k] = idx

	grpIdxs, _ := s.byGroup.Load(key(k.Group))
	s.byGroup.Store(key(k.Group), append(grpIdxs, idx))

	varIdxs, _ := s.byVar.Load(key(k.Name))
	s.byVar.Store(key(k.Name), append(varIdxs, idx))
	return nil
}

// Remove destroys one record.  The survivors keep their iteration
// positions in all three orders.
func (s *ObsSpace) Remove(group, name string) error {
	k := Key{Group: group, Name: name}
	idx, ok := s.byKey[k]
	if !ok {
		return &obserr.VarError{Group: group, Var: name, Err: obserr.ErrNotFound}
	}
	delete(s.byKey, k)
	s.arena[idx] = nil

	s.removeFromIndex(&s.byGroup, k.Group, idx)
	s.removeFromIndex(&s.byVar, k.Name, idx)
	return nil
}

func (s *ObsSpace) removeFromIndex(m *containers.SortedMap[containers.NativeOrdered[string], []int], name string, idx int) {
	idxs, ok := m.Load(key(name))
	if !ok {
		return
	}
	idxs = slices.RemoveAllFunc(idxs, func(i int) bool { return i == idx })
	if len(idxs) == 0 {
		m.Delete(key(name))
	} else {
		m.Store(key(name), idxs)
	}
}

func (s *ObsSpace) view(idx int) VarView {
	rec := s.arena[idx]
	return VarView{
		Group:           rec.key.Group,
		Name:            rec.key.Name,
		Shape:           append([]int(nil), rec.v.Shape()...),
		Tag:             rec.v.Tag(),
		LocsDimensioned: rec.locsDim,
		ReadOnly:        rec.readOnly,
	}
}

// ByInsertion yields every record in the order it was first
// inserted, regardless of later updates or appends.
func (s *ObsSpace) ByInsertion() []VarView {
	var ret []VarView
	for idx, rec := range s.arena {
		if rec != nil {
			ret = append(ret, s.view(idx))
		}
	}
	return ret
}

// ByGroup yields records ordered by group name, insertion order
// within a group.
func (s *ObsSpace) ByGroup() []VarView {
	var ret []VarView
	s.byGroup.Range(func(_ containers.NativeOrdered[string], idxs []int) bool {
		for _, idx := range idxs {
			ret = append(ret, s.view(idx))
		}
		return true
	})
	return ret
}

// ByVariable yields records ordered by variable name alphabetically;
// same-named variables in different groups come out in insertion
// order.
func (s *ObsSpace) ByVariable() []VarView {
	var ret []VarView
	s.byVar.Range(func(_ containers.NativeOrdered[string], idxs []int) bool {
		for _, idx := range idxs {
			ret = append(ret, s.view(idx))
		}
		return true
	})
	return ret
}
