// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obsstore is the in-memory observation storage model: a tree
// of groups, each holding typed shaped variables and small attribute
// metadata.  It is both the working store of an ObsSpace and the
// reference implementation the file-backed engines are measured
// against.
package obsstore

import (
	"fmt"

	"github.com/maxrathmann/ioda/lib/maps"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// An Attribute is a fully-resident named value attached to a group or
// variable.  Unlike variables there is no partial I/O; reads and
// writes move the whole value.
type Attribute struct {
	name  string
	shape []int
	data  obstypes.Cell
}

func (a *Attribute) Name() string        { return a.name }
func (a *Attribute) Tag() obstypes.Tag   { return a.data.Tag() }
func (a *Attribute) Shape() []int        { return a.shape }
func (a *Attribute) Read() obstypes.Cell { return a.data }

func (a *Attribute) Write(data obstypes.Cell) error {
	if data.Tag() != a.data.Tag() {
		return &obserr.VarError{Var: a.name,
			Err: fmt.Errorf("attribute write of %v over %v: %w", data.Tag(), a.data.Tag(), obserr.ErrTypeMismatch)}
	}
	if data.Len() != a.data.Len() {
		return &obserr.VarError{Var: a.name,
			Err: fmt.Errorf("attribute write of %d elements over %d: %w", data.Len(), a.data.Len(), obserr.ErrLengthMismatch)}
	}
	a.data = data.Clone()
	return nil
}

// Attributes is the attribute bag of a group or variable.
type Attributes struct {
	m map[string]*Attribute
}

func (as *Attributes) init() {
	if as.m == nil {
		as.m = make(map[string]*Attribute)
	}
}

func (as *Attributes) Create(name string, tag obstypes.Tag, shape []int) (*Attribute, error) {
	as.init()
	if _, taken := as.m[name]; taken {
		return nil, &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrAlreadyExists)}
	}
	n := 1
	for _, extent := range shape {
		n *= extent
	}
	att := &Attribute{
		name:  name,
		shape: append([]int(nil), shape...),
		data:  obstypes.NewCell(tag, n),
	}
	as.m[name] = att
	return att, nil
}

func (as *Attributes) Open(name string) (*Attribute, error) {
	if att, ok := as.m[name]; ok {
		return att, nil
	}
	return nil, &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
}

func (as *Attributes) Exists(name string) bool {
	_, ok := as.m[name]
	return ok
}

func (as *Attributes) Remove(name string) error {
	if _, ok := as.m[name]; !ok {
		return &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
	}
	delete(as.m, name)
	return nil
}

func (as *Attributes) Rename(oldName, newName string) error {
	att, ok := as.m[oldName]
	if !ok {
		return &obserr.VarError{Var: oldName, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
	}
	if _, taken := as.m[newName]; taken {
		return &obserr.VarError{Var: newName, Err: fmt.Errorf("attribute: %w", obserr.ErrAlreadyExists)}
	}
	delete(as.m, oldName)
	att.name = newName
	as.m[newName] = att
	return nil
}

func (as *Attributes) List() []string {
	return maps.SortedKeys(as.m)
}
