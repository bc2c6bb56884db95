// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsengines

import (
	"context"

	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// The pure in-memory engine has no file behind it; an ObsSpace uses
// one as its working store, and tests use it as the reference
// implementation of the Group model.

func init() {
	register("memory", func(_ context.Context, _ string, _ Options) (Engine, error) {
		return NewMemEngine(), nil
	})
}

type memEngine struct {
	root *obsstore.Group
}

// NewMemEngine returns an empty in-memory engine.
func NewMemEngine() Engine {
	return &memEngine{root: obsstore.NewRoot()}
}

// NewMemEngineOver wraps an existing tree.
func NewMemEngineOver(root *obsstore.Group) Engine {
	return &memEngine{root: root}
}

func (e *memEngine) FormatName() string { return "memory" }
func (e *memEngine) Root() Group        { return memGroup{g: e.root} }
func (e *memEngine) Close() error       { return nil }

func (e *memEngine) Capabilities() Capabilities {
	return Capabilities{
		PartialIO:         true,
		AttributeRename:   true,
		Grouping:          true,
		ConcurrentReaders: true,
	}
}

type memGroup struct {
	g *obsstore.Group
}

var _ Group = memGroup{}

func (mg memGroup) OpenGroup(path string) (Group, error) {
	g, err := mg.g.Open(path)
	if err != nil {
		return nil, err
	}
	return memGroup{g: g}, nil
}

func (mg memGroup) CreateGroup(path string) (Group, error) {
	g, err := mg.g.Create(path)
	if err != nil {
		return nil, err
	}
	return memGroup{g: g}, nil
}

func (mg memGroup) ListGroups() []string { return mg.g.List() }

func (mg memGroup) DefineDim(name string, extent int) error {
	mg.g.DefineDim(name, extent)
	return nil
}

func (mg memGroup) Dims() map[string]int { return mg.g.Dims() }

func (mg memGroup) Vars() VarStore { return memVars{vs: mg.g.Vars()} }
func (mg memGroup) Atts() AttStore { return memAtts{as: mg.g.Atts()} }

type memVars struct {
	vs *obsstore.Variables
}

var _ VarStore = memVars{}

func (mv memVars) Create(name string, tag obstypes.Tag, shape []int, opts VarOpts) (Variable, error) {
	v, err := mv.vs.Create(name, tag, shape, opts.Chunks)
	if err != nil {
		return nil, err
	}
	if opts.Dims != nil {
		v.SetDimensions(opts.Dims)
	}
	return memVar{v: v}, nil
}

func (mv memVars) Open(name string) (Variable, error) {
	v, err := mv.vs.Open(name)
	if err != nil {
		return nil, err
	}
	return memVar{v: v}, nil
}

func (mv memVars) Exists(name string) bool { return mv.vs.Exists(name) }
func (mv memVars) Remove(name string) error { return mv.vs.Remove(name) }
func (mv memVars) Rename(oldName, newName string) error {
	return mv.vs.Rename(oldName, newName)
}
func (mv memVars) List() []string { return mv.vs.List() }

type memVar struct {
	v *obsstore.Variable
}

var _ Variable = memVar{}

func (v memVar) Name() string           { return v.v.Name() }
func (v memVar) Tag() obstypes.Tag      { return v.v.Tag() }
func (v memVar) Shape() []int           { return v.v.Shape() }
func (v memVar) Dimensions() []string   { return v.v.Dimensions() }

func (v memVar) ReadRange(sel obstypes.Selection) (obstypes.Cell, error) {
	return v.v.Read(sel)
}

func (v memVar) WriteRange(sel obstypes.Selection, data obstypes.Cell) error {
	return v.v.Write(sel, data)
}

type memAtts struct {
	as *obsstore.Attributes
}

var _ AttStore = memAtts{}

func (ma memAtts) Create(name string, tag obstypes.Tag, shape []int) (Attribute, error) {
	att, err := ma.as.Create(name, tag, shape)
	if err != nil {
		return nil, err
	}
	return memAtt{att: att}, nil
}

func (ma memAtts) Open(name string) (Attribute, error) {
	att, err := ma.as.Open(name)
	if err != nil {
		return nil, err
	}
	return memAtt{att: att}, nil
}

func (ma memAtts) Exists(name string) bool  { return ma.as.Exists(name) }
func (ma memAtts) Remove(name string) error { return ma.as.Remove(name) }
func (ma memAtts) Rename(oldName, newName string) error {
	return ma.as.Rename(oldName, newName)
}
func (ma memAtts) List() []string { return ma.as.List() }

type memAtt struct {
	att *obsstore.Attribute
}

var _ Attribute = memAtt{}

func (a memAtt) Name() string         { return a.att.Name() }
func (a memAtt) Tag() obstypes.Tag    { return a.att.Tag() }
func (a memAtt) Shape() []int         { return a.att.Shape() }
func (a memAtt) Read() obstypes.Cell  { return a.att.Read() }
func (a memAtt) Write(data obstypes.Cell) error {
	return a.att.Write(data)
}
