// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsstore

import (
	"fmt"
	"strings"

	"github.com/maxrathmann/ioda/lib/maps"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
)

// A Group is a node in the namespace tree.  The root is named "/";
// every other group has a parent.
type Group struct {
	name     string
	parent   *Group
	children map[string]*Group
	vars     Variables
	atts     Attributes
	dims     map[string]int
}

func NewRoot() *Group {
	return &Group{name: "/"}
}

func (g *Group) Name() string       { return g.name }
func (g *Group) Parent() *Group     { return g.parent }
func (g *Group) Vars() *Variables   { return &g.vars }
func (g *Group) Atts() *Attributes  { return &g.atts }

// splitPath validates and splits a relative path.  Forward slash is
// the only separator; empty segments, ".", and ".." are rejected.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty group path: %w", obserr.ErrInvalidConfig)
	}
	segs := strings.Split(path, "/")
	for _, seg := range segs {
		switch seg {
		case "", ".", "..":
			return nil, fmt.Errorf("group path %q: bad segment %q: %w", path, seg, obserr.ErrInvalidConfig)
		}
	}
	return segs, nil
}

// Open walks a relative path of existing groups.
func (g *Group) Open(path string) (*Group, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cur := g
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			return nil, &obserr.VarError{Group: seg, Err: fmt.Errorf("group: %w", obserr.ErrNotFound)}
		}
		cur = child
	}
	return cur, nil
}

// Create makes every missing group along a relative path and returns
// the final one.  Opening an existing group along the way is not an
// error.
func (g *Group) Create(path string) (*Group, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cur := g
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			child = &Group{name: seg, parent: cur}
			if cur.children == nil {
				cur.children = make(map[string]*Group)
			}
			cur.children[seg] = child
		}
		cur = child
	}
	return cur, nil
}

func (g *Group) List() []string {
	return maps.SortedKeys(g.children)
}

// DefineDim records a named axis (nlocs, nvars, ...) and its extent.
// Redefining an axis overwrites its extent.
func (g *Group) DefineDim(name string, extent int) {
	if g.dims == nil {
		g.dims = make(map[string]int)
	}
	g.dims[name] = extent
}

// Dims returns the named axis set.  The map is shared with the
// group; callers must not mutate it.
func (g *Group) Dims() map[string]int {
	return g.dims
}
