// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obsengines abstracts the on-disk obs-file backends behind a
// common Group/Variable/Attribute model.  Concrete engines register
// themselves with the factory under a format name; the factory hands
// back the opened engine, whose Root() is the entry point for
// everything else.
package obsengines

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

type CreateMode int8

const (
	CreateFailIfExists CreateMode = iota
	CreateTruncate
)

type OpenMode int8

const (
	OpenReadOnly OpenMode = iota
	OpenReadWrite
)

// CompatVersion is one endpoint of an HDF5 compatibility range.
type CompatVersion int8

const (
	CompatEarliest CompatVersion = iota
	CompatV18
	CompatV110
	CompatV112
	CompatLatest
)

func (v CompatVersion) String() string {
	switch v {
	case CompatEarliest:
		return "earliest"
	case CompatV18:
		return "1.8"
	case CompatV110:
		return "1.10"
	case CompatV112:
		return "1.12"
	case CompatLatest:
		return "latest"
	default:
		return fmt.Sprintf("<invalid compat version %d>", int8(v))
	}
}

// ParseCompatVersion maps a config token to a CompatVersion.
func ParseCompatVersion(s string) (CompatVersion, error) {
	switch strings.ToLower(s) {
	case "", "earliest":
		return CompatEarliest, nil
	case "v18", "1.8":
		return CompatV18, nil
	case "v110", "1.10":
		return CompatV110, nil
	case "v112", "1.12":
		return CompatV112, nil
	case "latest":
		return CompatLatest, nil
	default:
		return 0, fmt.Errorf("unknown HDF5 compatibility version %q: %w", s, obserr.ErrInvalidConfig)
	}
}

// Capabilities reports what an engine can do; callers that need a
// missing capability must route around it rather than fail at call
// time.
type Capabilities struct {
	PartialIO         bool
	AttributeRename   bool
	Grouping          bool
	ConcurrentReaders bool
}

// Options carries everything the factory needs beyond format and
// path.
type Options struct {
	Write      bool
	CreateMode CreateMode
	OpenMode   OpenMode

	HDF5 HDF5Options
}

// HDF5Options is the HDF5-specific configuration surface.
type HDF5Options struct {
	CompatLow  CompatVersion
	CompatHigh CompatVersion

	// memory-image engine sizing
	ImageInitialSize    int64
	ImageGrowthIncrement int64
	FlushOnClose        bool
}

// Bounds reports the selected compatibility range as a (low, high)
// pair.
func (o HDF5Options) Bounds() (low, high CompatVersion) {
	return o.CompatLow, o.CompatHigh
}

type Engine interface {
	FormatName() string
	Root() Group
	Capabilities() Capabilities
	Close() error
}

type Group interface {
	OpenGroup(path string) (Group, error)
	CreateGroup(path string) (Group, error)
	ListGroups() []string

	// DefineDim declares a named axis; writers call it before
	// creating variables dimensioned by the axis.
	DefineDim(name string, extent int) error
	Dims() map[string]int

	Vars() VarStore
	Atts() AttStore
}

// VarOpts are the optional parts of variable creation.
type VarOpts struct {
	Chunks []int
	Dims   []string // axis name per dimension; engines that track dims want these
}

type VarStore interface {
	Create(name string, tag obstypes.Tag, shape []int, opts VarOpts) (Variable, error)
	Open(name string) (Variable, error)
	Exists(name string) bool
	Remove(name string) error
	Rename(oldName, newName string) error
	List() []string
}

type Variable interface {
	Name() string
	Tag() obstypes.Tag
	Shape() []int
	Dimensions() []string

	ReadRange(sel obstypes.Selection) (obstypes.Cell, error)
	WriteRange(sel obstypes.Selection, data obstypes.Cell) error
}

type AttStore interface {
	Create(name string, tag obstypes.Tag, shape []int) (Attribute, error)
	Open(name string) (Attribute, error)
	Exists(name string) bool
	Remove(name string) error
	Rename(oldName, newName string) error
	List() []string
}

type Attribute interface {
	Name() string
	Tag() obstypes.Tag
	Shape() []int
	Read() obstypes.Cell
	Write(data obstypes.Cell) error
}

type openFunc func(ctx context.Context, path string, opts Options) (Engine, error)

var registry = make(map[string]openFunc)

func register(format string, fn openFunc) {
	if _, taken := registry[format]; taken {
		panic(fmt.Errorf("%w: duplicate engine format %q", obserr.ErrInvariant, format))
	}
	registry[format] = fn
}

// Open opens (or creates, per opts) a backend of the given format.
func Open(ctx context.Context, format, path string, opts Options) (Engine, error) {
	fn, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("unknown engine format %q: %w", format, obserr.ErrInvalidConfig)
	}
	return fn(ctx, path, opts)
}

// FormatForPath guesses an engine format from a filename.
func FormatForPath(path string) string {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".gz") {
		name = strings.TrimSuffix(name, ".gz")
	}
	switch filepath.Ext(name) {
	case ".h5", ".hdf5", ".he5":
		return "hdf5"
	default:
		return "netcdf"
	}
}

// LookupAttr is Open-without-the-error for callers that treat an
// absent attribute as a normal condition (a file with no reference
// timestamp, say).
func LookupAttr(as AttStore, name string) containers.Optional[Attribute] {
	att, err := as.Open(name)
	if err != nil {
		return containers.OptionalNil[Attribute]()
	}
	return containers.OptionalValue(att)
}

// PackSelection cuts the hyperslab sel out of a whole-variable cell,
// returning a packed cell.  Engines whose format library only does
// whole-column reads use it to honor ReadRange.
func PackSelection(shape []int, whole obstypes.Cell, sel obstypes.Selection) (obstypes.Cell, error) {
	if err := sel.Validate(shape); err != nil {
		return obstypes.Cell{}, err
	}
	ret := obstypes.NewCell(whole.Tag(), sel.NumElements())
	dstOff := 0
	err := sel.Runs(shape, func(off, n int) error {
		err := ret.CopySpan(dstOff, whole, off, n)
		dstOff += n
		return err
	})
	if err != nil {
		return obstypes.Cell{}, err
	}
	return ret, nil
}

// CopyGroup deep-copies src into dst: attributes, variables (whole
// range), dims, and child groups.
func CopyGroup(dst, src Group) error {
	for name, extent := range src.Dims() {
		if err := dst.DefineDim(name, extent); err != nil {
			return err
		}
	}
	for _, name := range src.Atts().List() {
		att, err := src.Atts().Open(name)
		if err != nil {
			return err
		}
		dstAtt, err := dst.Atts().Create(name, att.Tag(), att.Shape())
		if err != nil {
			return err
		}
		if err := dstAtt.Write(att.Read()); err != nil {
			return err
		}
	}
	for _, name := range src.Vars().List() {
		v, err := src.Vars().Open(name)
		if err != nil {
			return err
		}
		data, err := v.ReadRange(obstypes.WholeShape(v.Shape()))
		if err != nil {
			return err
		}
		dstVar, err := dst.Vars().Create(name, v.Tag(), v.Shape(), VarOpts{Dims: v.Dimensions()})
		if err != nil {
			return err
		}
		if err := dstVar.WriteRange(obstypes.WholeShape(v.Shape()), data); err != nil {
			return err
		}
	}
	for _, name := range src.ListGroups() {
		srcChild, err := src.OpenGroup(name)
		if err != nil {
			return err
		}
		dstChild, err := dst.CreateGroup(name)
		if err != nil {
			return err
		}
		if err := CopyGroup(dstChild, srcChild); err != nil {
			return err
		}
	}
	return nil
}
