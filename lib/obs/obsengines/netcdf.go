// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsengines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bitbucket.org/ctessum/cdf"
	"github.com/klauspost/pgzip"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
	"github.com/maxrathmann/ioda/lib/slices"
	"github.com/maxrathmann/ioda/lib/textui"
)

// The NetCDF engine reads legacy observation files (classic format)
// and writes the modern flat layout.  The format has no grouping; the
// `variable@group` flattening convention lives one layer up, in the
// ObsSpace load/save paths.
//
// The underlying library defines the whole header before any data is
// written, so the write side stages everything in an in-memory tree
// and materializes the file on Close.

func init() {
	register("netcdf", openNetCDF)
}

var errReadOnlyEngine = errors.New("engine is open read-only")

// column cache size; radiance loads re-read the time column right
// after the scanner walked it.
var ncCacheSize = textui.Tunable(32)

type ncEngine struct {
	path   string
	closer io.Closer

	// read mode
	f     *cdf.File
	cache *containers.LRUCache[string, ncColumn]

	// write mode
	createMode CreateMode
	staged     *obsstore.Group
}

type ncColumn struct {
	cell  obstypes.Cell
	shape []int
}

func openNetCDF(_ context.Context, path string, opts Options) (Engine, error) {
	if opts.Write {
		return &ncEngine{
			path:       path,
			createMode: opts.CreateMode,
			staged:     obsstore.NewRoot(),
		}, nil
	}

	osFile, err := os.Open(path)
	if err != nil {
		return nil, &obserr.BackendError{Op: "open", Path: path, Err: err}
	}
	var src io.ReaderAt = osFile
	closer := io.Closer(osFile)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := pgzip.NewReader(osFile)
		if err != nil {
			_ = osFile.Close()
			return nil, &obserr.BackendError{Op: "open", Path: path, Err: err}
		}
		raw, err := io.ReadAll(zr)
		_ = zr.Close()
		_ = osFile.Close()
		if err != nil {
			return nil, &obserr.BackendError{Op: "open", Path: path, Err: err}
		}
		src = bytes.NewReader(raw)
		closer = nil
	}

	f, err := cdf.Open(src)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, &obserr.BackendError{Op: "open", Path: path, Err: err}
	}
	return &ncEngine{
		path:   path,
		closer: closer,
		f:      f,
		cache:  containers.NewLRUCache[string, ncColumn](ncCacheSize),
	}, nil
}

func (e *ncEngine) FormatName() string { return "netcdf" }

func (e *ncEngine) Capabilities() Capabilities {
	return Capabilities{
		PartialIO:         true,
		AttributeRename:   e.staged != nil,
		Grouping:          false,
		ConcurrentReaders: e.staged == nil,
	}
}

func (e *ncEngine) Root() Group {
	if e.staged != nil {
		return memGroup{g: e.staged}
	}
	return ncGroup{e: e}
}

func (e *ncEngine) Close() error {
	if e.staged != nil {
		if err := e.materialize(); err != nil {
			return err
		}
		return nil
	}
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// ncGroup is the (only) group of a read-mode engine.
type ncGroup struct {
	e *ncEngine
}

var _ Group = ncGroup{}

func (g ncGroup) OpenGroup(path string) (Group, error) {
	return nil, &obserr.VarError{Group: path, Err: fmt.Errorf("netcdf has no groups: %w", obserr.ErrNotFound)}
}

func (g ncGroup) CreateGroup(path string) (Group, error) {
	return nil, &obserr.BackendError{Op: "create-group", Path: g.e.path, Err: errReadOnlyEngine}
}

func (g ncGroup) ListGroups() []string { return nil }

func (g ncGroup) DefineDim(string, int) error {
	return &obserr.BackendError{Op: "define-dim", Path: g.e.path, Err: errReadOnlyEngine}
}

func (g ncGroup) Dims() map[string]int {
	names := g.e.f.Header.Dimensions("")
	lengths := g.e.f.Header.Lengths("")
	ret := make(map[string]int, len(names))
	for i, name := range names {
		ret[name] = lengths[i]
	}
	return ret
}

func (g ncGroup) Vars() VarStore { return ncVars{e: g.e} }
func (g ncGroup) Atts() AttStore { return ncAtts{e: g.e, v: ""} }

type ncVars struct {
	e *ncEngine
}

var _ VarStore = ncVars{}

func (vs ncVars) Create(name string, _ obstypes.Tag, _ []int, _ VarOpts) (Variable, error) {
	return nil, &obserr.BackendError{Op: "create", Path: vs.e.path, Err: errReadOnlyEngine}
}

func (vs ncVars) Open(name string) (Variable, error) {
	if !vs.Exists(name) {
		return nil, &obserr.VarError{Var: name, Err: obserr.ErrNotFound}
	}
	return ncVar{e: vs.e, name: name}, nil
}

func (vs ncVars) Exists(name string) bool {
	for _, have := range vs.e.f.Header.Variables() {
		if have == name {
			return true
		}
	}
	return false
}

func (vs ncVars) Remove(name string) error {
	return &obserr.BackendError{Op: "remove", Path: vs.e.path, Err: errReadOnlyEngine}
}

func (vs ncVars) Rename(oldName, newName string) error {
	return &obserr.BackendError{Op: "rename", Path: vs.e.path, Err: errReadOnlyEngine}
}

func (vs ncVars) List() []string {
	names := append([]string(nil), vs.e.f.Header.Variables()...)
	slices.Sort(names)
	return names
}

type ncVar struct {
	e    *ncEngine
	name string
}

var _ Variable = ncVar{}

func (v ncVar) Name() string { return v.name }

func (v ncVar) Tag() obstypes.Tag {
	col, err := v.column()
	if err != nil {
		return obstypes.TagInvalid
	}
	return col.cell.Tag()
}

func (v ncVar) Shape() []int {
	col, err := v.column()
	if err != nil {
		return nil
	}
	return col.shape
}

func (v ncVar) Dimensions() []string {
	dims := v.e.f.Header.Dimensions(v.name)
	// a char variable's trailing width dimension is folded into the
	// string type
	if len(dims) > len(v.Shape()) {
		dims = dims[:len(v.Shape())]
	}
	return dims
}

func (v ncVar) ReadRange(sel obstypes.Selection) (obstypes.Cell, error) {
	col, err := v.column()
	if err != nil {
		return obstypes.Cell{}, err
	}
	packed, err := PackSelection(col.shape, col.cell, sel)
	if err != nil {
		return obstypes.Cell{}, &obserr.VarError{Var: v.name, Err: err}
	}
	return packed, nil
}

func (v ncVar) WriteRange(obstypes.Selection, obstypes.Cell) error {
	return &obserr.BackendError{Op: "write", Path: v.e.path, Err: errReadOnlyEngine}
}

// column reads (and caches) the whole variable.  The library hands
// back a freshly-allocated typed slice; partial selections are cut
// out in memory.
func (v ncVar) column() (ncColumn, error) {
	if col, ok := v.e.cache.Get(v.name); ok {
		return col, nil
	}
	r := v.e.f.Reader(v.name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return ncColumn{}, &obserr.BackendError{Op: "read", Path: v.e.path, Err: fmt.Errorf("variable %q: %w", v.name, err)}
	}
	shape := append([]int(nil), v.e.f.Header.Lengths(v.name)...)
	cell, shape, err := cellFromNative(buf, shape)
	if err != nil {
		return ncColumn{}, &obserr.VarError{Var: v.name, Err: err}
	}
	col := ncColumn{cell: cell, shape: shape}
	v.e.cache.Add(v.name, col)
	return col, nil
}

type ncAtts struct {
	e *ncEngine
	v string // "" for the global attributes
}

var _ AttStore = ncAtts{}

func (as ncAtts) Create(name string, _ obstypes.Tag, _ []int) (Attribute, error) {
	return nil, &obserr.BackendError{Op: "create-attribute", Path: as.e.path, Err: errReadOnlyEngine}
}

func (as ncAtts) Open(name string) (Attribute, error) {
	if !as.Exists(name) {
		return nil, &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
	}
	return ncAtt{e: as.e, v: as.v, name: name}, nil
}

func (as ncAtts) Exists(name string) bool {
	return as.e.f.Header.GetAttribute(as.v, name) != nil
}

func (as ncAtts) Remove(name string) error {
	return &obserr.BackendError{Op: "remove-attribute", Path: as.e.path, Err: errReadOnlyEngine}
}

func (as ncAtts) Rename(oldName, newName string) error {
	return &obserr.BackendError{Op: "rename-attribute", Path: as.e.path, Err: errReadOnlyEngine}
}

func (as ncAtts) List() []string {
	names := append([]string(nil), as.e.f.Header.Attributes(as.v)...)
	slices.Sort(names)
	return names
}

type ncAtt struct {
	e    *ncEngine
	v    string
	name string
}

var _ Attribute = ncAtt{}

func (a ncAtt) Name() string { return a.name }

func (a ncAtt) Tag() obstypes.Tag { return a.Read().Tag() }

func (a ncAtt) Shape() []int {
	n := a.Read().Len()
	if n == 1 {
		return nil
	}
	return []int{n}
}

func (a ncAtt) Read() obstypes.Cell {
	val := a.e.f.Header.GetAttribute(a.v, a.name)
	cell, _, err := cellFromNative(val, nil)
	if err != nil {
		return obstypes.Cell{}
	}
	return cell
}

func (a ncAtt) Write(obstypes.Cell) error {
	return &obserr.BackendError{Op: "write-attribute", Path: a.e.path, Err: errReadOnlyEngine}
}

// cellFromNative converts whatever typed value the library hands back
// into one of the four primitive cells, returning the possibly
// reduced shape (char arrays fold their trailing width dimension into
// the string type).
func cellFromNative(val interface{}, shape []int) (obstypes.Cell, []int, error) {
	switch val := val.(type) {
	case []int32:
		return obstypes.CellOf(val), shape, nil
	case []int16:
		widened := make([]int32, len(val))
		for i, x := range val {
			widened[i] = int32(x)
		}
		return obstypes.CellOf(widened), shape, nil
	case []uint8:
		widened := make([]int32, len(val))
		for i, x := range val {
			widened[i] = int32(x)
		}
		return obstypes.CellOf(widened), shape, nil
	case []float32:
		return obstypes.CellOf(val), shape, nil
	case []float64:
		// deliberate downcast; doubles never survive ingest
		return obstypes.CellOf(obstypes.CoerceDoubles(val)), shape, nil
	case string:
		return charsToStrings(val, shape)
	default:
		return obstypes.Cell{}, nil, fmt.Errorf("unsupported netcdf value type %T: %w", val, obserr.ErrTypeMismatch)
	}
}

// charsToStrings splits a flat char payload into fixed-width rows
// using the trailing dimension as the width, dropping that dimension
// from the shape.
func charsToStrings(val string, shape []int) (obstypes.Cell, []int, error) {
	if len(shape) < 2 {
		return obstypes.CellOf([]string{trimChars(val)}), nil, nil
	}
	width := shape[len(shape)-1]
	rows := len(val) / width
	strs := make([]string, rows)
	for i := range strs {
		strs[i] = trimChars(val[i*width : (i+1)*width])
	}
	return obstypes.CellOf(strs), append([]int(nil), shape[:len(shape)-1]...), nil
}

func trimChars(s string) string {
	return strings.TrimRight(s, " \x00")
}
