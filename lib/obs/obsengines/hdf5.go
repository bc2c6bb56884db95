// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsengines

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/hdf5"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
	"github.com/maxrathmann/ioda/lib/slices"
)

// The HDF5 file engine drives the C library through the gonum
// binding.
//
// Two binding limitations shape the adapter: attributes only attach
// to datasets, so each group carries a hidden scalar anchor dataset
// (metadataName) that group-level attributes and the axis set hang
// off of; and there is no chunk-size plumbing, so chunking hints are
// accepted and ignored.

func init() {
	register("hdf5", openHDF5)
}

const metadataName = "_ioda_metadata"

// staging pool for double columns that get downcast on read
var dblPool containers.SlicePool[float64]

type h5Engine struct {
	path     string
	file     *hdf5.File
	opts     HDF5Options
	writable bool
}

func openHDF5(_ context.Context, path string, opts Options) (Engine, error) {
	var file *hdf5.File
	var err error
	var writable bool
	switch {
	case opts.Write:
		flags := hdf5.F_ACC_EXCL
		if opts.CreateMode == CreateTruncate {
			flags = hdf5.F_ACC_TRUNC
		}
		file, err = hdf5.CreateFile(path, flags)
		writable = true
	case opts.OpenMode == OpenReadWrite:
		file, err = hdf5.OpenFile(path, hdf5.F_ACC_RDWR)
		writable = true
	default:
		file, err = hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	}
	if err != nil {
		return nil, &obserr.BackendError{Op: "open", Path: path, Err: err}
	}
	return &h5Engine{
		path:     path,
		file:     file,
		opts:     opts.HDF5,
		writable: writable,
	}, nil
}

func (e *h5Engine) FormatName() string { return "hdf5" }

// CompatBounds reports the selected library compatibility range as a
// (low, high) pair.
func (e *h5Engine) CompatBounds() (low, high CompatVersion) {
	return e.opts.Bounds()
}

func (e *h5Engine) Capabilities() Capabilities {
	return Capabilities{
		PartialIO:         true,
		AttributeRename:   false,
		Grouping:          true,
		ConcurrentReaders: !e.writable,
	}
}

func (e *h5Engine) Root() Group {
	return &h5Group{e: e, cg: &e.file.CommonFG}
}

func (e *h5Engine) Close() error {
	if err := e.file.Close(); err != nil {
		return &obserr.BackendError{Op: "close", Path: e.path, Err: err}
	}
	return nil
}

type h5Group struct {
	e  *h5Engine
	cg *hdf5.CommonFG
}

var _ Group = (*h5Group)(nil)

func (g *h5Group) OpenGroup(path string) (Group, error) {
	grp, err := g.cg.OpenGroup(path)
	if err != nil {
		return nil, &obserr.VarError{Group: path, Err: fmt.Errorf("group: %w", obserr.ErrNotFound)}
	}
	return &h5Group{e: g.e, cg: &grp.CommonFG}, nil
}

func (g *h5Group) CreateGroup(path string) (Group, error) {
	if !g.e.writable {
		return nil, &obserr.BackendError{Op: "create-group", Path: g.e.path, Err: errReadOnlyEngine}
	}
	grp, err := g.cg.CreateGroup(path)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create-group", Path: g.e.path, Err: err}
	}
	return &h5Group{e: g.e, cg: &grp.CommonFG}, nil
}

func (g *h5Group) ListGroups() []string {
	var ret []string
	for _, name := range g.objectNames() {
		if grp, err := g.cg.OpenGroup(name); err == nil {
			_ = grp.Close()
			ret = append(ret, name)
		}
	}
	return ret
}

func (g *h5Group) objectNames() []string {
	n, err := g.cg.NumObjects()
	if err != nil {
		return nil
	}
	ret := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		name, err := g.cg.ObjectNameByIndex(i)
		if err != nil {
			continue
		}
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// DefineDim records the axis on the metadata anchor (Dims reads it
// back from there) and writes the coordinate dataset; the scanner
// lists a variable bearing an axis name as a coordinate, not as data.
func (g *h5Group) DefineDim(name string, extent int) error {
	if !g.e.writable {
		return &obserr.BackendError{Op: "define-dim", Path: g.e.path, Err: errReadOnlyEngine}
	}
	if err := g.writeMetaAttr("dim_"+name, int32(extent)); err != nil {
		return err
	}
	if g.Vars().Exists(name) {
		return nil
	}
	coords := make([]int32, extent)
	for i := range coords {
		coords[i] = int32(i)
	}
	v, err := g.Vars().Create(name, obstypes.TagInt, []int{extent}, VarOpts{Dims: []string{name}})
	if err != nil {
		return err
	}
	return v.WriteRange(obstypes.WholeShape([]int{extent}), obstypes.CellOf(coords))
}

func (g *h5Group) Dims() map[string]int {
	ret := make(map[string]int)
	dset, err := g.openMeta(false)
	if err != nil {
		return ret
	}
	defer dset.Close()
	n, err := dset.NumAttrs()
	if err != nil {
		return ret
	}
	for i := 0; i < n; i++ {
		attr, err := dset.OpenAttributeByIndex(uint(i))
		if err != nil {
			continue
		}
		name := attr.Name()
		if strings.HasPrefix(name, "dim_") {
			var extent int32
			if err := attr.Read(&extent, hdf5.T_NATIVE_INT32); err == nil {
				ret[strings.TrimPrefix(name, "dim_")] = int(extent)
			}
		}
		_ = attr.Close()
	}
	return ret
}

func (g *h5Group) Vars() VarStore { return h5Vars{g: g} }
func (g *h5Group) Atts() AttStore { return h5Atts{g: g} }

// openMeta opens (or, when create is set, creates) the hidden anchor
// dataset that group-level attributes attach to.
func (g *h5Group) openMeta(create bool) (*hdf5.Dataset, error) {
	if dset, err := g.cg.OpenDataset(metadataName); err == nil {
		return dset, nil
	}
	if !create {
		return nil, &obserr.VarError{Var: metadataName, Err: obserr.ErrNotFound}
	}
	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create", Path: g.e.path, Err: err}
	}
	defer space.Close()
	dset, err := g.cg.CreateDataset(metadataName, hdf5.T_NATIVE_INT32, space)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create", Path: g.e.path, Err: err}
	}
	return dset, nil
}

func (g *h5Group) writeMetaAttr(name string, val int32) error {
	dset, err := g.openMeta(true)
	if err != nil {
		return err
	}
	defer dset.Close()
	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return &obserr.BackendError{Op: "write-attribute", Path: g.e.path, Err: err}
	}
	defer space.Close()
	attr, err := dset.CreateAttribute(name, hdf5.T_NATIVE_INT32, space)
	if err != nil {
		return &obserr.BackendError{Op: "write-attribute", Path: g.e.path, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(&val, hdf5.T_NATIVE_INT32); err != nil {
		return &obserr.BackendError{Op: "write-attribute", Path: g.e.path, Err: err}
	}
	return nil
}

type h5Vars struct {
	g *h5Group
}

var _ VarStore = h5Vars{}

func (vs h5Vars) Create(name string, tag obstypes.Tag, shape []int, opts VarOpts) (Variable, error) {
	if !vs.g.e.writable {
		return nil, &obserr.BackendError{Op: "create", Path: vs.g.e.path, Err: errReadOnlyEngine}
	}
	if vs.Exists(name) {
		return nil, &obserr.VarError{Var: name, Err: obserr.ErrAlreadyExists}
	}
	udims := make([]uint, len(shape))
	for i, extent := range shape {
		udims[i] = uint(extent)
	}
	space, err := hdf5.CreateSimpleDataspace(udims, nil)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create", Path: vs.g.e.path, Err: err}
	}
	defer space.Close()
	dset, err := vs.g.cg.CreateDataset(name, h5TypeFor(tag), space)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create", Path: vs.g.e.path, Err: err}
	}
	defer dset.Close()
	if len(opts.Dims) > 0 {
		if err := writeStringAttr(dset, "dims", strings.Join(opts.Dims, " ")); err != nil {
			return nil, err
		}
	}
	return h5Var{g: vs.g, name: name}, nil
}

func (vs h5Vars) Open(name string) (Variable, error) {
	dset, err := vs.g.cg.OpenDataset(name)
	if err != nil {
		return nil, &obserr.VarError{Var: name, Err: obserr.ErrNotFound}
	}
	_ = dset.Close()
	return h5Var{g: vs.g, name: name}, nil
}

func (vs h5Vars) Exists(name string) bool {
	dset, err := vs.g.cg.OpenDataset(name)
	if err != nil {
		return false
	}
	_ = dset.Close()
	return true
}

func (vs h5Vars) Remove(name string) error {
	return &obserr.BackendError{Op: "remove", Path: vs.g.e.path,
		Err: fmt.Errorf("hdf5 does not reclaim deleted datasets; refusing")}
}

func (vs h5Vars) Rename(oldName, newName string) error {
	return &obserr.BackendError{Op: "rename", Path: vs.g.e.path,
		Err: fmt.Errorf("dataset rename is not supported by this engine")}
}

func (vs h5Vars) List() []string {
	var ret []string
	for _, name := range vs.g.objectNames() {
		if name == metadataName {
			continue
		}
		if vs.Exists(name) {
			ret = append(ret, name)
		}
	}
	return ret
}

type h5Var struct {
	g    *h5Group
	name string
}

var _ Variable = h5Var{}

func (v h5Var) Name() string { return v.name }

func (v h5Var) open() (*hdf5.Dataset, error) {
	dset, err := v.g.cg.OpenDataset(v.name)
	if err != nil {
		return nil, &obserr.VarError{Var: v.name, Err: obserr.ErrNotFound}
	}
	return dset, nil
}

func (v h5Var) Tag() obstypes.Tag {
	dset, err := v.open()
	if err != nil {
		return obstypes.TagInvalid
	}
	defer dset.Close()
	tag, _ := tagForDataset(dset)
	return tag
}

func (v h5Var) Shape() []int {
	dset, err := v.open()
	if err != nil {
		return nil
	}
	defer dset.Close()
	return datasetShape(dset)
}

func (v h5Var) Dimensions() []string {
	dset, err := v.open()
	if err != nil {
		return nil
	}
	defer dset.Close()
	attr, err := dset.OpenAttribute("dims")
	if err != nil {
		return nil
	}
	defer attr.Close()
	var joined string
	if err := attr.Read(&joined, hdf5.T_GO_STRING); err != nil {
		return nil
	}
	return strings.Fields(joined)
}

func (v h5Var) ReadRange(sel obstypes.Selection) (obstypes.Cell, error) {
	dset, err := v.open()
	if err != nil {
		return obstypes.Cell{}, err
	}
	defer dset.Close()

	shape := datasetShape(dset)
	if err := sel.Validate(shape); err != nil {
		return obstypes.Cell{}, &obserr.VarError{Var: v.name, Err: err}
	}
	tag, dbl := tagForDataset(dset)
	if tag == obstypes.TagInvalid {
		return obstypes.Cell{}, &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("unsupported dataset type: %w", obserr.ErrTypeMismatch)}
	}

	// strings ride the whole-column path; hyperslabs only for POD
	if tag == obstypes.TagString {
		whole, err := v.readWholeStrings(dset, shape)
		if err != nil {
			return obstypes.Cell{}, err
		}
		return PackSelection(shape, whole, sel)
	}

	filespace := dset.Space()
	defer filespace.Close()
	offset := make([]uint, len(sel))
	count := make([]uint, len(sel))
	for d, r := range sel {
		offset[d] = uint(r.Start)
		count[d] = uint(r.Count)
	}
	if err := filespace.SelectHyperslab(offset, nil, count, nil); err != nil {
		return obstypes.Cell{}, &obserr.BackendError{Op: "read", Path: v.g.e.path, Err: err}
	}
	memspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return obstypes.Cell{}, &obserr.BackendError{Op: "read", Path: v.g.e.path, Err: err}
	}
	defer memspace.Close()

	n := sel.NumElements()
	switch {
	case dbl:
		buf := dblPool.Get(n)
		defer dblPool.Put(buf)
		if err := dset.ReadSubset(&buf, memspace, filespace); err != nil {
			return obstypes.Cell{}, &obserr.BackendError{Op: "read", Path: v.g.e.path, Err: err}
		}
		return obstypes.CellOf(obstypes.CoerceDoubles(buf)), nil
	case tag == obstypes.TagInt:
		buf := make([]int32, n)
		if err := dset.ReadSubset(&buf, memspace, filespace); err != nil {
			return obstypes.Cell{}, &obserr.BackendError{Op: "read", Path: v.g.e.path, Err: err}
		}
		return obstypes.CellOf(buf), nil
	default:
		buf := make([]float32, n)
		if err := dset.ReadSubset(&buf, memspace, filespace); err != nil {
			return obstypes.Cell{}, &obserr.BackendError{Op: "read", Path: v.g.e.path, Err: err}
		}
		return obstypes.CellOf(buf), nil
	}
}

func (v h5Var) readWholeStrings(dset *hdf5.Dataset, shape []int) (obstypes.Cell, error) {
	n := slices.Product(shape)
	buf := make([]string, n)
	if err := dset.Read(&buf); err != nil {
		return obstypes.Cell{}, &obserr.BackendError{Op: "read", Path: v.g.e.path, Err: err}
	}
	return obstypes.CellOf(buf), nil
}

func (v h5Var) WriteRange(sel obstypes.Selection, data obstypes.Cell) error {
	if !v.g.e.writable {
		return &obserr.BackendError{Op: "write", Path: v.g.e.path, Err: errReadOnlyEngine}
	}
	dset, err := v.open()
	if err != nil {
		return err
	}
	defer dset.Close()

	shape := datasetShape(dset)
	if err := sel.Validate(shape); err != nil {
		return &obserr.VarError{Var: v.name, Err: err}
	}
	if data.Len() != sel.NumElements() {
		return &obserr.VarError{Var: v.name,
			Err: fmt.Errorf("write of %d elements into a %d-element selection: %w",
				data.Len(), sel.NumElements(), obserr.ErrLengthMismatch)}
	}

	whole := sel.NumElements() == slices.Product(shape)
	switch data.Tag() {
	case obstypes.TagString, obstypes.TagDateTime:
		if !whole {
			return &obserr.VarError{Var: v.name,
				Err: fmt.Errorf("partial string writes are not supported by this engine")}
		}
		strs := stringsForWrite(data)
		if err := dset.Write(&strs); err != nil {
			return &obserr.BackendError{Op: "write", Path: v.g.e.path, Err: err}
		}
		return nil
	}

	filespace := dset.Space()
	defer filespace.Close()
	offset := make([]uint, len(sel))
	count := make([]uint, len(sel))
	for d, r := range sel {
		offset[d] = uint(r.Start)
		count[d] = uint(r.Count)
	}
	if err := filespace.SelectHyperslab(offset, nil, count, nil); err != nil {
		return &obserr.BackendError{Op: "write", Path: v.g.e.path, Err: err}
	}
	memspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return &obserr.BackendError{Op: "write", Path: v.g.e.path, Err: err}
	}
	defer memspace.Close()

	switch data.Tag() {
	case obstypes.TagInt:
		vals, _ := obstypes.CellData[int32](data)
		err = dset.WriteSubset(&vals, memspace, filespace)
	default:
		vals, _ := obstypes.CellData[float32](data)
		err = dset.WriteSubset(&vals, memspace, filespace)
	}
	if err != nil {
		return &obserr.BackendError{Op: "write", Path: v.g.e.path, Err: err}
	}
	return nil
}

func stringsForWrite(data obstypes.Cell) []string {
	if data.Tag() == obstypes.TagString {
		strs, _ := obstypes.CellData[string](data)
		return strs
	}
	dts, _ := obstypes.CellData[obstypes.DateTime](data)
	strs := make([]string, len(dts))
	for i, dt := range dts {
		strs[i] = dt.String()
	}
	return strs
}

type h5Atts struct {
	g *h5Group
}

var _ AttStore = h5Atts{}

func (as h5Atts) Create(name string, tag obstypes.Tag, shape []int) (Attribute, error) {
	if !as.g.e.writable {
		return nil, &obserr.BackendError{Op: "create-attribute", Path: as.g.e.path, Err: errReadOnlyEngine}
	}
	if as.Exists(name) {
		return nil, &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrAlreadyExists)}
	}
	dset, err := as.g.openMeta(true)
	if err != nil {
		return nil, err
	}
	defer dset.Close()
	udims := []uint{1}
	if len(shape) > 0 {
		udims = make([]uint, len(shape))
		for i, extent := range shape {
			udims[i] = uint(extent)
		}
	}
	space, err := hdf5.CreateSimpleDataspace(udims, nil)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create-attribute", Path: as.g.e.path, Err: err}
	}
	defer space.Close()
	attr, err := dset.CreateAttribute(name, h5TypeFor(tag), space)
	if err != nil {
		return nil, &obserr.BackendError{Op: "create-attribute", Path: as.g.e.path, Err: err}
	}
	_ = attr.Close()
	return h5Att{g: as.g, name: name, tag: tag, shape: shape}, nil
}

func (as h5Atts) Open(name string) (Attribute, error) {
	dset, err := as.g.openMeta(false)
	if err != nil {
		return nil, &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
	}
	defer dset.Close()
	attr, err := dset.OpenAttribute(name)
	if err != nil {
		return nil, &obserr.VarError{Var: name, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
	}
	defer attr.Close()
	return h5Att{g: as.g, name: name, tag: obstypes.TagInt}, nil
}

func (as h5Atts) Exists(name string) bool {
	_, err := as.Open(name)
	return err == nil
}

func (as h5Atts) Remove(name string) error {
	return &obserr.BackendError{Op: "remove-attribute", Path: as.g.e.path,
		Err: fmt.Errorf("attribute removal is not supported by this engine")}
}

func (as h5Atts) Rename(oldName, newName string) error {
	return &obserr.BackendError{Op: "rename-attribute", Path: as.g.e.path,
		Err: fmt.Errorf("attribute rename is not supported by this engine")}
}

func (as h5Atts) List() []string {
	dset, err := as.g.openMeta(false)
	if err != nil {
		return nil
	}
	defer dset.Close()
	n, err := dset.NumAttrs()
	if err != nil {
		return nil
	}
	var ret []string
	for i := 0; i < n; i++ {
		attr, err := dset.OpenAttributeByIndex(uint(i))
		if err != nil {
			continue
		}
		name := attr.Name()
		_ = attr.Close()
		if !strings.HasPrefix(name, "dim_") {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)
	return ret
}

// h5Att routes whole-value reads and writes to the anchor dataset's
// attribute.  It handles int scalars only: Read decodes a single
// int32 and Write rejects any other type or length, so string
// attributes cannot be read or written through it.
type h5Att struct {
	g     *h5Group
	name  string
	tag   obstypes.Tag
	shape []int
}

var _ Attribute = h5Att{}

func (a h5Att) Name() string      { return a.name }
func (a h5Att) Tag() obstypes.Tag { return a.tag }
func (a h5Att) Shape() []int      { return a.shape }

func (a h5Att) Read() obstypes.Cell {
	dset, err := a.g.openMeta(false)
	if err != nil {
		return obstypes.Cell{}
	}
	defer dset.Close()
	attr, err := dset.OpenAttribute(a.name)
	if err != nil {
		return obstypes.Cell{}
	}
	defer attr.Close()
	var val int32
	if err := attr.Read(&val, hdf5.T_NATIVE_INT32); err != nil {
		return obstypes.Cell{}
	}
	return obstypes.CellOf([]int32{val})
}

func (a h5Att) Write(data obstypes.Cell) error {
	if data.Tag() != obstypes.TagInt || data.Len() != 1 {
		return &obserr.VarError{Var: a.name,
			Err: fmt.Errorf("only int scalar group attributes are supported by this engine: %w", obserr.ErrTypeMismatch)}
	}
	vals, _ := obstypes.CellData[int32](data)
	dset, err := a.g.openMeta(true)
	if err != nil {
		return err
	}
	defer dset.Close()
	attr, err := dset.OpenAttribute(a.name)
	if err != nil {
		return &obserr.VarError{Var: a.name, Err: fmt.Errorf("attribute: %w", obserr.ErrNotFound)}
	}
	defer attr.Close()
	val := vals[0]
	if err := attr.Write(&val, hdf5.T_NATIVE_INT32); err != nil {
		return &obserr.BackendError{Op: "write-attribute", Path: a.g.e.path, Err: err}
	}
	return nil
}

func h5TypeFor(tag obstypes.Tag) *hdf5.Datatype {
	switch tag {
	case obstypes.TagInt:
		return hdf5.T_NATIVE_INT32
	case obstypes.TagFloat:
		return hdf5.T_NATIVE_FLOAT
	default:
		return hdf5.T_GO_STRING
	}
}

// tagForDataset maps an on-disk type to a primitive tag; dbl reports
// that the data is double-width and wants downcasting on read.
func tagForDataset(dset *hdf5.Dataset) (tag obstypes.Tag, dbl bool) {
	dtype, err := dset.Datatype()
	if err != nil {
		return obstypes.TagInvalid, false
	}
	defer dtype.Close()
	switch dtype.Class() {
	case hdf5.T_INTEGER:
		return obstypes.TagInt, false
	case hdf5.T_FLOAT:
		return obstypes.TagFloat, dtype.Size() == 8
	case hdf5.T_STRING:
		return obstypes.TagString, false
	default:
		return obstypes.TagInvalid, false
	}
}

func datasetShape(dset *hdf5.Dataset) []int {
	space := dset.Space()
	defer space.Close()
	udims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil
	}
	shape := make([]int, len(udims))
	for i, extent := range udims {
		shape[i] = int(extent)
	}
	return shape
}

func writeStringAttr(dset *hdf5.Dataset, name, val string) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return err
	}
	defer space.Close()
	attr, err := dset.CreateAttribute(name, hdf5.T_GO_STRING, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	return attr.Write(&val, hdf5.T_GO_STRING)
}
