// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsengines

import (
	"context"
	"fmt"

	"github.com/maxrathmann/ioda/lib/binenc"
	"github.com/maxrathmann/ioda/lib/diskio"
	"github.com/maxrathmann/ioda/lib/maps"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// The memory-image engine keeps the whole dataset in process.  Its
// serialized image lives on a diskio.MemFile sized by the configured
// initial allocation and growth increment, and can be shipped to
// another rank without touching the filesystem.  On Close the image
// is refreshed and, when flush-on-close is set, the dataset is
// written to disk through the HDF5 file engine.

func init() {
	register("hdf5-mem", openMemImage)
}

var imageMagic = []byte("IODAIMG1")

type MemImageEngine struct {
	path  string
	opts  HDF5Options
	write bool

	tree *obsstore.Group
	img  *diskio.MemFile[int64]
}

func openMemImage(ctx context.Context, path string, opts Options) (Engine, error) {
	e := &MemImageEngine{
		path:  path,
		opts:  opts.HDF5,
		write: opts.Write,
		tree:  obsstore.NewRoot(),
		img: diskio.NewMemFile[int64](path,
			opts.HDF5.ImageInitialSize, opts.HDF5.ImageGrowthIncrement),
	}
	if !opts.Write {
		// populate the image from the on-disk file
		inner, err := Open(ctx, "hdf5", path, Options{OpenMode: OpenReadOnly})
		if err != nil {
			return nil, err
		}
		defer func() { _ = inner.Close() }()
		if err := CopyGroup(memGroup{g: e.tree}, inner.Root()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// OpenImage reconstructs an engine from a serialized image, e.g. one
// broadcast from another rank.
func OpenImage(buf []byte, opts HDF5Options) (*MemImageEngine, error) {
	e := &MemImageEngine{
		opts:  opts,
		tree:  obsstore.NewRoot(),
		img:   diskio.NewMemFile[int64]("", opts.ImageInitialSize, opts.ImageGrowthIncrement),
	}
	if _, err := e.img.WriteAt(buf, 0); err != nil {
		return nil, err
	}
	if err := decodeImage(buf, e.tree); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *MemImageEngine) FormatName() string { return "hdf5-mem" }
func (e *MemImageEngine) Root() Group        { return memGroup{g: e.tree} }

func (e *MemImageEngine) Capabilities() Capabilities {
	return Capabilities{
		PartialIO:         true,
		AttributeRename:   true,
		Grouping:          true,
		ConcurrentReaders: true,
	}
}

// Image serializes the current tree and returns the image bytes.
// The returned slice is shared with the engine's buffer.
func (e *MemImageEngine) Image() ([]byte, error) {
	buf := append([]byte(nil), imageMagic...)
	buf = encodeGroup(buf, e.tree)
	e.img.Truncate()
	if _, err := e.img.WriteAt(buf, 0); err != nil {
		return nil, err
	}
	return e.img.Bytes(), nil
}

func (e *MemImageEngine) Close() error {
	if _, err := e.Image(); err != nil {
		return err
	}
	if e.write && e.opts.FlushOnClose && e.path != "" {
		inner, err := Open(context.Background(), "hdf5", e.path, Options{
			Write:      true,
			CreateMode: CreateTruncate,
			HDF5:       e.opts,
		})
		if err != nil {
			return err
		}
		if err := CopyGroup(inner.Root(), memGroup{g: e.tree}); err != nil {
			_ = inner.Close()
			return err
		}
		return inner.Close()
	}
	return nil
}

func encodeGroup(buf []byte, g *obsstore.Group) []byte {
	atts := g.Atts().List()
	buf = binenc.PutU64(buf, uint64(len(atts)))
	for _, name := range atts {
		att, _ := g.Atts().Open(name)
		buf = binenc.AppendString(buf, name)
		buf = binenc.PutU64(buf, uint64(att.Tag()))
		buf = encodeCell(buf, att.Read())
	}

	vars := g.Vars().List()
	buf = binenc.PutU64(buf, uint64(len(vars)))
	for _, name := range vars {
		v, _ := g.Vars().Open(name)
		buf = binenc.AppendString(buf, name)
		buf = binenc.PutU64(buf, uint64(v.Tag()))
		buf = binenc.PutU64(buf, uint64(len(v.Shape())))
		for _, extent := range v.Shape() {
			buf = binenc.PutU64(buf, uint64(extent))
		}
		dims := v.Dimensions()
		buf = binenc.PutU64(buf, uint64(len(dims)))
		for _, dim := range dims {
			buf = binenc.AppendString(buf, dim)
		}
		data, _ := v.ReadAll()
		buf = encodeCell(buf, data)
	}

	dims := g.Dims()
	buf = binenc.PutU64(buf, uint64(len(dims)))
	for _, name := range maps.SortedKeys(dims) {
		buf = binenc.AppendString(buf, name)
		buf = binenc.PutU64(buf, uint64(dims[name]))
	}

	children := g.List()
	buf = binenc.PutU64(buf, uint64(len(children)))
	for _, name := range children {
		child, _ := g.Open(name)
		buf = binenc.AppendString(buf, name)
		buf = encodeGroup(buf, child)
	}
	return buf
}

func encodeCell(buf []byte, cell obstypes.Cell) []byte {
	buf = binenc.PutU64(buf, uint64(cell.Len()))
	switch cell.Tag() {
	case obstypes.TagInt:
		vals, _ := obstypes.CellData[int32](cell)
		buf = binenc.AppendInt32s(buf, vals)
	case obstypes.TagFloat:
		vals, _ := obstypes.CellData[float32](cell)
		buf = binenc.AppendFloat32s(buf, vals)
	case obstypes.TagString:
		vals, _ := obstypes.CellData[string](cell)
		for _, s := range vals {
			buf = binenc.AppendString(buf, s)
		}
	case obstypes.TagDateTime:
		vals, _ := obstypes.CellData[obstypes.DateTime](cell)
		for _, dt := range vals {
			buf = binenc.PutU64(buf, uint64(dt.Unix()))
		}
	}
	return buf
}

type imageCursor struct {
	buf []byte
	off int
}

func (c *imageCursor) fail(what string) error {
	return &obserr.BackendError{Op: "decode-image",
		Err: fmt.Errorf("truncated image at offset %d reading %s", c.off, what)}
}

func (c *imageCursor) u64(what string) (uint64, error) {
	val, n := binenc.U64(c.buf[c.off:])
	if n < 0 {
		return 0, c.fail(what)
	}
	c.off += n
	return val, nil
}

func (c *imageCursor) str(what string) (string, error) {
	val, n := binenc.String(c.buf[c.off:])
	if n < 0 {
		return "", c.fail(what)
	}
	c.off += n
	return val, nil
}

func decodeImage(buf []byte, root *obsstore.Group) error {
	if len(buf) < len(imageMagic) || string(buf[:len(imageMagic)]) != string(imageMagic) {
		return &obserr.BackendError{Op: "decode-image", Err: fmt.Errorf("bad image magic")}
	}
	c := &imageCursor{buf: buf, off: len(imageMagic)}
	return decodeGroup(c, root)
}

func decodeGroup(c *imageCursor, g *obsstore.Group) error {
	natts, err := c.u64("attribute count")
	if err != nil {
		return err
	}
	for i := uint64(0); i < natts; i++ {
		name, err := c.str("attribute name")
		if err != nil {
			return err
		}
		tag, err := c.u64("attribute tag")
		if err != nil {
			return err
		}
		cell, err := decodeCell(c, obstypes.Tag(tag))
		if err != nil {
			return err
		}
		att, err := g.Atts().Create(name, obstypes.Tag(tag), []int{cell.Len()})
		if err != nil {
			return err
		}
		if err := att.Write(cell); err != nil {
			return err
		}
	}

	nvars, err := c.u64("variable count")
	if err != nil {
		return err
	}
	for i := uint64(0); i < nvars; i++ {
		name, err := c.str("variable name")
		if err != nil {
			return err
		}
		tag, err := c.u64("variable tag")
		if err != nil {
			return err
		}
		rank, err := c.u64("variable rank")
		if err != nil {
			return err
		}
		shape := make([]int, rank)
		for d := range shape {
			extent, err := c.u64("variable extent")
			if err != nil {
				return err
			}
			shape[d] = int(extent)
		}
		ndims, err := c.u64("dimension-name count")
		if err != nil {
			return err
		}
		dims := make([]string, ndims)
		for d := range dims {
			if dims[d], err = c.str("dimension name"); err != nil {
				return err
			}
		}
		cell, err := decodeCell(c, obstypes.Tag(tag))
		if err != nil {
			return err
		}
		v, err := g.Vars().Create(name, obstypes.Tag(tag), shape, nil)
		if err != nil {
			return err
		}
		if len(dims) > 0 {
			v.SetDimensions(dims)
		}
		if err := v.Write(obstypes.WholeShape(shape), cell); err != nil {
			return err
		}
	}

	ndims, err := c.u64("axis count")
	if err != nil {
		return err
	}
	for i := uint64(0); i < ndims; i++ {
		name, err := c.str("axis name")
		if err != nil {
			return err
		}
		extent, err := c.u64("axis extent")
		if err != nil {
			return err
		}
		g.DefineDim(name, int(extent))
	}

	nchildren, err := c.u64("child count")
	if err != nil {
		return err
	}
	for i := uint64(0); i < nchildren; i++ {
		name, err := c.str("child name")
		if err != nil {
			return err
		}
		child, err := g.Create(name)
		if err != nil {
			return err
		}
		if err := decodeGroup(c, child); err != nil {
			return err
		}
	}
	return nil
}

func decodeCell(c *imageCursor, tag obstypes.Tag) (obstypes.Cell, error) {
	n, err := c.u64("element count")
	if err != nil {
		return obstypes.Cell{}, err
	}
	switch tag {
	case obstypes.TagInt:
		vals, used := binenc.Int32s(c.buf[c.off:], int(n))
		if used < 0 {
			return obstypes.Cell{}, c.fail("int data")
		}
		c.off += used
		return obstypes.CellOf(vals), nil
	case obstypes.TagFloat:
		vals, used := binenc.Float32s(c.buf[c.off:], int(n))
		if used < 0 {
			return obstypes.Cell{}, c.fail("float data")
		}
		c.off += used
		return obstypes.CellOf(vals), nil
	case obstypes.TagString:
		vals := make([]string, n)
		for i := range vals {
			if vals[i], err = c.str("string data"); err != nil {
				return obstypes.Cell{}, err
			}
		}
		return obstypes.CellOf(vals), nil
	case obstypes.TagDateTime:
		vals := make([]obstypes.DateTime, n)
		for i := range vals {
			secs, err := c.u64("datetime data")
			if err != nil {
				return obstypes.Cell{}, err
			}
			vals[i] = obstypes.DateTimeFromUnix(int64(secs))
		}
		return obstypes.CellOf(vals), nil
	default:
		return obstypes.Cell{}, &obserr.BackendError{Op: "decode-image",
			Err: fmt.Errorf("bad tag %d at offset %d", tag, c.off)}
	}
}

