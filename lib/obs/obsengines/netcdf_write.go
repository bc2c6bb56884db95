// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsengines

import (
	"fmt"
	"os"
	"strings"

	"bitbucket.org/ctessum/cdf"

	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
	"github.com/maxrathmann/ioda/lib/slices"
)

// datetimes are persisted as fixed-width ISO-8601 char rows
const datetimeWidth = 20

// materialize turns the staged tree into a classic NetCDF file.  The
// header must be complete before the first data byte, which is the
// whole reason the write side stages.  A failure partway through
// leaves the partial file on disk for postmortem.
func (e *ncEngine) materialize() (err error) {
	flag := os.O_WRONLY | os.O_CREATE
	switch e.createMode {
	case CreateFailIfExists:
		flag |= os.O_EXCL
	case CreateTruncate:
		flag |= os.O_TRUNC
	}
	osFile, err := os.OpenFile(e.path, flag, 0o666)
	if err != nil {
		return &obserr.BackendError{Op: "create", Path: e.path, Err: err}
	}
	defer func() {
		if cerr := osFile.Close(); cerr != nil && err == nil {
			err = &obserr.BackendError{Op: "close", Path: e.path, Err: cerr}
		}
	}()

	// axis set: declared dims first, then the char-width dims, then
	// anything a variable needs that was never declared
	dims := make(map[string]int)
	for name, extent := range e.staged.Dims() {
		dims[name] = extent
	}

	varNames := e.staged.Vars().List()
	varDims := make(map[string][]string, len(varNames))
	for _, name := range varNames {
		v, err := e.staged.Vars().Open(name)
		if err != nil {
			return err
		}
		dimNames := append([]string(nil), v.Dimensions()...)
		if len(dimNames) != len(v.Shape()) {
			dimNames = dimNames[:0]
			for _, extent := range v.Shape() {
				dimNames = append(dimNames, fmt.Sprintf("len%d", extent))
			}
		}
		for d, dimName := range dimNames {
			dims[dimName] = v.Shape()[d]
		}
		switch v.Tag() {
		case obstypes.TagString:
			width := maxStringWidth(v)
			widthDim := fmt.Sprintf("nstring%d", width)
			dims[widthDim] = width
			dimNames = append(dimNames, widthDim)
		case obstypes.TagDateTime:
			dims["ndatetime"] = datetimeWidth
			dimNames = append(dimNames, "ndatetime")
		}
		varDims[name] = dimNames
	}

	dimNames := orderedDimNames(dims)
	dimLens := make([]int, len(dimNames))
	for i, name := range dimNames {
		dimLens[i] = dims[name]
	}

	h := cdf.NewHeader(dimNames, dimLens)
	for _, name := range e.staged.Atts().List() {
		att, err := e.staged.Atts().Open(name)
		if err != nil {
			return err
		}
		h.AddAttribute("", name, attToNative(att.Read()))
	}
	for _, name := range varNames {
		v, err := e.staged.Vars().Open(name)
		if err != nil {
			return err
		}
		h.AddVariable(name, varDims[name], zeroForTag(v.Tag()))
	}
	h.Define()

	f, err := cdf.Create(osFile, h)
	if err != nil {
		return &obserr.BackendError{Op: "define", Path: e.path, Err: err}
	}
	for _, name := range varNames {
		v, err := e.staged.Vars().Open(name)
		if err != nil {
			return err
		}
		data, err := v.ReadAll()
		if err != nil {
			return err
		}
		w := f.Writer(name, nil, nil)
		if _, err := w.Write(cellToNative(data, varDims[name], dims)); err != nil {
			return &obserr.BackendError{Op: "write", Path: e.path, Err: fmt.Errorf("variable %q: %w", name, err)}
		}
	}
	return nil
}

// orderedDimNames puts the privileged axes first, in their
// conventional order, and sorts the rest.
func orderedDimNames(dims map[string]int) []string {
	var ret []string
	for _, name := range []string{"nlocs", "nobs", "nrecs", "nvars", "nchans"} {
		if _, ok := dims[name]; ok {
			ret = append(ret, name)
		}
	}
	var rest []string
	for name := range dims {
		if !slices.Contains(name, ret) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(ret, rest...)
}

func maxStringWidth(v *obsstore.Variable) int {
	data, err := v.ReadAll()
	if err != nil {
		return 1
	}
	vals, err := obstypes.CellData[string](data)
	if err != nil {
		return 1
	}
	width := 1
	for _, s := range vals {
		if len(s) > width {
			width = len(s)
		}
	}
	return width
}

func zeroForTag(tag obstypes.Tag) interface{} {
	switch tag {
	case obstypes.TagInt:
		return []int32{}
	case obstypes.TagFloat:
		return []float32{}
	default:
		return ""
	}
}

// attToNative converts an attribute cell to the library's value
// model; scalar strings stay strings.
func attToNative(cell obstypes.Cell) interface{} {
	switch cell.Tag() {
	case obstypes.TagInt:
		vals, _ := obstypes.CellData[int32](cell)
		return vals
	case obstypes.TagFloat:
		vals, _ := obstypes.CellData[float32](cell)
		return vals
	case obstypes.TagString:
		vals, _ := obstypes.CellData[string](cell)
		return strings.Join(vals, "")
	default:
		vals, _ := obstypes.CellData[obstypes.DateTime](cell)
		strs := make([]string, len(vals))
		for i, dt := range vals {
			strs[i] = dt.String()
		}
		return strings.Join(strs, "")
	}
}

// cellToNative converts a variable cell to the flat value the writer
// wants; strings and datetimes become space-padded char payloads.
func cellToNative(cell obstypes.Cell, dimNames []string, dims map[string]int) interface{} {
	switch cell.Tag() {
	case obstypes.TagInt:
		vals, _ := obstypes.CellData[int32](cell)
		return vals
	case obstypes.TagFloat:
		vals, _ := obstypes.CellData[float32](cell)
		return vals
	case obstypes.TagString:
		width := dims[dimNames[len(dimNames)-1]]
		vals, _ := obstypes.CellData[string](cell)
		return padChars(vals, width)
	default:
		vals, _ := obstypes.CellData[obstypes.DateTime](cell)
		strs := make([]string, len(vals))
		for i, dt := range vals {
			strs[i] = dt.String()
		}
		return padChars(strs, datetimeWidth)
	}
}

func padChars(vals []string, width int) string {
	var sb strings.Builder
	sb.Grow(len(vals) * width)
	for _, s := range vals {
		if len(s) > width {
			s = s[:width]
		}
		sb.WriteString(s)
		for pad := width - len(s); pad > 0; pad-- {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
