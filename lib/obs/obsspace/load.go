// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace

import (
	"context"
	"fmt"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obsconfig"
	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
	"github.com/maxrathmann/ioda/lib/textui"
)

type loadStats struct {
	N, D int
}

func (st loadStats) String() string {
	return textui.Sprintf("read %v columns", textui.Portion[int]{N: st.N, D: st.D})
}

// engineOptions maps the config surface onto engine options.
func engineOptions(cfg obsconfig.ObsSpace, write bool) (obsengines.Options, error) {
	opts := obsengines.Options{
		Write:      write,
		CreateMode: obsengines.CreateTruncate,
		OpenMode:   obsengines.OpenReadOnly,
		HDF5: obsengines.HDF5Options{
			ImageInitialSize:     cfg.HDF5.MemoryImageInitialSize,
			ImageGrowthIncrement: cfg.HDF5.MemoryImageGrowthIncrement,
			FlushOnClose:         cfg.HDF5.FlushOnClose,
		},
	}
	if len(cfg.HDF5.CompatibilityRange) == 2 {
		var err error
		if opts.HDF5.CompatLow, err = obsengines.ParseCompatVersion(cfg.HDF5.CompatibilityRange[0]); err != nil {
			return opts, err
		}
		if opts.HDF5.CompatHigh, err = obsengines.ParseCompatVersion(cfg.HDF5.CompatibilityRange[1]); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Load builds an ObsSpace from a configured obs file: open the
// backend, scan the axes, distribute locations across ranks, drop
// out-of-window observations, then project every selectable variable
// onto the owned index list.
func Load(ctx context.Context, cfg obsconfig.ObsSpace, comm obsdist.Comm) (s *ObsSpace, err error) {
	_, _, err = cfg.Window()
	if err != nil {
		return nil, err
	}
	path := cfg.ObsDataIn.ObsFile
	if path == "" {
		return nil, fmt.Errorf("obsdatain.obsfile is required: %w", obserr.ErrInvalidConfig)
	}
	format := cfg.ObsDataIn.Engine
	if format == "" {
		format = obsengines.FormatForPath(path)
	}
	opts, err := engineOptions(cfg, false)
	if err != nil {
		return nil, err
	}

	ctx = dlog.WithField(ctx, "ioda.obsspace", cfg.ObsType)
	ctx = dlog.WithField(ctx, "ioda.ingest.file", path)

	eng, err := obsengines.Open(ctx, format, path, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil && err == nil {
			s, err = nil, cerr
		}
	}()
	return LoadFromEngine(ctx, cfg, eng, comm)
}

// LoadFromEngine runs the ingest pipeline against an already-open
// backend.  The caller keeps ownership of the engine.
func LoadFromEngine(ctx context.Context, cfg obsconfig.ObsSpace, eng obsengines.Engine, comm obsdist.Comm) (*ObsSpace, error) {
	begin, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	s := New(cfg.ObsType, begin, end, comm)
	root := eng.Root()

	scan, err := Scan(root)
	if err != nil {
		return nil, err
	}
	if scan.Legacy {
		dlog.Debugf(ctx, "legacy obs file: nobs=%d nvars=%d nlocs=%d",
			scan.Axes["nobs"], scan.NVars, scan.NLocsGlobal)
	} else {
		dlog.Debugf(ctx, "modern obs file: nlocs=%d nvars=%d", scan.NLocsGlobal, scan.NVars)
	}

	records, err := readRecords(root, scan)
	if err != nil {
		return nil, err
	}
	dist, err := obsdist.New(cfg.Distribution, comm, scan.NLocsGlobal, records)
	if err != nil {
		return nil, err
	}
	s.dist = dist

	times, offsetVar, err := applyTimeWindow(ctx, root, scan, WindowFilter{Begin: begin, End: end}, dist)
	if err != nil {
		return nil, err
	}
	owned := dist.Index()

	varNames := scan.DataVarList()
	prog := textui.NewProgress[loadStats](ctx, dlog.LogLevelInfo, textui.Tunable(time.Second))
	prog.Set(loadStats{D: len(varNames)})
	for n, name := range varNames {
		if name == offsetVar && times != nil {
			// consumed by the filter; replaced by derived fields
			continue
		}
		if err := s.loadVariable(root, scan, name, owned); err != nil {
			prog.Done()
			return nil, err
		}
		prog.Set(loadStats{N: n + 1, D: len(varNames)})
	}
	prog.Done()

	if times != nil {
		if err := s.storeDerivedTimes(times, owned); err != nil {
			return nil, err
		}
	}

	s.nlocs = len(owned)
	s.nvars = scan.NVars
	s.nrecs = countRecords(records, owned)
	dlog.Infof(ctx, "loaded %d variables: nlocs=%d nvars=%d nrecs=%d",
		len(s.arena), s.nlocs, s.nvars, s.nrecs)
	return s, nil
}

// readRecords pulls the record-group vector, when the file has one.
func readRecords(root obsengines.Group, scan *ScanResult) ([]int, error) {
	const recordVar = "record_number@MetaData"
	if _, ok := scan.DimsAttachedToVars[recordVar]; !ok {
		return nil, nil
	}
	v, err := root.Vars().Open(recordVar)
	if err != nil {
		return nil, err
	}
	cell, err := v.ReadRange(obstypes.WholeShape(v.Shape()))
	if err != nil {
		return nil, err
	}
	ids, err := obstypes.CellData[int32](cell)
	if err != nil {
		return nil, &obserr.VarError{Var: recordVar, Err: err}
	}
	if len(ids) != scan.NLocsGlobal {
		return nil, &obserr.VarError{Var: recordVar,
			Err: fmt.Errorf("record vector has %d entries for %d locations: %w",
				len(ids), scan.NLocsGlobal, obserr.ErrLengthMismatch)}
	}
	ret := make([]int, len(ids))
	for i, id := range ids {
		ret[i] = int(id)
	}
	return ret, nil
}

// applyTimeWindow runs the filter when the file carries a reference
// timestamp and an offset variable; otherwise every index is
// retained and no fields are derived.
func applyTimeWindow(ctx context.Context, root obsengines.Group, scan *ScanResult,
	filter WindowFilter, dist obsdist.Distribution,
) (times []obstypes.DateTime, offsetVar string, err error) {
	att := obsengines.LookupAttr(root.Atts(), "date_time")
	if !att.OK {
		// no reference timestamp: everything is retained and no
		// fields are derived
		return nil, "", nil
	}
	refRaw, err := obstypes.CellData[int32](att.Val.Read())
	if err != nil || len(refRaw) == 0 {
		return nil, "", &obserr.VarError{Var: "date_time",
			Err: fmt.Errorf("reference attribute is not an int scalar: %w", obserr.ErrTypeMismatch)}
	}
	ref, err := obstypes.DateTimeFromRef(int(refRaw[0]))
	if err != nil {
		return nil, "", fmt.Errorf("%v: %w", err, obserr.ErrInvalidConfig)
	}

	for _, name := range []string{"time@MetaData", "time"} {
		if _, ok := scan.DimsAttachedToVars[name]; ok {
			offsetVar = name
			break
		}
	}
	if offsetVar == "" {
		return nil, "", nil
	}

	v, err := root.Vars().Open(offsetVar)
	if err != nil {
		return nil, "", err
	}
	cell, err := v.ReadRange(obstypes.WholeShape(v.Shape()))
	if err != nil {
		return nil, "", err
	}
	offsets, err := obstypes.CellData[float32](cell)
	if err != nil {
		return nil, "", &obserr.VarError{Var: offsetVar, Err: err}
	}
	// legacy radiance files carry one offset per (location, channel)
	if scan.Legacy && scan.NVars > 1 && len(offsets) == scan.NLocsGlobal*scan.NVars {
		sampled := make([]float32, scan.NLocsGlobal)
		for i := range sampled {
			sampled[i] = offsets[i*scan.NVars]
		}
		offsets = sampled
	}
	if len(offsets) != scan.NLocsGlobal {
		return nil, "", &obserr.VarError{Var: offsetVar,
			Err: fmt.Errorf("offset variable has %d entries for %d locations: %w",
				len(offsets), scan.NLocsGlobal, obserr.ErrLengthMismatch)}
	}
	return filter.Apply(ctx, ref, offsets, dist), offsetVar, nil
}

// loadVariable reads one column, reshapes legacy per-obs layouts to
// (nlocs, nvars), projects onto the owned index list, applies the
// missing-value substitution, and inserts the record read-only.
func (s *ObsSpace) loadVariable(root obsengines.Group, scan *ScanResult, name string, owned []int) error {
	v, err := root.Vars().Open(name)
	if err != nil {
		return err
	}
	shape := append([]int(nil), v.Shape()...)
	cell, err := v.ReadRange(obstypes.WholeShape(shape))
	if err != nil {
		return err
	}

	// legacy per-obs columns become (nlocs, nvars)
	if scan.Legacy && scan.NVars > 1 && len(shape) == 1 && shape[0] == scan.NLocsGlobal*scan.NVars {
		shape = []int{scan.NLocsGlobal, scan.NVars}
	}

	locsDim := scan.LocationsDimensioned(name)
	if locsDim && len(shape) > 0 && shape[0] == scan.NLocsGlobal {
		if cell, err = projectLeading(cell, shape, owned); err != nil {
			return &obserr.VarError{Var: name, Err: err}
		}
		shape[0] = len(owned)
	}

	k := SplitVarName(name)
	if k.Name == "datetime" && cell.Tag() == obstypes.TagString {
		if cell, err = parseDateTimes(cell); err != nil {
			return &obserr.VarError{Group: k.Group, Var: k.Name, Err: err}
		}
	}
	if cell.Tag() == obstypes.TagFloat {
		vals, _ := obstypes.CellData[float32](cell)
		obstypes.SubstituteMissingFloats(vals)
	}

	stored, err := newStoreVariable(k, cell.Tag(), shape)
	if err != nil {
		return err
	}
	if err := stored.Write(obstypes.WholeShape(shape), cell); err != nil {
		return wrapGroup(k.Group, err)
	}
	return s.insert(k, stored, locsDim, true)
}

// projectLeading gathers the owned rows of a column whose leading
// axis is the locations axis.
func projectLeading(cell obstypes.Cell, shape []int, owned []int) (obstypes.Cell, error) {
	tail := 1
	for _, extent := range shape[1:] {
		tail *= extent
	}
	if tail == 1 {
		return cell.Project(owned)
	}
	ret := obstypes.NewCell(cell.Tag(), len(owned)*tail)
	for dst, loc := range owned {
		if err := ret.CopySpan(dst*tail, cell, loc*tail, tail); err != nil {
			return obstypes.Cell{}, err
		}
	}
	return ret, nil
}

func parseDateTimes(cell obstypes.Cell) (obstypes.Cell, error) {
	strs, err := obstypes.CellData[string](cell)
	if err != nil {
		return obstypes.Cell{}, err
	}
	dts := make([]obstypes.DateTime, len(strs))
	for i, str := range strs {
		if dts[i], err = obstypes.ParseDateTime(str); err != nil {
			return obstypes.Cell{}, err
		}
	}
	return obstypes.CellOf(dts), nil
}

// storeDerivedTimes projects the derived timestamps onto the owned
// rows and stores the datetime column plus the integer yyyymmdd /
// hhmmss encodings.
func (s *ObsSpace) storeDerivedTimes(times []obstypes.DateTime, owned []int) error {
	dts := make([]obstypes.DateTime, len(owned))
	dates := make([]int32, len(owned))
	clocks := make([]int32, len(owned))
	for dst, loc := range owned {
		dts[dst] = times[loc]
		dates[dst] = times[loc].Date()
		clocks[dst] = times[loc].ClockTime()
	}
	for _, col := range []struct {
		name string
		cell obstypes.Cell
	}{
		{"datetime", obstypes.CellOf(dts)},
		{"date", obstypes.CellOf(dates)},
		{"time", obstypes.CellOf(clocks)},
	} {
		k := Key{Group: "MetaData", Name: col.name}
		// derived fields supersede same-named file columns
		if s.Has(k.Group, k.Name) {
			if err := s.Remove(k.Group, k.Name); err != nil {
				return err
			}
		}
		v, err := newStoreVariable(k, col.cell.Tag(), []int{len(owned)})
		if err != nil {
			return err
		}
		if err := v.Write(obstypes.WholeShape([]int{len(owned)}), col.cell); err != nil {
			return wrapGroup(k.Group, err)
		}
		if err := s.insert(k, v, true, true); err != nil {
			return err
		}
	}
	return nil
}

func countRecords(records []int, owned []int) int {
	if records == nil {
		return len(owned)
	}
	distinct := containers.NewSet[int]()
	for _, loc := range owned {
		distinct.Insert(records[loc])
	}
	return len(distinct)
}
