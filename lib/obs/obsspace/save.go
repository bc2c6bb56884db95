// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// Save persists the container through a backend: modern layout, axes
// from the current counts, every record written whole as
// "variable@group" in by-variable iteration order.
//
// Each rank writes its own file; filename decoration with the rank
// index is the caller's business.
func (s *ObsSpace) Save(ctx context.Context, path string) error {
	return s.SaveAs(ctx, obsengines.FormatForPath(path), path, obsengines.Options{
		Write:      true,
		CreateMode: obsengines.CreateTruncate,
	})
}

// SaveAs is Save with the engine format and options pinned by the
// caller.
func (s *ObsSpace) SaveAs(ctx context.Context, format, path string, opts obsengines.Options) (err error) {
	ctx = dlog.WithField(ctx, "ioda.save.file", path)

	eng, err := obsengines.Open(ctx, format, path, opts)
	if err != nil {
		return err
	}
	defer func() {
		// the NetCDF engine materializes on Close; a failure there
		// leaves the partial file on disk for postmortem, and the
		// in-memory state is untouched
		if cerr := eng.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	root := eng.Root()
	nvars := s.nvars
	if nvars < 1 {
		nvars = 1
	}
	nrecs := s.nrecs
	if nrecs < 1 {
		nrecs = s.nlocs
	}
	axes := map[string]int{
		"nlocs": s.nlocs,
		"nobs":  s.nlocs * nvars,
		"nrecs": nrecs,
		"nvars": nvars,
	}
	for _, name := range []string{"nlocs", "nobs", "nrecs", "nvars"} {
		if err := root.DefineDim(name, axes[name]); err != nil {
			return err
		}
	}

	views := s.ByVariable()
	for _, view := range views {
		rec, err := s.lookup(view.Group, view.Name)
		if err != nil {
			return err
		}
		data, err := rec.v.ReadAll()
		if err != nil {
			return wrapGroup(view.Group, err)
		}
		dims := make([]string, len(view.Shape))
		for d, extent := range view.Shape {
			dims[d] = axisForExtent(axes, extent)
		}
		if view.LocsDimensioned && len(dims) > 0 {
			dims[0] = "nlocs"
		}
		flat := Key{Group: view.Group, Name: view.Name}.FlatName()
		v, err := root.Vars().Create(flat, view.Tag, view.Shape, obsengines.VarOpts{Dims: dims})
		if err != nil {
			return err
		}
		if err := v.WriteRange(obstypes.WholeShape(view.Shape), data); err != nil {
			return err
		}
	}
	dlog.Infof(ctx, "wrote %d variables: nlocs=%d nvars=%d", len(views), s.nlocs, s.nvars)
	return nil
}
