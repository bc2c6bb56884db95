// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace

import (
	"fmt"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/slices"
)

// axisNames are the dimension names the scanner treats as axes; a
// variable whose name matches one is a coordinate, not obs data.
var axisNames = containers.NewSet("nlocs", "nvars", "nobs", "nrecs", "nchans")

// A ScanResult is what the dimension/variable scanner learned about
// an open file.
type ScanResult struct {
	// DimVarList names the variables that are themselves
	// coordinates (their name matches an axis name).
	DimVarList []string

	// DimsAttachedToVars maps each data variable to the ordered
	// names of its dimensions.
	DimsAttachedToVars map[string][]string

	// Axes is the file's named axis set.
	Axes map[string]int

	// Legacy reports the old format: no nrecs dimension.
	Legacy bool

	// NLocsGlobal is the pre-distribution location count; in
	// legacy files it is nobs / nvars.
	NLocsGlobal int
	NVars       int
}

// Scan walks the variables of an open group and computes the axis
// sizes, the coordinate list, and each variable's dimension names.
//
// Legacy detection is the presence of the nrecs dimension; there is
// no version number, and the heuristic must stay exactly this for
// compatibility with existing files.
func Scan(root obsengines.Group) (*ScanResult, error) {
	ret := &ScanResult{
		DimsAttachedToVars: make(map[string][]string),
		Axes:               make(map[string]int),
	}
	for name, extent := range root.Dims() {
		ret.Axes[name] = extent
	}

	for _, name := range root.Vars().List() {
		if axisNames.Has(name) {
			ret.DimVarList = append(ret.DimVarList, name)
			continue
		}
		v, err := root.Vars().Open(name)
		if err != nil {
			return nil, err
		}
		dims := v.Dimensions()
		shape := v.Shape()
		if len(dims) != len(shape) {
			// engines without dimension tracking: fall back to the
			// axis whose extent matches, else a synthetic name
			dims = make([]string, len(shape))
			for d, extent := range shape {
				dims[d] = axisForExtent(ret.Axes, extent)
			}
		}
		ret.DimsAttachedToVars[name] = dims
	}

	_, hasNRecs := ret.Axes["nrecs"]
	ret.Legacy = !hasNRecs

	if ret.Legacy {
		nobs, ok := ret.Axes["nobs"]
		if !ok {
			if nlocs, ok := ret.Axes["nlocs"]; ok {
				// degenerate but seen in the wild: legacy layout
				// that already carries nlocs
				ret.NLocsGlobal = nlocs
				ret.NVars = 1
				return ret, nil
			}
			return nil, fmt.Errorf("legacy obs file has no nobs dimension: %w", obserr.ErrInvalidConfig)
		}
		ret.NVars = 1
		if nchans, ok := ret.Axes["nchans"]; ok {
			ret.NVars = nchans
		}
		if ret.NVars <= 0 || nobs%ret.NVars != 0 {
			return nil, fmt.Errorf("nobs %d is not divisible by nvars %d: %w",
				nobs, ret.NVars, obserr.ErrInvalidConfig)
		}
		ret.NLocsGlobal = nobs / ret.NVars
		return ret, nil
	}

	nlocs, ok := ret.Axes["nlocs"]
	if !ok {
		return nil, fmt.Errorf("modern obs file has no nlocs dimension: %w", obserr.ErrInvalidConfig)
	}
	ret.NLocsGlobal = nlocs
	ret.NVars = 1
	if nvars, ok := ret.Axes["nvars"]; ok {
		ret.NVars = nvars
	}
	return ret, nil
}

// LocationsDimensioned reports whether a scanned variable's leading
// axis is the locations axis.  In legacy files every rank-1 variable
// is treated as locations-dimensioned.
func (sr *ScanResult) LocationsDimensioned(name string) bool {
	dims, ok := sr.DimsAttachedToVars[name]
	if !ok || len(dims) == 0 {
		return false
	}
	if sr.Legacy {
		return len(dims) == 1
	}
	return dims[0] == "nlocs"
}

// DataVarList returns the scanned data variables in a stable order.
func (sr *ScanResult) DataVarList() []string {
	ret := make([]string, 0, len(sr.DimsAttachedToVars))
	for name := range sr.DimsAttachedToVars {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

func axisForExtent(axes map[string]int, extent int) string {
	for _, name := range []string{"nlocs", "nobs", "nvars", "nchans", "nrecs"} {
		if axes[name] == extent {
			return name
		}
	}
	return fmt.Sprintf("len%d", extent)
}
