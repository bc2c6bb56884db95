// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

func TestScanLegacyRadiance(t *testing.T) {
	t.Parallel()
	root := obsengines.NewMemEngine().Root()
	require.NoError(t, root.DefineDim("nobs", 20))
	require.NoError(t, root.DefineDim("nchans", 4))
	mkVar(t, root, "brightness_temperature@ObsValue", make([]float32, 20), "nobs")
	mkVar(t, root, "time@MetaData", make([]float32, 20), "nobs")

	scan, err := obsspace.Scan(root)
	require.NoError(t, err)
	assert.True(t, scan.Legacy)
	assert.Equal(t, 4, scan.NVars)
	assert.Equal(t, 5, scan.NLocsGlobal)
	assert.Equal(t, []string{"nobs"}, scan.DimsAttachedToVars["brightness_temperature@ObsValue"])
	assert.True(t, scan.LocationsDimensioned("brightness_temperature@ObsValue"))
}

func TestScanModern(t *testing.T) {
	t.Parallel()
	root := obsengines.NewMemEngine().Root()
	require.NoError(t, root.DefineDim("nlocs", 9))
	require.NoError(t, root.DefineDim("nrecs", 9))
	require.NoError(t, root.DefineDim("nvars", 1))
	require.NoError(t, root.DefineDim("nobs", 9))
	mkVar(t, root, "air_temperature@ObsValue", make([]float32, 9), "nlocs")
	mkVar(t, root, "channel@VarMetaData", []int32{4}, "nvars")

	scan, err := obsspace.Scan(root)
	require.NoError(t, err)
	assert.False(t, scan.Legacy)
	assert.Equal(t, 9, scan.NLocsGlobal)
	assert.Equal(t, 1, scan.NVars)
	assert.True(t, scan.LocationsDimensioned("air_temperature@ObsValue"))
	assert.False(t, scan.LocationsDimensioned("channel@VarMetaData"))
}

func TestScanCoordinateVars(t *testing.T) {
	t.Parallel()
	root := obsengines.NewMemEngine().Root()
	require.NoError(t, root.DefineDim("nlocs", 3))
	require.NoError(t, root.DefineDim("nrecs", 3))
	mkVar(t, root, "nlocs", []int32{0, 1, 2}, "nlocs")
	mkVar(t, root, "latitude@MetaData", make([]float32, 3), "nlocs")

	scan, err := obsspace.Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"nlocs"}, scan.DimVarList)
	_, isData := scan.DimsAttachedToVars["nlocs"]
	assert.False(t, isData)
}

// Legacy files without nrecs infer nlocs = nobs / nvars; a
// non-divisible pair must fail fast.
func TestScanIndivisible(t *testing.T) {
	t.Parallel()
	root := obsengines.NewMemEngine().Root()
	require.NoError(t, root.DefineDim("nobs", 21))
	require.NoError(t, root.DefineDim("nchans", 4))

	_, err := obsspace.Scan(root)
	assert.ErrorIs(t, err, obserr.ErrInvalidConfig)
}

func mkVar[T obstypes.ColType](t *testing.T, root obsengines.Group, name string, vals []T, dims ...string) {
	t.Helper()
	v, err := root.Vars().Create(name, obstypes.TagOf[T](), []int{len(vals)}, obsengines.VarOpts{Dims: dims})
	require.NoError(t, err)
	require.NoError(t, v.WriteRange(obstypes.WholeShape([]int{len(vals)}), obstypes.CellOf(vals)))
}
