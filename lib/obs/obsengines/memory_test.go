// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsengines_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

func TestFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	eng, err := obsengines.Open(ctx, "memory", "", obsengines.Options{})
	require.NoError(t, err)
	defer func() { assert.NoError(t, eng.Close()) }()
	assert.Equal(t, "memory", eng.FormatName())
	assert.True(t, eng.Capabilities().Grouping)
	assert.True(t, eng.Capabilities().PartialIO)

	_, err = obsengines.Open(ctx, "grib2", "", obsengines.Options{})
	assert.ErrorIs(t, err, obserr.ErrInvalidConfig)
}

func TestFormatForPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "netcdf", obsengines.FormatForPath("obs/sondes.nc"))
	assert.Equal(t, "netcdf", obsengines.FormatForPath("obs/sondes.nc4.gz"))
	assert.Equal(t, "hdf5", obsengines.FormatForPath("obs/amsua.h5"))
	assert.Equal(t, "hdf5", obsengines.FormatForPath("obs/amsua.HDF5"))
}

func TestParseCompatVersion(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]obsengines.CompatVersion{
		"":         obsengines.CompatEarliest,
		"earliest": obsengines.CompatEarliest,
		"V18":      obsengines.CompatV18,
		"1.10":     obsengines.CompatV110,
		"v112":     obsengines.CompatV112,
		"latest":   obsengines.CompatLatest,
	} {
		got, err := obsengines.ParseCompatVersion(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
	_, err := obsengines.ParseCompatVersion("2.0")
	assert.ErrorIs(t, err, obserr.ErrInvalidConfig)
}

func TestMemEngineGroupModel(t *testing.T) {
	t.Parallel()
	eng := obsengines.NewMemEngine()
	root := eng.Root()

	md, err := root.CreateGroup("MetaData")
	require.NoError(t, err)

	v, err := md.Vars().Create("latitude", obstypes.TagFloat, []int{4}, obsengines.VarOpts{Dims: []string{"nlocs"}})
	require.NoError(t, err)
	require.NoError(t, v.WriteRange(obstypes.WholeShape([]int{4}), obstypes.CellOf([]float32{1, 2, 3, 4})))
	assert.Equal(t, []string{"nlocs"}, v.Dimensions())

	got, err := v.ReadRange(obstypes.Selection{{Start: 1, Count: 2}})
	require.NoError(t, err)
	f, err := obstypes.CellData[float32](got)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, f)

	require.NoError(t, root.DefineDim("nlocs", 4))
	assert.Equal(t, map[string]int{"nlocs": 4}, root.Dims())

	reopened, err := root.OpenGroup("MetaData")
	require.NoError(t, err)
	assert.True(t, reopened.Vars().Exists("latitude"))
}

func TestCopyGroup(t *testing.T) {
	t.Parallel()
	src := obsengines.NewMemEngine().Root()
	require.NoError(t, src.DefineDim("nlocs", 3))
	att, err := src.Atts().Create("date_time", obstypes.TagInt, nil)
	require.NoError(t, err)
	require.NoError(t, att.Write(obstypes.CellOf([]int32{2018041500})))
	grp, err := src.CreateGroup("ObsValue")
	require.NoError(t, err)
	v, err := grp.Vars().Create("q", obstypes.TagFloat, []int{3}, obsengines.VarOpts{Dims: []string{"nlocs"}})
	require.NoError(t, err)
	require.NoError(t, v.WriteRange(obstypes.WholeShape([]int{3}), obstypes.CellOf([]float32{7, 8, 9})))

	dst := obsengines.NewMemEngine().Root()
	require.NoError(t, obsengines.CopyGroup(dst, src))

	assert.Equal(t, map[string]int{"nlocs": 3}, dst.Dims())
	gotAtt, err := dst.Atts().Open("date_time")
	require.NoError(t, err)
	i, _ := obstypes.CellData[int32](gotAtt.Read())
	assert.Equal(t, []int32{2018041500}, i)

	gotGrp, err := dst.OpenGroup("ObsValue")
	require.NoError(t, err)
	gotVar, err := gotGrp.Vars().Open("q")
	require.NoError(t, err)
	data, err := gotVar.ReadRange(obstypes.WholeShape([]int{3}))
	require.NoError(t, err)
	f, _ := obstypes.CellData[float32](data)
	assert.Equal(t, []float32{7, 8, 9}, f)
	assert.Equal(t, []string{"nlocs"}, gotVar.Dimensions())
}

func TestPackSelection(t *testing.T) {
	t.Parallel()
	whole := obstypes.CellOf([]int32{0, 1, 2, 3, 4, 5})
	packed, err := obsengines.PackSelection([]int{2, 3}, whole,
		obstypes.Selection{{Start: 0, Count: 2}, {Start: 1, Count: 2}})
	require.NoError(t, err)
	i, _ := obstypes.CellData[int32](packed)
	assert.Equal(t, []int32{1, 2, 4, 5}, i)

	_, err = obsengines.PackSelection([]int{2, 3}, whole,
		obstypes.Selection{{Start: 0, Count: 3}, {Start: 0, Count: 3}})
	assert.ErrorIs(t, err, obserr.ErrOutOfRange)
}
