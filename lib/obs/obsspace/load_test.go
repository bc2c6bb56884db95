// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace_test

import (
	"path/filepath"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obsconfig"
	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// legacyRadianceEngine builds the seed legacy file: nobs=20,
// nchans=4, date_time=2018041500, uniform zero time offsets.
func legacyRadianceEngine(t *testing.T) obsengines.Engine {
	t.Helper()
	eng := obsengines.NewMemEngine()
	root := eng.Root()
	require.NoError(t, root.DefineDim("nobs", 20))
	require.NoError(t, root.DefineDim("nchans", 4))

	att, err := root.Atts().Create("date_time", obstypes.TagInt, nil)
	require.NoError(t, err)
	require.NoError(t, att.Write(obstypes.CellOf([]int32{2018041500})))

	bt := make([]float32, 20)
	for i := range bt {
		bt[i] = float32(200 + i)
	}
	mkVar(t, root, "brightness_temperature@ObsValue", bt, "nobs")
	mkVar(t, root, "latitude@MetaData", make([]float32, 20), "nobs")
	mkVar(t, root, "time@MetaData", make([]float32, 20), "nobs")
	return eng
}

func TestLoadLegacyRadiance(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	cfg := obsconfig.ObsSpace{
		ObsType:     "Radiance",
		WindowBegin: "2018-04-14T23:30:00Z",
		WindowEnd:   "2018-04-15T00:30:00Z",
	}
	s, err := obsspace.LoadFromEngine(ctx, cfg, legacyRadianceEngine(t), obsdist.SerialComm{})
	require.NoError(t, err)

	assert.Equal(t, 5, s.NLocs())
	assert.Equal(t, 4, s.NVars())

	// every nobs-dimensioned variable comes out with leading
	// extent nlocs
	for _, view := range s.ByInsertion() {
		if view.LocsDimensioned {
			assert.Equal(t, 5, view.Shape[0], "variable %s@%s", view.Name, view.Group)
			assert.True(t, view.ReadOnly)
		}
	}

	out := make([]float32, 20)
	require.NoError(t, obsspace.GetDB(s, "ObsValue", "brightness_temperature", 20, out))
	assert.Equal(t, float32(200), out[0])
	assert.Equal(t, float32(219), out[19])

	// the float offset column is consumed and replaced by derived
	// integer fields
	dates := make([]int32, 5)
	require.NoError(t, obsspace.GetDB(s, "MetaData", "date", 5, dates))
	clocks := make([]int32, 5)
	require.NoError(t, obsspace.GetDB(s, "MetaData", "time", 5, clocks))
	for i := 0; i < 5; i++ {
		assert.Equal(t, int32(20180415), dates[i])
		assert.Equal(t, int32(0), clocks[i])
	}
	assert.True(t, s.Has("MetaData", "datetime"))
}

// modernEngine builds a 9-location modern file with no record
// vector and no time metadata.
func modernEngine(t *testing.T) obsengines.Engine {
	t.Helper()
	eng := obsengines.NewMemEngine()
	root := eng.Root()
	require.NoError(t, root.DefineDim("nlocs", 9))
	require.NoError(t, root.DefineDim("nrecs", 9))
	require.NoError(t, root.DefineDim("nvars", 1))
	q := make([]float32, 9)
	for i := range q {
		q[i] = float32(i)
	}
	mkVar(t, root, "specific_humidity@ObsValue", q, "nlocs")
	return eng
}

// The disjoint union of per-rank nlocs equals the global count, and
// each rank holds exactly its projected values.
func TestLoadPartitionAcrossRanks(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	cfg := obsconfig.ObsSpace{
		ObsType:      "Radiosonde",
		WindowBegin:  "2018-04-14T21:00:00Z",
		WindowEnd:    "2018-04-15T03:00:00Z",
		Distribution: "roundrobin",
	}

	want := [][]float32{
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
	}
	total := 0
	for rank := 0; rank < 3; rank++ {
		s, err := obsspace.LoadFromEngine(ctx, cfg, modernEngine(t),
			obsdist.FixedComm{CommRank: rank, CommSize: 3})
		require.NoError(t, err)
		total += s.NLocs()

		out := make([]float32, s.NLocs())
		require.NoError(t, obsspace.GetDB(s, "ObsValue", "specific_humidity", s.NLocs(), out))
		assert.Equal(t, want[rank], out, "rank %d", rank)
	}
	assert.Equal(t, 9, total)
}

func TestMissingValueSubstitutionOnLoad(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	eng := obsengines.NewMemEngine()
	root := eng.Root()
	require.NoError(t, root.DefineDim("nlocs", 3))
	require.NoError(t, root.DefineDim("nrecs", 3))
	mkVar(t, root, "aod@ObsValue", []float32{1.0, 1.0e9, -2.0}, "nlocs")

	cfg := obsconfig.ObsSpace{
		ObsType:     "AOD",
		WindowBegin: "2018-04-14T21:00:00Z",
		WindowEnd:   "2018-04-15T03:00:00Z",
	}
	s, err := obsspace.LoadFromEngine(ctx, cfg, eng, obsdist.SerialComm{})
	require.NoError(t, err)

	out := make([]float32, 3)
	require.NoError(t, obsspace.GetDB(s, "ObsValue", "aod", 3, out))
	assert.Equal(t, []float32{1.0, obstypes.MissingFloat, -2.0}, out)
}

func TestLoadRecordAtomicity(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	eng := obsengines.NewMemEngine()
	root := eng.Root()
	require.NoError(t, root.DefineDim("nlocs", 10))
	require.NoError(t, root.DefineDim("nrecs", 4))
	mkVar(t, root, "record_number@MetaData", []int32{0, 0, 0, 1, 1, 2, 2, 2, 2, 3}, "nlocs")
	p := make([]float32, 10)
	for i := range p {
		p[i] = float32(i)
	}
	mkVar(t, root, "air_pressure@MetaData", p, "nlocs")

	cfg := obsconfig.ObsSpace{
		ObsType:      "Radiosonde",
		WindowBegin:  "2018-04-14T21:00:00Z",
		WindowEnd:    "2018-04-15T03:00:00Z",
		Distribution: "roundrobin",
	}

	s0, err := obsspace.LoadFromEngine(ctx, cfg, eng, obsdist.FixedComm{CommRank: 0, CommSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, s0.NLocs())
	assert.Equal(t, 2, s0.NRecs())
	out := make([]float32, 7)
	require.NoError(t, obsspace.GetDB(s0, "MetaData", "air_pressure", 7, out))
	assert.Equal(t, []float32{0, 1, 2, 5, 6, 7, 8}, out)

	s1, err := obsspace.LoadFromEngine(ctx, cfg, eng, obsdist.FixedComm{CommRank: 1, CommSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, s1.NLocs())
	assert.Equal(t, 2, s1.NRecs())
}

// Round-trip through a real NetCDF file: save, reload, compare
// every variable elementwise, tags included.
func TestRoundTripNetCDF(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	path := filepath.Join(t.TempDir(), "obsout.nc")

	begin, err := obstypes.ParseDateTime("2018-04-14T21:00:00Z")
	require.NoError(t, err)
	end, err := obstypes.ParseDateTime("2018-04-15T03:00:00Z")
	require.NoError(t, err)

	src := obsspace.New("Radiosonde", begin, end, obsdist.SerialComm{})
	src.SetNLocs(3)
	require.NoError(t, obsspace.PutDB(src, "ObsValue", "air_temperature", []float32{250.5, obstypes.MissingFloat, 260}))
	require.NoError(t, obsspace.PutDB(src, "ObsError", "air_temperature", []float32{1.5, 1.5, 2}))
	require.NoError(t, obsspace.PutDB(src, "PreQC", "air_temperature", []int32{0, 1, 0}))
	require.NoError(t, obsspace.PutDB(src, "MetaData", "station_id", []string{"KDEN", "KLAX", "KJFK"}))
	require.NoError(t, obsspace.PutDB(src, "MetaData", "datetime", []obstypes.DateTime{
		obstypes.NewDateTime(2018, 4, 14, 23, 24, 0),
		obstypes.NewDateTime(2018, 4, 15, 0, 0, 0),
		obstypes.NewDateTime(2018, 4, 15, 0, 24, 0),
	}))
	require.NoError(t, src.Save(ctx, path))

	cfg := obsconfig.ObsSpace{
		ObsType:     "Radiosonde",
		WindowBegin: "2018-04-14T21:00:00Z",
		WindowEnd:   "2018-04-15T03:00:00Z",
		ObsDataIn:   obsconfig.ObsFile{ObsFile: path},
	}
	got, err := obsspace.Load(ctx, cfg, obsdist.SerialComm{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.NLocs())

	f := make([]float32, 3)
	require.NoError(t, obsspace.GetDB(got, "ObsValue", "air_temperature", 3, f))
	assert.Equal(t, []float32{250.5, obstypes.MissingFloat, 260}, f)
	require.NoError(t, obsspace.GetDB(got, "ObsError", "air_temperature", 3, f))
	assert.Equal(t, []float32{1.5, 1.5, 2}, f)

	i := make([]int32, 3)
	require.NoError(t, obsspace.GetDB(got, "PreQC", "air_temperature", 3, i))
	assert.Equal(t, []int32{0, 1, 0}, i)

	str := make([]string, 3)
	require.NoError(t, obsspace.GetDB(got, "MetaData", "station_id", 3, str))
	assert.Equal(t, []string{"KDEN", "KLAX", "KJFK"}, str)

	dts := make([]obstypes.DateTime, 3)
	require.NoError(t, obsspace.GetDB(got, "MetaData", "datetime", 3, dts))
	assert.Equal(t, int32(20180414), dts[0].Date())
	assert.Equal(t, int32(232400), dts[0].ClockTime())
	assert.Equal(t, int32(20180415), dts[2].Date())
	assert.Equal(t, int32(2400), dts[2].ClockTime())

	// tags survive
	for _, view := range got.ByVariable() {
		switch view.Name {
		case "station_id":
			assert.Equal(t, obstypes.TagString, view.Tag)
		case "datetime":
			assert.Equal(t, obstypes.TagDateTime, view.Tag)
		}
	}
}
