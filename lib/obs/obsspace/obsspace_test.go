// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

func window(t *testing.T) (obstypes.DateTime, obstypes.DateTime) {
	t.Helper()
	begin, err := obstypes.ParseDateTime("2018-04-14T21:00:00Z")
	require.NoError(t, err)
	end, err := obstypes.ParseDateTime("2018-04-15T03:00:00Z")
	require.NoError(t, err)
	return begin, end
}

func newSpace(t *testing.T) *obsspace.ObsSpace {
	t.Helper()
	begin, end := window(t)
	return obsspace.New("Radiosonde", begin, end, obsdist.SerialComm{})
}

func TestSplitVarName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, obsspace.Key{Group: "ObsValue", Name: "air_temperature"},
		obsspace.SplitVarName("air_temperature@ObsValue"))
	assert.Equal(t, obsspace.Key{Group: obsspace.GroupUndefined, Name: "oddball"},
		obsspace.SplitVarName("oddball"))
	assert.Equal(t, "air_temperature@ObsValue",
		obsspace.Key{Group: "ObsValue", Name: "air_temperature"}.FlatName())
	assert.Equal(t, "oddball",
		obsspace.Key{Group: obsspace.GroupUndefined, Name: "oddball"}.FlatName())
}

func TestPutGet(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "air_temperature", []float32{250, 251, 252}))
	assert.True(t, s.Has("ObsValue", "air_temperature"))
	assert.False(t, s.Has("ObsError", "air_temperature"))

	out := make([]float32, 3)
	require.NoError(t, obsspace.GetDB(s, "ObsValue", "air_temperature", 3, out))
	assert.Equal(t, []float32{250, 251, 252}, out)

	err := obsspace.GetDB(s, "ObsValue", "humidity", 3, out)
	assert.ErrorIs(t, err, obserr.ErrNotFound)
	err = obsspace.GetDB(s, "ObsValue", "air_temperature", 2, out)
	assert.ErrorIs(t, err, obserr.ErrLengthMismatch)
	err = obsspace.GetDB(s, "ObsValue", "air_temperature", 3, make([]int32, 3))
	assert.ErrorIs(t, err, obserr.ErrTypeMismatch)
}

// Type tags freeze at first store; a mismatched later store fails
// and leaves the container unchanged.
func TestTypeImmutability(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	require.NoError(t, obsspace.PutDB(s, "MetaData", "station_elevation", []float32{120, 43}))

	err := obsspace.PutDB(s, "MetaData", "station_elevation", []int32{120, 43})
	assert.ErrorIs(t, err, obserr.ErrTypeMismatch)

	out := make([]float32, 2)
	require.NoError(t, obsspace.GetDB(s, "MetaData", "station_elevation", 2, out))
	assert.Equal(t, []float32{120, 43}, out)
}

func TestOverwriteKeepsLength(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "q", []float32{1, 2}))
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "q", []float32{3, 4}))

	err := obsspace.PutDB(s, "ObsValue", "q", []float32{3, 4, 5})
	assert.ErrorIs(t, err, obserr.ErrShapeMismatch)

	out := make([]float32, 2)
	require.NoError(t, obsspace.GetDB(s, "ObsValue", "q", 2, out))
	assert.Equal(t, []float32{3, 4}, out)
}

// Insertion order survives updates, appends, and removals of other
// records.
func TestInsertionOrderStability(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "zz", []int32{1}))
	require.NoError(t, obsspace.PutDB(s, "MetaData", "aa", []int32{2}))
	require.NoError(t, obsspace.PutDB(s, "ObsError", "mm", []int32{3}))

	// updates must not reorder
	require.NoError(t, obsspace.PutDB(s, "MetaData", "aa", []int32{20}))
	require.NoError(t, obsspace.StoreToDB(s, "ObsValue", "zz", []int{1}, []int32{9}, true))

	var got []string
	for _, view := range s.ByInsertion() {
		got = append(got, obsspace.Key{Group: view.Group, Name: view.Name}.FlatName())
	}
	assert.Equal(t, []string{"zz@ObsValue", "aa@MetaData", "mm@ObsError"}, got)

	require.NoError(t, s.Remove("MetaData", "aa"))
	got = got[:0]
	for _, view := range s.ByInsertion() {
		got = append(got, view.Name)
	}
	assert.Equal(t, []string{"zz", "mm"}, got)

	assert.ErrorIs(t, s.Remove("MetaData", "aa"), obserr.ErrNotFound)
}

func TestByGroupByVariable(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "zz", []int32{1}))
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "aa", []int32{2}))
	require.NoError(t, obsspace.PutDB(s, "MetaData", "mm", []int32{3}))
	require.NoError(t, obsspace.PutDB(s, "MetaData", "bb", []int32{4}))

	var byGroup []string
	for _, view := range s.ByGroup() {
		byGroup = append(byGroup, obsspace.Key{Group: view.Group, Name: view.Name}.FlatName())
	}
	// groups alphabetical, insertion order within a group
	assert.Equal(t, []string{"mm@MetaData", "bb@MetaData", "zz@ObsValue", "aa@ObsValue"}, byGroup)

	var byVar []string
	for _, view := range s.ByVariable() {
		byVar = append(byVar, view.Name)
	}
	assert.Equal(t, []string{"aa", "bb", "mm", "zz"}, byVar)
}

// Seed case: store floats as append segments, load back as reverse
// segments.
func TestSegmentedAppendAndLoad(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	want := []float32{10, 20, 30, 40, 50}

	require.NoError(t, obsspace.StoreToDB(s, "ObsValue", "q", []int{2}, want[0:2], false))
	require.NoError(t, obsspace.StoreToDB(s, "ObsValue", "q", []int{1}, want[2:3], true))
	require.NoError(t, obsspace.StoreToDB(s, "ObsValue", "q", []int{2}, want[3:5], true))

	var got []float32
	for _, seg := range [][2]int{{0, 2}, {2, 2}, {4, 1}} {
		buf := make([]float32, seg[1])
		require.NoError(t, obsspace.LoadFromDB(s, "ObsValue", "q", []int{5}, buf, seg[0], seg[1]))
		got = append(got, buf...)
	}
	assert.Equal(t, want, got)

	// full load with count=-1
	buf := make([]float32, 5)
	require.NoError(t, obsspace.LoadFromDB(s, "ObsValue", "q", []int{5}, buf, 0, -1))
	assert.Equal(t, want, buf)
}

func TestAppendShapeChecks(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	require.NoError(t, obsspace.StoreToDB(s, "ObsValue", "tb", []int{2, 3}, []float32{1, 2, 3, 4, 5, 6}, false))

	// trailing extent mismatch
	err := obsspace.StoreToDB(s, "ObsValue", "tb", []int{1, 4}, []float32{7, 8, 9, 10}, true)
	assert.ErrorIs(t, err, obserr.ErrShapeMismatch)

	require.NoError(t, obsspace.StoreToDB(s, "ObsValue", "tb", []int{1, 3}, []float32{7, 8, 9}, true))
	out := make([]float32, 9)
	require.NoError(t, obsspace.GetDB(s, "ObsValue", "tb", 9, out))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, out)
}

func TestLocsDimensionedFlag(t *testing.T) {
	t.Parallel()
	s := newSpace(t)
	s.SetNLocs(4)
	require.NoError(t, obsspace.PutDB(s, "ObsValue", "q", []float32{1, 2, 3, 4}))
	require.NoError(t, obsspace.PutDB(s, "VarMetaData", "channel", []int32{1, 2}))

	views := s.ByInsertion()
	require.Len(t, views, 2)
	assert.True(t, views[0].LocsDimensioned)
	assert.False(t, views[1].LocsDimensioned)
}
