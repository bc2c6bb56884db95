// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obsstore"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

func TestVariableLifecycle(t *testing.T) {
	t.Parallel()
	var vs obsstore.Variables

	v, err := vs.Create("air_temperature", obstypes.TagFloat, []int{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, obstypes.TagFloat, v.Tag())
	assert.Equal(t, []int{4}, v.Shape())

	_, err = vs.Create("air_temperature", obstypes.TagFloat, []int{4}, nil)
	assert.ErrorIs(t, err, obserr.ErrAlreadyExists)

	_, err = vs.Open("humidity")
	assert.ErrorIs(t, err, obserr.ErrNotFound)

	require.NoError(t, vs.Rename("air_temperature", "brightness_temperature"))
	assert.True(t, vs.Exists("brightness_temperature"))
	assert.False(t, vs.Exists("air_temperature"))
	assert.ErrorIs(t, vs.Rename("air_temperature", "x"), obserr.ErrNotFound)

	_, err = vs.Create("air_pressure", obstypes.TagFloat, []int{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"air_pressure", "brightness_temperature"}, vs.List())

	require.NoError(t, vs.Remove("air_pressure"))
	assert.ErrorIs(t, vs.Remove("air_pressure"), obserr.ErrNotFound)
}

func TestVariableWriteRead(t *testing.T) {
	t.Parallel()
	var vs obsstore.Variables
	v, err := vs.Create("tb", obstypes.TagFloat, []int{3, 4}, nil)
	require.NoError(t, err)

	whole := make([]float32, 12)
	for i := range whole {
		whole[i] = float32(i)
	}
	require.NoError(t, v.Write(obstypes.WholeShape(v.Shape()), obstypes.CellOf(whole)))

	// inner 2x2 block
	got, err := v.Read(obstypes.Selection{{Start: 1, Count: 2}, {Start: 1, Count: 2}})
	require.NoError(t, err)
	f, err := obstypes.CellData[float32](got)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 9, 10}, f)

	// failed writes leave the variable untouched
	err = v.Write(obstypes.Selection{{Start: 2, Count: 2}, {Start: 0, Count: 4}}, obstypes.CellOf(make([]float32, 8)))
	assert.ErrorIs(t, err, obserr.ErrOutOfRange)
	err = v.Write(obstypes.WholeShape(v.Shape()), obstypes.CellOf(make([]int32, 12)))
	assert.ErrorIs(t, err, obserr.ErrTypeMismatch)
	err = v.Write(obstypes.WholeShape(v.Shape()), obstypes.CellOf(make([]float32, 11)))
	assert.ErrorIs(t, err, obserr.ErrLengthMismatch)

	all, err := v.ReadAll()
	require.NoError(t, err)
	f, _ = obstypes.CellData[float32](all)
	assert.Equal(t, whole, f)
}

// Storing segments in any order must equal a single whole-range
// store, and likewise for loads.
func TestVariableSegmentedEquivalence(t *testing.T) {
	t.Parallel()
	var vs obsstore.Variables
	want := []float32{10, 11, 12, 13, 14}

	segs := [][2]int{{3, 2}, {0, 2}, {2, 1}} // deliberately out of order
	v, err := vs.Create("q", obstypes.TagFloat, []int{5}, nil)
	require.NoError(t, err)
	for _, seg := range segs {
		start, count := seg[0], seg[1]
		err := v.Write(obstypes.Selection{{Start: start, Count: count}},
			obstypes.CellOf(want[start:start+count]))
		require.NoError(t, err)
	}

	var got []float32
	for _, seg := range [][2]int{{4, 1}, {0, 2}, {2, 2}} {
		cell, err := v.Read(obstypes.Selection{{Start: seg[0], Count: seg[1]}})
		require.NoError(t, err)
		f, _ := obstypes.CellData[float32](cell)
		got = append(got, f...)
	}
	assert.Equal(t, []float32{14, 10, 11, 12, 13}, got)
}

func TestVariableAppend(t *testing.T) {
	t.Parallel()
	var vs obsstore.Variables
	v, err := vs.Create("sonde", obstypes.TagInt, []int{0, 2}, nil)
	require.NoError(t, err)

	require.NoError(t, v.Append(obstypes.CellOf([]int32{1, 2, 3, 4}), 2))
	assert.Equal(t, []int{2, 2}, v.Shape())

	err = v.Append(obstypes.CellOf([]int32{5}), 1)
	assert.ErrorIs(t, err, obserr.ErrLengthMismatch)
	assert.Equal(t, []int{2, 2}, v.Shape())

	require.NoError(t, v.Append(obstypes.CellOf([]int32{5, 6}), 1))
	all, err := v.ReadAll()
	require.NoError(t, err)
	i, _ := obstypes.CellData[int32](all)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, i)
}
