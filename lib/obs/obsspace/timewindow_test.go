// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace_test

import (
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// The window is (begin, end]: an observation exactly at begin is
// dropped, one exactly at end is retained.
func TestWindowFilter(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	ref, err := obstypes.DateTimeFromRef(2018041500)
	require.NoError(t, err)
	filter := obsspace.WindowFilter{
		Begin: obstypes.NewDateTime(2018, 4, 15, 0, 0, 0),
		End:   obstypes.NewDateTime(2018, 4, 15, 0, 30, 0),
	}
	offsets := []float32{-0.6, -0.4, 0.0, +0.4, +0.6}

	dist, err := obsdist.New("roundrobin", obsdist.SerialComm{}, len(offsets), nil)
	require.NoError(t, err)
	times := filter.Apply(ctx, ref, offsets, dist)

	// index 2 lands exactly on begin and is excluded by the
	// lower-exclusive bound; index 4 is past end
	assert.Equal(t, []int{3}, dist.Index())
	require.Len(t, times, 5)
	assert.Equal(t, int32(20180415), times[3].Date())
	assert.Equal(t, int32(2400), times[3].ClockTime())
	assert.Equal(t, int32(20180414), times[0].Date())

	// exactly at end: retained
	assert.True(t, filter.Contains(obstypes.NewDateTime(2018, 4, 15, 0, 30, 0)))
	// exactly at begin: dropped
	assert.False(t, filter.Contains(obstypes.NewDateTime(2018, 4, 15, 0, 0, 0)))
}

func TestWindowFilterWideWindow(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	ref, err := obstypes.DateTimeFromRef(2018041500)
	require.NoError(t, err)
	filter := obsspace.WindowFilter{
		Begin: obstypes.NewDateTime(2018, 4, 14, 23, 30, 0),
		End:   obstypes.NewDateTime(2018, 4, 15, 0, 30, 0),
	}
	offsets := []float32{-0.6, -0.4, 0.0, +0.4, +0.6}

	dist, err := obsdist.New("roundrobin", obsdist.SerialComm{}, len(offsets), nil)
	require.NoError(t, err)
	filter.Apply(ctx, ref, offsets, dist)
	// -0.6h lands at 23:24, before begin; +0.6h lands at 00:36, past end
	assert.Equal(t, []int{1, 2, 3}, dist.Index())
}
