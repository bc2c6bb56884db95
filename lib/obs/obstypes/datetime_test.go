// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obstypes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

func TestDateTimeFromRef(t *testing.T) {
	t.Parallel()
	dt, err := obstypes.DateTimeFromRef(2018041500)
	require.NoError(t, err)
	assert.Equal(t, "2018-04-15T00:00:00Z", dt.String())

	dt, err = obstypes.DateTimeFromRef(2018041523)
	require.NoError(t, err)
	assert.Equal(t, "2018-04-15T23:00:00Z", dt.String())

	_, err = obstypes.DateTimeFromRef(2018041524)
	assert.Error(t, err)
	_, err = obstypes.DateTimeFromRef(2018130100)
	assert.Error(t, err)
}

func TestAddHours(t *testing.T) {
	t.Parallel()
	ref, err := obstypes.DateTimeFromRef(2018041500)
	require.NoError(t, err)

	// +0.4h = +1440s = 00:24:00
	dt := ref.AddHours(0.4)
	assert.Equal(t, int32(20180415), dt.Date())
	assert.Equal(t, int32(2400), dt.ClockTime())

	// -0.6h = -2160s = previous day 23:24:00
	dt = ref.AddHours(-0.6)
	assert.Equal(t, int32(20180414), dt.Date())
	assert.Equal(t, int32(232400), dt.ClockTime())

	// rounding, not truncation: 0.0001h = 0.36s -> 0s
	assert.Equal(t, 0, ref.AddHours(0.0001).Cmp(ref))
	// 0.0002h = 0.72s -> 1s
	assert.Equal(t, 1, ref.AddHours(0.0002).Cmp(ref))
}

func TestParseDateTime(t *testing.T) {
	t.Parallel()
	dt, err := obstypes.ParseDateTime("2018-04-14T23:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, int32(20180414), dt.Date())
	assert.Equal(t, int32(233000), dt.ClockTime())

	_, err = obstypes.ParseDateTime("April 15th")
	assert.Error(t, err)
}

func TestCmp(t *testing.T) {
	t.Parallel()
	a := obstypes.NewDateTime(2018, 4, 15, 0, 0, 0)
	b := a.AddSeconds(1)
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}
