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

func TestGroupTree(t *testing.T) {
	t.Parallel()
	root := obsstore.NewRoot()

	md, err := root.Create("MetaData")
	require.NoError(t, err)
	assert.Equal(t, "MetaData", md.Name())
	assert.Same(t, root, md.Parent())

	deep, err := root.Create("ObsValue/channels")
	require.NoError(t, err)
	assert.Equal(t, "channels", deep.Name())

	got, err := root.Open("ObsValue/channels")
	require.NoError(t, err)
	assert.Same(t, deep, got)

	_, err = root.Open("PreQC")
	assert.ErrorIs(t, err, obserr.ErrNotFound)

	assert.Equal(t, []string{"MetaData", "ObsValue"}, root.List())

	for _, bad := range []string{"", "a//b", ".", "..", "a/./b"} {
		_, err := root.Open(bad)
		assert.ErrorIs(t, err, obserr.ErrInvalidConfig, "path %q", bad)
		_, err = root.Create(bad)
		assert.ErrorIs(t, err, obserr.ErrInvalidConfig, "path %q", bad)
	}
}

func TestAttributes(t *testing.T) {
	t.Parallel()
	root := obsstore.NewRoot()
	as := root.Atts()

	att, err := as.Create("date_time", obstypes.TagInt, nil)
	require.NoError(t, err)
	require.NoError(t, att.Write(obstypes.CellOf([]int32{2018041500})))

	_, err = as.Create("date_time", obstypes.TagInt, nil)
	assert.ErrorIs(t, err, obserr.ErrAlreadyExists)

	got, err := as.Open("date_time")
	require.NoError(t, err)
	i, err := obstypes.CellData[int32](got.Read())
	require.NoError(t, err)
	assert.Equal(t, []int32{2018041500}, i)

	err = att.Write(obstypes.CellOf([]float32{1}))
	assert.ErrorIs(t, err, obserr.ErrTypeMismatch)
	err = att.Write(obstypes.CellOf([]int32{1, 2}))
	assert.ErrorIs(t, err, obserr.ErrLengthMismatch)

	require.NoError(t, as.Rename("date_time", "reference_date_time"))
	assert.ErrorIs(t, as.Rename("date_time", "x"), obserr.ErrNotFound)
	assert.ErrorIs(t, as.Rename("reference_date_time", "reference_date_time"), obserr.ErrAlreadyExists)

	_, err = as.Create("nvars", obstypes.TagInt, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"nvars", "reference_date_time"}, as.List())

	require.NoError(t, as.Remove("nvars"))
	assert.ErrorIs(t, as.Remove("nvars"), obserr.ErrNotFound)
}
