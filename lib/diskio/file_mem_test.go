// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/diskio"
)

func TestMemFileGrow(t *testing.T) {
	t.Parallel()
	f := diskio.NewMemFile[int64]("img", 8, 8)

	n, err := f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), f.Size())

	// write past the initial capacity
	n, err = f.WriteAt([]byte("worlds!"), 5)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, int64(12), f.Size())
	assert.Equal(t, []byte("helloworlds!"), f.Bytes())
}

func TestMemFileSparseWrite(t *testing.T) {
	t.Parallel()
	f := diskio.NewMemFile[int64]("img", 4, 4)
	_, err := f.WriteAt([]byte{0xff}, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.Size())
	// the gap reads back as zeros
	buf := make([]byte, 10)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff}, buf)
}

func TestMemFileReadPastEnd(t *testing.T) {
	t.Parallel()
	f := diskio.NewMemFile[int64]("img", 16, 16)
	_, err := f.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := f.ReadAt(buf, 1)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = f.ReadAt(buf, 99)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemFileTruncate(t *testing.T) {
	t.Parallel()
	f := diskio.NewMemFile[int64]("img", 16, 16)
	_, err := f.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)
	f.Truncate()
	assert.Equal(t, int64(0), f.Size())
	assert.Empty(t, f.Bytes())
}
