// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binenc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/binenc"
)

func TestInt32s(t *testing.T) {
	t.Parallel()
	in := []int32{0, -1, 42, -2147483648, 2147483647}
	enc := binenc.AppendInt32s(nil, in)
	require.Len(t, enc, 4*len(in))
	out, n := binenc.Int32s(enc, len(in))
	assert.Equal(t, 4*len(in), n)
	assert.Equal(t, in, out)

	_, n = binenc.Int32s(enc[:7], len(in))
	assert.Equal(t, -1, n)
}

func TestFloat32s(t *testing.T) {
	t.Parallel()
	in := []float32{0, 1.5, -2.25, 1.0e9}
	enc := binenc.AppendFloat32s(nil, in)
	out, n := binenc.Float32s(enc, len(in))
	assert.Equal(t, 4*len(in), n)
	assert.Equal(t, in, out)
}

func TestString(t *testing.T) {
	t.Parallel()
	enc := binenc.AppendString(nil, "sonde_q1")
	val, n := binenc.String(enc)
	assert.Equal(t, "sonde_q1", val)
	assert.Equal(t, len(enc), n)

	_, n = binenc.String(enc[:3])
	assert.Equal(t, -1, n)
	_, n = binenc.String(enc[:len(enc)-1])
	assert.Equal(t, -1, n)
}
