// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binenc converts typed columns to and from their flat
// little-endian byte encoding.  It is the codec behind the
// memory-image engine's serialized form.
package binenc

import (
	"encoding/binary"
	"math"
)

// PutU32 appends the little-endian encoding of x to dst.
func PutU32(dst []byte, x uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], x)
	return append(dst, buf[:]...)
}

// PutU64 appends the little-endian encoding of x to dst.
func PutU64(dst []byte, x uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], x)
	return append(dst, buf[:]...)
}

// AppendInt32s appends the little-endian encoding of vals to dst.
func AppendInt32s(dst []byte, vals []int32) []byte {
	for _, v := range vals {
		dst = PutU32(dst, uint32(v))
	}
	return dst
}

// AppendFloat32s appends the IEEE-754 little-endian encoding of vals
// to dst.
func AppendFloat32s(dst []byte, vals []float32) []byte {
	for _, v := range vals {
		dst = PutU32(dst, math.Float32bits(v))
	}
	return dst
}

// AppendString appends a u64 length prefix followed by the raw bytes
// of val to dst.
func AppendString(dst []byte, val string) []byte {
	dst = PutU64(dst, uint64(len(val)))
	return append(dst, val...)
}

// Int32s decodes n little-endian int32 values from src, returning the
// values and the number of bytes consumed.  Short input returns
// (nil, -1).
func Int32s(src []byte, n int) ([]int32, int) {
	if len(src) < 4*n {
		return nil, -1
	}
	ret := make([]int32, n)
	for i := range ret {
		ret[i] = int32(binary.LittleEndian.Uint32(src[4*i:]))
	}
	return ret, 4 * n
}

// Float32s decodes n IEEE-754 little-endian float32 values from src,
// returning the values and the number of bytes consumed.  Short input
// returns (nil, -1).
func Float32s(src []byte, n int) ([]float32, int) {
	if len(src) < 4*n {
		return nil, -1
	}
	ret := make([]float32, n)
	for i := range ret {
		ret[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
	return ret, 4 * n
}

// String decodes one length-prefixed string from src, returning the
// value and the number of bytes consumed.  Short input returns
// ("", -1).
func String(src []byte) (string, int) {
	if len(src) < 8 {
		return "", -1
	}
	n := binary.LittleEndian.Uint64(src)
	if uint64(len(src)-8) < n {
		return "", -1
	}
	return string(src[8 : 8+n]), 8 + int(n)
}

// U64 decodes one little-endian uint64 from src, returning the value
// and the number of bytes consumed.  Short input returns (0, -1).
func U64(src []byte) (uint64, int) {
	if len(src) < 8 {
		return 0, -1
	}
	return binary.LittleEndian.Uint64(src), 8
}
