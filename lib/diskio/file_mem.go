// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"io"
)

// MemFile is a File backed by an in-process byte buffer.  The buffer
// starts at an initial allocation and grows by a fixed increment when
// a write lands past the current capacity, mirroring how an HDF5
// core-driver image is sized.
type MemFile[A ~int64] struct {
	name string
	incr A

	buf  []byte
	size A
}

var _ File[assertAddr] = (*MemFile[assertAddr])(nil)

// NewMemFile returns a MemFile with the given initial buffer capacity
// and growth increment.  Non-positive arguments fall back to 64KiB
// apiece.
func NewMemFile[A ~int64](name string, initial, increment A) *MemFile[A] {
	const fallback = 64 * 1024
	if initial <= 0 {
		initial = fallback
	}
	if increment <= 0 {
		increment = fallback
	}
	return &MemFile[A]{
		name: name,
		incr: increment,
		buf:  make([]byte, 0, initial),
	}
}

func (f *MemFile[A]) Name() string { return f.name }
func (f *MemFile[A]) Size() A      { return f.size }
func (f *MemFile[A]) Close() error { return nil }

func (f *MemFile[A]) ReadAt(dat []byte, off A) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= f.size {
		return 0, io.EOF
	}
	n := copy(dat, f.buf[off:f.size])
	if n < len(dat) {
		return n, io.EOF
	}
	return n, nil
}

func (f *MemFile[A]) WriteAt(dat []byte, off A) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	end := off + A(len(dat))
	f.grow(end)
	n := copy(f.buf[off:end], dat)
	if end > f.size {
		f.size = end
	}
	return n, nil
}

// Truncate discards everything past the beginning, keeping the
// allocation.
func (f *MemFile[A]) Truncate() {
	f.size = 0
}

// Bytes returns the current image.  The slice is shared with the
// file; callers must not hold it across writes.
func (f *MemFile[A]) Bytes() []byte {
	return f.buf[:f.size]
}

func (f *MemFile[A]) grow(end A) {
	if end <= A(len(f.buf)) {
		return
	}
	if end <= A(cap(f.buf)) {
		f.buf = f.buf[:end]
		return
	}
	newCap := A(cap(f.buf))
	for newCap < end {
		newCap += f.incr
	}
	newBuf := make([]byte, end, newCap)
	copy(newBuf, f.buf)
	f.buf = newBuf
}
