// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsdist

import (
	"github.com/maxrathmann/ioda/lib/slices"
)

// evenChunk slices [0, N) into R contiguous chunks whose sizes differ
// by at most one; the first N mod R ranks get the longer chunks.  It
// ignores the record vector, so it is NOT record-atomic.
type evenChunk struct {
	owned []int
}

func newEvenChunk(comm Comm, nglobal int) *evenChunk {
	rank, size := comm.Rank(), comm.Size()
	base := nglobal / size
	rem := nglobal % size

	start := rank*base + slices.Min(rank, rem)
	count := base
	if rank < rem {
		count++
	}

	d := &evenChunk{owned: make([]int, count)}
	for i := range d.owned {
		d.owned[i] = start + i
	}
	return d
}

func (d *evenChunk) Name() string       { return "evenchunk" }
func (d *evenChunk) RecordAtomic() bool { return false }
func (d *evenChunk) Index() []int       { return d.owned }

func (d *evenChunk) Erase(globalIdx int) {
	d.owned = erase(d.owned, globalIdx)
}
