// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsdist

// inefficient puts every location on every rank.  It trivially keeps
// records together, but it is not a partition; it exists for serial
// diagnostics and for tests that want the whole index space visible.
type inefficient struct {
	owned []int
}

func newInefficient(nglobal int) *inefficient {
	d := &inefficient{owned: make([]int, nglobal)}
	for i := range d.owned {
		d.owned[i] = i
	}
	return d
}

func (d *inefficient) Name() string       { return "inefficient" }
func (d *inefficient) RecordAtomic() bool { return true }
func (d *inefficient) Index() []int       { return d.owned }

func (d *inefficient) Erase(globalIdx int) {
	d.owned = erase(d.owned, globalIdx)
}
