// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsdist

// roundRobin is the reference policy: record k goes to rank k mod R,
// ties broken by ascending global index.  With no record vector each
// index is its own record, so rank r owns {r, r+R, r+2R, ...}.
type roundRobin struct {
	owned []int
}

func newRoundRobin(comm Comm, nglobal int, records []int) *roundRobin {
	rank, size := comm.Rank(), comm.Size()
	d := &roundRobin{}
	for i := 0; i < nglobal; i++ {
		rec := i
		if records != nil {
			rec = records[i]
		}
		if rec%size == rank {
			d.owned = append(d.owned, i)
		}
	}
	return d
}

func (d *roundRobin) Name() string       { return "roundrobin" }
func (d *roundRobin) RecordAtomic() bool { return true }
func (d *roundRobin) Index() []int       { return d.owned }

func (d *roundRobin) Erase(globalIdx int) {
	d.owned = erase(d.owned, globalIdx)
}
