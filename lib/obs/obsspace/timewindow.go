// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsspace

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
	"github.com/maxrathmann/ioda/lib/textui"
)

// A WindowFilter keeps the observations inside the assimilation
// window (begin, end]: lower-exclusive, upper-inclusive.
type WindowFilter struct {
	Begin obstypes.DateTime
	End   obstypes.DateTime
}

// Contains is the retention test for one timestamp.
func (f WindowFilter) Contains(t obstypes.DateTime) bool {
	return f.Begin.Cmp(t) < 0 && t.Cmp(f.End) <= 0
}

// Apply derives a timestamp for every global index from the file
// reference time plus its hour offset, erases the out-of-window
// indices from the distribution, and returns the full per-index
// timestamp slice (dropped entries included, for the caller to
// project by the surviving index list).
//
// The per-index arithmetic is integer seconds after one rounding; no
// floating-point accumulates across indices, so every rank derives
// identical timestamps.
func (f WindowFilter) Apply(ctx context.Context, ref obstypes.DateTime, offsets []float32, dist obsdist.Distribution) []obstypes.DateTime {
	times := make([]obstypes.DateTime, len(offsets))
	dropped := 0
	for i, offset := range offsets {
		times[i] = ref.AddHours(float64(offset))
		if !f.Contains(times[i]) {
			dist.Erase(i)
			dropped++
		}
	}
	if dropped > 0 {
		dlog.Debugf(ctx, "time window (%v, %v] dropped %v",
			f.Begin, f.End, textui.Portion[int]{N: dropped, D: len(offsets)})
	}
	return times
}
