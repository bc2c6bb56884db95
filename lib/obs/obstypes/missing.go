// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obstypes

import (
	"math"
)

// Sentinel missing values, one per numeric tag.
var (
	MissingFloat = float32(-math.MaxFloat32)
	MissingInt   = int32(math.MinInt32)
)

// missingThreshold is the magnitude past which a value read from a
// file is taken to mean "missing".
const missingThreshold = 1.0e8

// SubstituteMissingFloats replaces out-of-range values in vals with
// MissingFloat, in place.
//
// The rule is deliberately asymmetric (x > threshold, not |x| >
// threshold): very negative values pass through untouched.  That
// mirrors the behavior of the obs files this library has to stay
// compatible with.
func SubstituteMissingFloats(vals []float32) {
	for i, x := range vals {
		if x > missingThreshold {
			vals[i] = MissingFloat
		}
	}
}

// CoerceDoubles downcasts a double column to single precision,
// applying the same missing-value rule.  Downcasting is a deliberate
// policy of the obs pipeline; every on-disk double becomes a float in
// memory.
func CoerceDoubles(vals []float64) []float32 {
	ret := make([]float32, len(vals))
	for i, x := range vals {
		if x > missingThreshold {
			ret[i] = MissingFloat
		} else {
			ret[i] = float32(x)
		}
	}
	return ret
}
