// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obsdist decides which global observation locations each
// rank owns.  A policy must produce the same partition on every rank
// given the same inputs; the distribution object is the only
// inter-rank coordination point during ingest.
package obsdist

import (
	"fmt"

	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/slices"
)

// Comm is the slice of the message-passing layer the distributions
// need: who am I, and how many of us are there.  The transport itself
// is external.
type Comm interface {
	Rank() int
	Size() int
}

// SerialComm is the single-process Comm.
type SerialComm struct{}

func (SerialComm) Rank() int { return 0 }
func (SerialComm) Size() int { return 1 }

// FixedComm pins an arbitrary (rank, size) pair; the MPI glue wraps
// its communicator in one of these.
type FixedComm struct {
	CommRank int
	CommSize int
}

func (c FixedComm) Rank() int { return c.CommRank }
func (c FixedComm) Size() int { return c.CommSize }

// A Distribution owns a subset of the global index space [0, N).
//
// The owned set is exposed as a slice in a stable, repeatable order;
// Erase preserves the order of the survivors.
type Distribution interface {
	Name() string

	// RecordAtomic reports whether the policy keeps all indices
	// of one record on one rank.
	RecordAtomic() bool

	// Index returns the owned global indices.  The slice is owned
	// by the distribution; callers must not mutate it.
	Index() []int

	// Erase removes one global index from the owned set; erasing
	// an index that is not owned is a no-op.
	Erase(globalIdx int)
}

// NLocs returns the per-rank location count of a distribution.
func NLocs(d Distribution) int {
	return len(d.Index())
}

// New builds the distribution named by config.  records maps each
// global index to its atomic record id and may be nil, in which case
// every index is its own record.
func New(name string, comm Comm, nglobal int, records []int) (Distribution, error) {
	if records != nil && len(records) != nglobal {
		return nil, fmt.Errorf("record vector has %d entries for %d locations: %w",
			len(records), nglobal, obserr.ErrInvalidConfig)
	}
	switch name {
	case "", "roundrobin":
		return newRoundRobin(comm, nglobal, records), nil
	case "evenchunk":
		return newEvenChunk(comm, nglobal), nil
	case "inefficient":
		return newInefficient(nglobal), nil
	default:
		return nil, fmt.Errorf("unknown distribution %q: %w", name, obserr.ErrInvalidConfig)
	}
}

// erase is the shared stable-order removal.
func erase(owned []int, globalIdx int) []int {
	return slices.RemoveAllFunc(owned, func(i int) bool {
		return i == globalIdx
	})
}
