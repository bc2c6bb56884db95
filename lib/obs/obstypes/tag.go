// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obstypes holds the primitive data model shared by the
// in-memory store and the storage engines: type tags, broken-down
// timestamps, tagged value cells, and hyperslab selections.
//
// The obs pipeline works in exactly four primitive types; wider
// on-disk types are coerced on ingest (doubles are downcast to single
// precision, 64-bit ints to 32-bit).
package obstypes

import (
	"fmt"
)

type Tag int8

const (
	TagInvalid Tag = iota
	TagInt         // int32
	TagFloat       // float32
	TagString
	TagDateTime
)

// ColType enumerates the Go types a column may hold, one per Tag.
type ColType interface {
	int32 | float32 | string | DateTime
}

func (tag Tag) String() string {
	switch tag {
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("<invalid tag %d>", int8(tag))
	}
}

// ElemSize returns the per-element byte size of a tag's flat
// encoding, or 0 for variable-width tags.
func (tag Tag) ElemSize() int {
	switch tag {
	case TagInt, TagFloat:
		return 4
	default:
		return 0
	}
}

// TagOf returns the Tag for a ColType.
func TagOf[T ColType]() Tag {
	var zero T
	switch any(zero).(type) {
	case int32:
		return TagInt
	case float32:
		return TagFloat
	case string:
		return TagString
	case DateTime:
		return TagDateTime
	default:
		return TagInvalid
	}
}
