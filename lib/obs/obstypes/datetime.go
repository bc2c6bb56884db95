// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obstypes

import (
	"fmt"
	"math"
	"time"

	"github.com/maxrathmann/ioda/lib/containers"
)

// A DateTime is a broken-down UTC timestamp with second precision.
// It is one of the four primitive column types.
type DateTime struct {
	t time.Time
}

var _ containers.Ordered[DateTime] = DateTime{}

func NewDateTime(year, month, day, hour, min, sec int) DateTime {
	return DateTime{t: time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)}
}

// ParseDateTime parses an ISO-8601 "2018-04-15T00:00:00Z" timestamp,
// the encoding used for window bounds in configuration.
func ParseDateTime(s string) (DateTime, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return DateTime{}, fmt.Errorf("datetime %q: %w", s, err)
	}
	return DateTime{t: t.UTC().Truncate(time.Second)}, nil
}

// DateTimeFromRef builds a timestamp from the legacy file-level
// reference encoding: an integer yyyymmddhh.
func DateTimeFromRef(dateTime int) (DateTime, error) {
	ymd := dateTime / 100
	hh := dateTime % 100
	y := ymd / 10000
	m := (ymd / 100) % 100
	d := ymd % 100
	if y < 1000 || m < 1 || m > 12 || d < 1 || d > 31 || hh < 0 || hh > 23 {
		return DateTime{}, fmt.Errorf("reference date_time %d is not yyyymmddhh", dateTime)
	}
	return NewDateTime(y, m, d, hh, 0, 0), nil
}

// AddHours offsets dt by a fractional hour count, rounded to the
// nearest second.  This is the per-observation time derivation; the
// rounding keeps it deterministic with no floating accumulation.
func (dt DateTime) AddHours(hours float64) DateTime {
	secs := int64(math.Round(hours * 3600))
	return dt.AddSeconds(secs)
}

func (dt DateTime) AddSeconds(secs int64) DateTime {
	return DateTime{t: dt.t.Add(time.Duration(secs) * time.Second)}
}

// DateTimeFromUnix is the inverse of Unix.
func DateTimeFromUnix(secs int64) DateTime {
	return DateTime{t: time.Unix(secs, 0).UTC()}
}

// Cmp implements containers.Ordered.
func (dt DateTime) Cmp(other DateTime) int {
	switch {
	case dt.t.Before(other.t):
		return -1
	case dt.t.After(other.t):
		return 1
	default:
		return 0
	}
}

// Date returns the integer encoding yyyy*10000 + mm*100 + dd.
func (dt DateTime) Date() int32 {
	y, m, d := dt.t.Date()
	return int32(y*10000 + int(m)*100 + d)
}

// ClockTime returns the integer encoding hh*10000 + mm*100 + ss.
func (dt DateTime) ClockTime() int32 {
	h, m, s := dt.t.Clock()
	return int32(h*10000 + m*100 + s)
}

func (dt DateTime) Unix() int64 { return dt.t.Unix() }

func (dt DateTime) IsZero() bool { return dt.t.IsZero() }

func (dt DateTime) String() string {
	return dt.t.Format("2006-01-02T15:04:05Z")
}
