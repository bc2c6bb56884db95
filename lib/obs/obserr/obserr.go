// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obserr defines the error kinds surfaced by the obs access
// layer.  Callers classify failures with errors.Is against the
// sentinel kinds; the wrapper types carry the offending names.
package obserr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrOutOfRange     = errors.New("selection out of range")
	ErrInvalidConfig  = errors.New("invalid configuration")

	// ErrInvariant is assertion-class: it indicates a bug in this
	// library, not in the caller's input, and is not recoverable.
	ErrInvariant = errors.New("internal invariant violated")
)

// A VarError decorates an error kind with the (group, variable) pair
// the failing operation was addressed to.
type VarError struct {
	Group string
	Var   string
	Err   error
}

func (e *VarError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("variable %q: %v", e.Var, e.Err)
	}
	return fmt.Sprintf("variable %q in group %q: %v", e.Var, e.Group, e.Err)
}

func (e *VarError) Unwrap() error { return e.Err }

// A BackendError wraps a failure from the underlying format library,
// preserving its native error (and code, when the library exposes
// one).
type BackendError struct {
	Op   string
	Path string
	Code int
	Err  error
}

func (e *BackendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("backend %s %q: code %d: %v", e.Op, e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("backend %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
