// Copyright (c) 2019 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors exports common error types without unnecessary dependencies.
package errors

import (
	"golang.org/x/xerrors"
)

// FormatError indicates that a stack map, fault map or CodeInfo blob is
// malformed.  It may wrap an underlying error.
type FormatError interface {
	error
	FormatError() bool
}

// UnsupportedError indicates that the input uses a register or location kind
// which the target ABI doesn't support.
type UnsupportedError interface {
	error
	UnsupportedError() bool
}

// ContractError is the panic value of builder bracketing violations.
type ContractError interface {
	error
	ContractError() bool
}

// AsFormatError finds the first FormatError in err's chain.
func AsFormatError(err error) (e FormatError, ok bool) {
	ok = xerrors.As(err, &e)
	return
}

// AsUnsupportedError finds the first UnsupportedError in err's chain.
func AsUnsupportedError(err error) (e UnsupportedError, ok bool) {
	ok = xerrors.As(err, &e)
	return
}
