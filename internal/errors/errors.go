// Copyright (c) 2019 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"fmt"
)

type formatError struct {
	text  string
	cause error
}

// FormatError describes malformed input: a foreign stack map or fault map
// blob, or an encoded CodeInfo.
func FormatError(text string) error {
	return &formatError{text, nil}
}

func FormatErrorf(format string, args ...interface{}) error {
	return &formatError{fmt.Sprintf(format, args...), nil}
}

func WrapFormatError(cause error, text string) error {
	return &formatError{text, cause}
}

func (e *formatError) Error() string       { return e.text }
func (e *formatError) PublicError() string { return e.text }
func (e *formatError) FormatError() bool   { return true }
func (e *formatError) Unwrap() error       { return e.cause }

type unsupportedError struct {
	text string
}

// UnsupportedError describes well-formed input which uses a configuration
// (register, location kind) that the target cannot represent.
func UnsupportedError(text string) error {
	return &unsupportedError{text}
}

func UnsupportedErrorf(format string, args ...interface{}) error {
	return &unsupportedError{fmt.Sprintf(format, args...)}
}

func (e *unsupportedError) Error() string          { return e.text }
func (e *unsupportedError) PublicError() string    { return e.text }
func (e *unsupportedError) UnsupportedError() bool { return true }

type contractError struct {
	text string
}

// ContractError is panicked by the builder when its calls are not bracketed
// correctly.  It is never returned as a value.
func ContractError(text string) error {
	return &contractError{text}
}

func ContractErrorf(format string, args ...interface{}) error {
	return &contractError{fmt.Sprintf(format, args...)}
}

func (e *contractError) Error() string       { return e.text }
func (e *contractError) ContractError() bool { return true }
