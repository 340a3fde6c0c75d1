// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buffer implements the byte buffers which encoded CodeInfo is
// written into.
package buffer

// Buffer is appended to by bitstream.Writer.  Extend may panic with
// ErrSizeLimit if the buffer cannot grow.
type Buffer interface {
	Len() int
	Bytes() []byte
	Extend(n int) []byte
}

var (
	_ Buffer = (*Dynamic)(nil)
	_ Buffer = (*Static)(nil)
)
