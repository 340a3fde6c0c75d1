// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"github.com/safepoint/codeinfo/internal/pan"
)

// Static is a fixed-capacity buffer, for wrapping a preallocated region of a
// compiled method record.  The default value is a zero-capacity buffer.
type Static struct {
	buf []byte
}

// NewStatic buffer.  Its capacity limits the encoded size.
func NewStatic(b []byte) *Static {
	return &Static{b}
}

// Len doesn't panic.
func (s *Static) Len() int {
	return len(s.buf)
}

// Bytes doesn't panic.
func (s *Static) Bytes() []byte {
	return s.buf
}

// Extend panics with ErrSizeLimit if n bytes cannot be appended to the buffer.
// The new bytes are zeroed.
func (s *Static) Extend(n int) []byte {
	offset := len(s.buf)
	size := offset + n
	if size > cap(s.buf) {
		pan.Panic(ErrSizeLimit)
	}
	s.buf = s.buf[:size]
	b := s.buf[offset:]
	clear(b)
	return b
}
