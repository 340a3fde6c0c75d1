// Copyright (c) 2015 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/binary"

	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
)

// L provides panicking little-endian integer decoding methods over a byte
// slice.
type L struct {
	data []byte
	pos  int
}

func New(data []byte) *L {
	return &L{data: data}
}

// Tell the current offset.
func (load *L) Tell() int {
	return load.pos
}

// Len of the unread part.
func (load *L) Len() int {
	return len(load.data) - load.pos
}

func (load *L) Bytes(n int) []byte {
	if n < 0 || n > load.Len() {
		pan.Panic(pan.ErrUnexpectedEOF)
	}
	b := load.data[load.pos : load.pos+n]
	load.pos += n
	return b
}

// Skip reserved or padding bytes.
func (load *L) Skip(n int) {
	load.Bytes(n)
}

// Align skips padding up to the next multiple of n relative to the start.
func (load *L) Align(n int) {
	if rem := load.pos % n; rem != 0 {
		load.Skip(n - rem)
	}
}

func (load *L) Uint8() uint8 {
	return load.Bytes(1)[0]
}

func (load *L) Uint16() uint16 {
	return binary.LittleEndian.Uint16(load.Bytes(2))
}

func (load *L) Uint32() uint32 {
	return binary.LittleEndian.Uint32(load.Bytes(4))
}

func (load *L) Int32() int32 {
	return int32(load.Uint32())
}

func (load *L) Uint64() uint64 {
	return binary.LittleEndian.Uint64(load.Bytes(8))
}

// Count checks that n items of at least minSize bytes each can fit in the
// unread part.
func (load *L) Count(n uint64, minSize int, name string) int {
	if n > uint64(load.Len()/minSize) {
		pan.Panic(errors.FormatErrorf("%s count is too large: %d", name, n))
	}
	return int(n)
}
