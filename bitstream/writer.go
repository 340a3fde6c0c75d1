// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitstream implements the bit-packed (not byte-aligned) stream which
// all CodeInfo tables share.
//
// Bits are stored least significant first.  Bit position p of a stream is bit
// p%8 of byte p/8.
package bitstream

import (
	"github.com/safepoint/codeinfo/buffer"
)

// Writer appends bits to a buffer.  The stream starts at the length which the
// buffer had when the writer was created.
type Writer struct {
	buf    buffer.Buffer
	offset int
	pos    uint64
}

func NewWriter(buf buffer.Buffer) *Writer {
	return &Writer{buf: buf, offset: buf.Len()}
}

// Offset of the first byte of the stream within the buffer.
func (w *Writer) Offset() int {
	return w.offset
}

// BitLen is the number of bits written so far.
func (w *Writer) BitLen() uint64 {
	return w.pos
}

// ByteLen is the number of bytes touched so far.
func (w *Writer) ByteLen() int {
	return int((w.pos + 7) / 8)
}

// Write the n low bits of value.  n must not exceed 32.
func (w *Writer) Write(value uint32, n int) {
	if n == 0 {
		return
	}
	if n < 32 {
		value &= 1<<uint(n) - 1
	}

	w.reserve(n)
	b := w.buf.Bytes()[w.offset:]

	for n > 0 {
		i := w.pos / 8
		shift := uint(w.pos % 8)
		k := min(8-int(shift), n)

		b[i] |= byte(value&(1<<uint(k)-1)) << shift
		value >>= uint(k)
		n -= k
		w.pos += uint64(k)
	}
}

// WriteWords writes the n low bits of a little-endian word array.  Missing
// words are written as zeros.
func (w *Writer) WriteWords(words []uint64, n int) {
	for i := 0; n > 0; i++ {
		var word uint64
		if i < len(words) {
			word = words[i]
		}

		k := min(64, n)
		w.Write(uint32(word), min(32, k))
		if k > 32 {
			w.Write(uint32(word>>32), k-32)
		}
		n -= k
	}
}

// WriteVarint writes a single varint.
func (w *Writer) WriteVarint(value uint32) {
	w.WriteVarints(value)
}

// WriteVarints writes a varint pack: all headers first, then the extension
// payloads of the values which didn't fit in their headers.
func (w *Writer) WriteVarints(values ...uint32) {
	for _, v := range values {
		w.Write(varintHeader(v), VarintHeaderBits)
	}
	for _, v := range values {
		if n := varintPayloadBytes(v); n > 0 {
			w.Write(v, n*8)
		}
	}
}

func (w *Writer) reserve(n int) {
	need := w.offset + int((w.pos+uint64(n)+7)/8)
	if have := w.buf.Len(); need > have {
		w.buf.Extend(need - have)
	}
}
