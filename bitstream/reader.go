// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitstream

import (
	"github.com/safepoint/codeinfo/internal/pan"
)

// Reader reads bits sequentially.  Reading past the end of data panics with
// pan.ErrUnexpectedEOF via the internal panic zone; API functions recover it.
type Reader struct {
	data []byte
	pos  uint64
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Data which the reader was created with.
func (r *Reader) Data() []byte {
	return r.data
}

// Pos is the current bit position.
func (r *Reader) Pos() uint64 {
	return r.pos
}

// Skip n bits.
func (r *Reader) Skip(n uint64) {
	check(r.data, r.pos, n)
	r.pos += n
}

// Read n bits (at most 32).
func (r *Reader) Read(n int) uint32 {
	v := ReadAt(r.data, r.pos, n)
	r.pos += uint64(n)
	return v
}

// ReadWords reads n bits into a little-endian word array.
func (r *Reader) ReadWords(n int) []uint64 {
	words := ReadWordsAt(r.data, r.pos, n)
	r.pos += uint64(n)
	return words
}

// ReadVarint reads a single varint.
func (r *Reader) ReadVarint() uint32 {
	var v [1]uint32
	r.ReadVarints(v[:])
	return v[0]
}

// ReadVarints reads a varint pack of len(dst) values.
func (r *Reader) ReadVarints(dst []uint32) {
	for i := range dst {
		dst[i] = r.Read(VarintHeaderBits)
	}
	for i, header := range dst {
		if header > VarintMaxInline {
			dst[i] = r.Read(int(header-VarintMaxInline) * 8)
		}
	}
}

// ReadAt reads n bits (at most 32) starting at bit position pos.
func ReadAt(data []byte, pos uint64, n int) uint32 {
	if n == 0 {
		return 0
	}
	check(data, pos, uint64(n))

	var v uint32
	for shift := 0; shift < n; {
		i := pos / 8
		bit := uint(pos % 8)
		k := min(8-int(bit), n-shift)

		v |= (uint32(data[i]>>bit) & (1<<uint(k) - 1)) << uint(shift)
		shift += k
		pos += uint64(k)
	}
	return v
}

// ReadWordsAt reads n bits starting at bit position pos into a little-endian
// word array.
func ReadWordsAt(data []byte, pos uint64, n int) []uint64 {
	check(data, pos, uint64(n))

	words := make([]uint64, (n+63)/64)
	for i := range words {
		k := min(64, n-i*64)
		lo := ReadAt(data, pos, min(32, k))
		var hi uint32
		if k > 32 {
			hi = ReadAt(data, pos+32, k-32)
		}
		words[i] = uint64(hi)<<32 | uint64(lo)
		pos += uint64(k)
	}
	return words
}

func check(data []byte, pos, n uint64) {
	if end := pos + n; end < pos || end > uint64(len(data))*8 {
		pan.Panic(pan.ErrUnexpectedEOF)
	}
}
