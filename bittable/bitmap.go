// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bittable

import (
	"encoding/binary"
	"math/bits"
	"strconv"
	"strings"
)

// Bitmap is a growable bit-set stored as little-endian words.  The zero value
// is empty.
type Bitmap []uint64

func (b *Bitmap) Set(i int) {
	w := i / 64
	if w >= len(*b) {
		*b = append(*b, make([]uint64, w+1-len(*b))...)
	}
	(*b)[w] |= 1 << uint(i%64)
}

func (b Bitmap) Test(i int) bool {
	w := i / 64
	return i >= 0 && w < len(b) && b[w]&(1<<uint(i%64)) != 0
}

// Len is the index of the highest set bit plus one.
func (b Bitmap) Len() int {
	for w := len(b) - 1; w >= 0; w-- {
		if b[w] != 0 {
			return w*64 + bits.Len64(b[w])
		}
	}
	return 0
}

func (b Bitmap) Empty() bool {
	return b.Len() == 0
}

// Count of set bits.
func (b Bitmap) Count() (n int) {
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return
}

// Rank is the number of set bits below index i.
func (b Bitmap) Rank(i int) (n int) {
	for w := 0; w < len(b) && w*64 < i; w++ {
		word := b[w]
		if rem := i - w*64; rem < 64 {
			word &= 1<<uint(rem) - 1
		}
		n += bits.OnesCount64(word)
	}
	return
}

func (b Bitmap) Equal(other Bitmap) bool {
	x, y := b.trim(), other.trim()
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// ForEach calls f for every set bit in ascending order.
func (b Bitmap) ForEach(f func(i int)) {
	for w, word := range b {
		for word != 0 {
			i := bits.TrailingZeros64(word)
			f(w*64 + i)
			word &= word - 1
		}
	}
}

func (b Bitmap) String() string {
	var s strings.Builder
	s.WriteByte('{')
	first := true
	b.ForEach(func(i int) {
		if !first {
			s.WriteByte(',')
		}
		first = false
		s.WriteString(strconv.Itoa(i))
	})
	s.WriteByte('}')
	return s.String()
}

func (b Bitmap) trim() Bitmap {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

func (b Bitmap) key() string {
	t := b.trim()
	k := make([]byte, 0, len(t)*8)
	for _, w := range t {
		k = binary.LittleEndian.AppendUint64(k, w)
	}
	return string(k)
}
