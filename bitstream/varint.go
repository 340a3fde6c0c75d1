// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitstream

import (
	"math/bits"
)

const (
	// VarintHeaderBits is the size of a varint header.
	VarintHeaderBits = 4

	// VarintMaxInline is the largest value stored in the header itself.
	VarintMaxInline = 11
)

func varintHeader(v uint32) uint32 {
	if v <= VarintMaxInline {
		return v
	}
	return VarintMaxInline + uint32(varintPayloadBytes(v))
}

func varintPayloadBytes(v uint32) int {
	if v <= VarintMaxInline {
		return 0
	}
	return (bits.Len32(v) + 7) / 8
}

// VarintBits is the encoded size of a varint.
func VarintBits(v uint32) int {
	return VarintHeaderBits + varintPayloadBytes(v)*8
}
