// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo

import (
	"github.com/safepoint/codeinfo/bitstream"
)

// SizeAlignment of an encoded CodeInfo buffer.
const SizeAlignment = 4

const numHeaderFields = 5

// Header precedes the tables.
type Header struct {
	FrameSize       uint32 // In bytes.
	HasFloatRegs    bool
	CalleeRegMask   uint32
	CalleeFPRegMask uint32
	TableMask       uint32 // Bit i is set if table i is present.
	VRegsCount      uint32
}

func (h *Header) properties() uint32 {
	p := h.FrameSize << 1
	if h.HasFloatRegs {
		p |= 1
	}
	return p
}

// Encode the header as a varint pack.
func (h *Header) Encode(w *bitstream.Writer) {
	w.WriteVarints(h.properties(), h.CalleeRegMask, h.CalleeFPRegMask, h.TableMask, h.VRegsCount)
}

// Decode the header.
func (h *Header) Decode(r *bitstream.Reader) {
	var fields [numHeaderFields]uint32
	r.ReadVarints(fields[:])

	*h = Header{
		FrameSize:       fields[0] >> 1,
		HasFloatRegs:    fields[0]&1 != 0,
		CalleeRegMask:   fields[1],
		CalleeFPRegMask: fields[2],
		TableMask:       fields[3],
		VRegsCount:      fields[4],
	}
}

// HasTable reports whether the table bit is set.
func (h *Header) HasTable(id TableID) bool {
	return h.TableMask&(1<<uint(id)) != 0
}
