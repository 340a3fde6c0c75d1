// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package llvmblob writes synthetic LLVM stack map and fault map sections.
package llvmblob

import (
	"encoding/binary"

	"github.com/safepoint/codeinfo/llvm"
)

var le = binary.LittleEndian

type Function struct {
	Address   uint64
	StackSize uint64
	Records   []llvm.Record
}

type StackMap struct {
	Functions []Function
	Constants []uint64
}

// Bytes in version 3 format.
func (sm *StackMap) Bytes() []byte {
	var numRecords int
	for _, f := range sm.Functions {
		numRecords += len(f.Records)
	}

	b := []byte{llvm.StackMapVersion, 0, 0, 0}
	b = le.AppendUint32(b, uint32(len(sm.Functions)))
	b = le.AppendUint32(b, uint32(len(sm.Constants)))
	b = le.AppendUint32(b, uint32(numRecords))

	for _, f := range sm.Functions {
		b = le.AppendUint64(b, f.Address)
		b = le.AppendUint64(b, f.StackSize)
		b = le.AppendUint64(b, uint64(len(f.Records)))
	}

	for _, c := range sm.Constants {
		b = le.AppendUint64(b, c)
	}

	for _, f := range sm.Functions {
		for _, r := range f.Records {
			b = le.AppendUint64(b, r.ID)
			b = le.AppendUint32(b, r.InstructionOffset)
			b = le.AppendUint16(b, r.Flags)
			b = le.AppendUint16(b, uint16(len(r.Locations)))

			for _, l := range r.Locations {
				b = append(b, uint8(l.Kind), 0)
				b = le.AppendUint16(b, l.Size)
				b = le.AppendUint16(b, l.DwarfReg)
				b = le.AppendUint16(b, 0)
				b = le.AppendUint32(b, uint32(l.Offset))
			}
			b = pad(b)

			b = le.AppendUint16(b, 0)
			b = le.AppendUint16(b, uint16(len(r.LiveOuts)))
			for _, o := range r.LiveOuts {
				b = le.AppendUint16(b, o.DwarfReg)
				b = append(b, 0, o.Size)
			}
			b = pad(b)
		}
	}

	return b
}

func pad(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

type FaultMap struct {
	Functions []llvm.FaultFunction
}

// Bytes in version 1 format.
func (fm *FaultMap) Bytes() []byte {
	b := []byte{llvm.FaultMapVersion, 0, 0, 0}
	b = le.AppendUint32(b, uint32(len(fm.Functions)))

	for _, f := range fm.Functions {
		b = le.AppendUint64(b, f.Address)
		b = le.AppendUint32(b, uint32(len(f.FaultingPCs)))
		b = le.AppendUint32(b, 0)

		for _, pc := range f.FaultingPCs {
			b = le.AppendUint32(b, uint32(pc.Kind))
			b = le.AppendUint32(b, pc.FaultingPCOffset)
			b = le.AppendUint32(b, pc.HandlerPCOffset)
		}
	}

	return b
}

func Const(value int32) llvm.Location {
	return llvm.Location{Kind: llvm.Constant, Size: 8, Offset: value}
}

func ConstIndex(index int32) llvm.Location {
	return llvm.Location{Kind: llvm.ConstantIndex, Size: 8, Offset: index}
}

func Reg(dwarfReg uint16) llvm.Location {
	return llvm.Location{Kind: llvm.Register, Size: 8, DwarfReg: dwarfReg}
}

func Direct(dwarfReg uint16, offset int32) llvm.Location {
	return llvm.Location{Kind: llvm.Direct, Size: 8, DwarfReg: dwarfReg, Offset: offset}
}

func Indirect(dwarfReg uint16, offset int32) llvm.Location {
	return llvm.Location{Kind: llvm.Indirect, Size: 8, DwarfReg: dwarfReg, Offset: offset}
}

// Statepoint locations: calling convention, flags, deopt count, deopt
// bundle and roots.
func Statepoint(deopt, roots []llvm.Location) []llvm.Location {
	locs := []llvm.Location{Const(0), Const(0), Const(int32(len(deopt)))}
	locs = append(locs, deopt...)
	return append(locs, roots...)
}

// VReg record of a deopt bundle.
type VReg struct {
	Index uint32
	Type  uint8 // Value type | kind<<4.
	Value llvm.Location
}

// Frame of a deopt bundle.
type Frame struct {
	MethodID    uint32
	BytecodePc  uint32
	NeedsRegMap bool
	VRegsCount  uint32
	VRegs       []VReg
}

// Deopt bundle describing frames from outermost to innermost.
func Deopt(frames ...Frame) []llvm.Location {
	locs := []llvm.Location{Const(int32(len(frames)))}

	start := 1 + 4*len(frames)
	for _, f := range frames {
		pc := f.BytecodePc
		if f.NeedsRegMap {
			pc |= 1 << 31
		}

		locs = append(locs,
			Const(int32(f.MethodID)),
			Const(int32(pc)),
			Const(int32(f.VRegsCount)),
			Const(int32(start)),
		)
		start += 3 * len(f.VRegs)
	}

	for _, f := range frames {
		for _, v := range f.VRegs {
			locs = append(locs, Const(int32(v.Index)), Const(int32(v.Type)), v.Value)
		}
	}

	return locs
}
