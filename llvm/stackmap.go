// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package llvm parses the stack map and fault map sections emitted by LLVM.
package llvm

import (
	"fmt"
	"math"

	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/loader"
	"github.com/safepoint/codeinfo/internal/pan"
)

// StackMapVersion is the supported .llvm_stackmaps format version.
const StackMapVersion = 3

// DynamicStackSize is reported for functions with variable-size frames.
const DynamicStackSize = math.MaxUint64

const (
	headerSize   = 16
	functionSize = 24
	constantSize = 8
	recordSize   = 16 // Minimum including an empty live-out list.
	locationSize = 12
	liveOutSize  = 4
)

type LocationKind uint8

const (
	Register      LocationKind = 1 // Value in a register.
	Direct        LocationKind = 2 // Frame address: register + offset.
	Indirect      LocationKind = 3 // Spilled: [register + offset].
	Constant      LocationKind = 4 // Small constant in Offset field.
	ConstantIndex LocationKind = 5 // Offset is an index to Constants.
)

var locationKindNames = [...]string{
	Register:      "Register",
	Direct:        "Direct",
	Indirect:      "Indirect",
	Constant:      "Constant",
	ConstantIndex: "ConstantIndex",
}

func (k LocationKind) String() string {
	if int(k) < len(locationKindNames) && locationKindNames[k] != "" {
		return locationKindNames[k]
	}
	return fmt.Sprintf("LocationKind(%d)", uint8(k))
}

type Location struct {
	Kind     LocationKind
	Size     uint16
	DwarfReg uint16
	Offset   int32 // Offset, small constant or constant index.
}

// SmallConstant is the sign-extended value of a Constant location.
func (l Location) SmallConstant() int64 {
	return int64(l.Offset)
}

type LiveOut struct {
	DwarfReg uint16
	Size     uint8
}

type Function struct {
	Address     uint64
	StackSize   uint64
	RecordCount uint64
	FirstRecord int // Index of the first record in StackMap.Records.
}

func (f *Function) HasDynamicStackSize() bool {
	return f.StackSize == DynamicStackSize
}

type Record struct {
	ID                uint64
	InstructionOffset uint32 // Relative to function address.
	Flags             uint16
	Locations         []Location
	LiveOuts          []LiveOut
}

// StackMap is a parsed .llvm_stackmaps section.
type StackMap struct {
	Version   uint8
	Functions []Function
	Constants []uint64
	Records   []Record
}

// ParseStackMap section contents.  Records are grouped by function in
// function order.
func ParseStackMap(data []byte) (sm *StackMap, err error) {
	defer func() {
		if err != nil {
			sm = nil
		}
	}()
	defer func() { err = pan.Error(recover()) }()

	load := loader.New(data)

	sm = new(StackMap)
	sm.Version = load.Uint8()
	if sm.Version != StackMapVersion {
		pan.Panic(errors.FormatErrorf("unsupported stack map version: %d", sm.Version))
	}
	load.Skip(1 + 2)

	numFunctions := load.Uint32()
	numConstants := load.Uint32()
	numRecords := load.Uint32()

	sm.Functions = make([]Function, load.Count(uint64(numFunctions), functionSize, "function"))
	var total uint64
	for i := range sm.Functions {
		f := &sm.Functions[i]
		f.Address = load.Uint64()
		f.StackSize = load.Uint64()
		f.RecordCount = load.Uint64()
		f.FirstRecord = int(total)

		total += f.RecordCount
		if total < f.RecordCount || total > uint64(numRecords) {
			pan.Panic(errors.FormatErrorf("function %d record count exceeds total %d", i, numRecords))
		}
	}
	if total != uint64(numRecords) {
		pan.Panic(errors.FormatErrorf("function record counts sum to %d; expected %d", total, numRecords))
	}

	sm.Constants = make([]uint64, load.Count(uint64(numConstants), constantSize, "constant"))
	for i := range sm.Constants {
		sm.Constants[i] = load.Uint64()
	}

	sm.Records = make([]Record, load.Count(uint64(numRecords), recordSize, "record"))
	for i := range sm.Records {
		r := &sm.Records[i]
		r.ID = load.Uint64()
		r.InstructionOffset = load.Uint32()
		r.Flags = load.Uint16()

		r.Locations = make([]Location, load.Count(uint64(load.Uint16()), locationSize, "location"))
		for j := range r.Locations {
			l := &r.Locations[j]
			l.Kind = LocationKind(load.Uint8())
			load.Skip(1)
			l.Size = load.Uint16()
			l.DwarfReg = load.Uint16()
			load.Skip(2)
			l.Offset = load.Int32()

			if l.Kind < Register || l.Kind > ConstantIndex {
				pan.Panic(errors.FormatErrorf("record %d location %d has unknown kind %d", i, j, l.Kind))
			}
		}
		load.Align(8)

		load.Skip(2)
		r.LiveOuts = make([]LiveOut, load.Count(uint64(load.Uint16()), liveOutSize, "live-out"))
		for j := range r.LiveOuts {
			o := &r.LiveOuts[j]
			o.DwarfReg = load.Uint16()
			load.Skip(1)
			o.Size = load.Uint8()
		}
		load.Align(8)
	}

	return
}

// FunctionRecords of the function at index i.
func (sm *StackMap) FunctionRecords(i int) []Record {
	f := &sm.Functions[i]
	return sm.Records[f.FirstRecord : f.FirstRecord+int(f.RecordCount)]
}

// Constant referenced by a ConstantIndex location.
func (sm *StackMap) Constant(l Location) (value uint64, err error) {
	if l.Kind != ConstantIndex {
		err = errors.FormatErrorf("%s location is not a constant index", l.Kind)
		return
	}
	if l.Offset < 0 || int(l.Offset) >= len(sm.Constants) {
		err = errors.FormatErrorf("constant index %d out of range", l.Offset)
		return
	}
	value = sm.Constants[l.Offset]
	return
}
