// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo

import (
	"github.com/safepoint/codeinfo/bitstream"
	"github.com/safepoint/codeinfo/bittable"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/safepoint/codeinfo/target"
)

// VRegSearchDistance is the maximum number of stack maps between a stack map
// and the one which last recorded a virtual register's value, counting both.
const VRegSearchDistance = 32

// CodeInfo is a decoded view of an encoded buffer.  The data is referenced,
// not copied.
type CodeInfo struct {
	Header
	Arch target.Arch

	data   []byte
	size   int
	tables [NumTables]bittable.Table
}

// Load and validate CodeInfo from the start of data.  Trailing bytes beyond
// the aligned size are ignored.
func Load(data []byte, arch target.Arch) (ci *CodeInfo, err error) {
	defer func() {
		if err != nil {
			ci = nil
		}
	}()
	defer func() { err = pan.Error(recover()) }()

	if arch.InstructionAlignment() == 0 {
		pan.Panic(errors.UnsupportedErrorf("unsupported architecture: %s", arch))
	}

	ci = &CodeInfo{
		Arch: arch,
		data: data,
	}

	r := bitstream.NewReader(data)
	ci.Header.Decode(r)

	if ci.TableMask>>uint(NumTables) != 0 {
		pan.Panic(errors.FormatErrorf("unknown table mask bits: 0x%x", ci.TableMask))
	}

	for id := TableID(0); id < NumTables; id++ {
		if ci.HasTable(id) {
			ci.tables[id] = bittable.Decode(r, schemas[id])
			if ci.tables[id].Len() == 0 {
				pan.Panic(errors.FormatErrorf("%s table is present but empty", id))
			}
		} else {
			ci.tables[id] = bittable.Empty(schemas[id])
		}
	}

	ci.size = alignSize(int((r.Pos() + 7) / 8))
	if ci.size > len(data) {
		ci.size = len(data)
	}

	ci.validate()
	return
}

func alignSize(n int) int {
	return (n + SizeAlignment - 1) &^ (SizeAlignment - 1)
}

// Size of the encoded buffer including alignment padding.
func (ci *CodeInfo) Size() int {
	return ci.size
}

// Data of the encoded buffer.
func (ci *CodeInfo) Data() []byte {
	return ci.data[:ci.size]
}

// Table provides raw access for inspection.
func (ci *CodeInfo) Table(id TableID) *bittable.Table {
	return &ci.tables[id]
}

// NumStackMaps in native pc order.
func (ci *CodeInfo) NumStackMaps() int {
	return ci.tables[TableStackMaps].Len()
}

// NumImplicitNullChecks in native pc order.
func (ci *CodeInfo) NumImplicitNullChecks() int {
	return ci.tables[TableImplicitNullChecks].Len()
}

func (ci *CodeInfo) validate() {
	var (
		stackMaps  = &ci.tables[TableStackMaps]
		inlines    = &ci.tables[TableInlineInfos]
		regMasks   = &ci.tables[TableRootsRegMasks]
		stackMasks = &ci.tables[TableRootsStackMasks]
		methodIDs  = &ci.tables[TableMethodIDs]
		vregMasks  = &ci.tables[TableVRegMasks]
		vregMaps   = &ci.tables[TableVRegMaps]
		catalogue  = &ci.tables[TableVRegsCatalogue]
		constants  = &ci.tables[TableConstants]
	)

	checkIndex := func(t *bittable.Table, index uint32, what string) {
		if index != bittable.NoValue && !t.Has(index) {
			pan.Panic(errors.FormatErrorf("%s index %d out of %s table bounds", what, index, t.Schema().Name))
		}
	}

	var prevPc uint32
	for i := 0; i < stackMaps.Len(); i++ {
		pc := stackMaps.Get(i, StackMapNativePc)
		if pc == bittable.NoValue {
			pan.Panic(errors.FormatErrorf("stack map %d has no native pc", i))
		}
		if i > 0 && pc < prevPc {
			pan.Panic(errors.FormatErrorf("stack map %d native pc is not monotonic", i))
		}
		prevPc = pc

		checkIndex(regMasks, stackMaps.Get(i, StackMapRootsRegMaskIndex), "roots register mask")
		checkIndex(stackMasks, stackMaps.Get(i, StackMapRootsStackMaskIndex), "roots stack mask")
		checkIndex(vregMasks, stackMaps.Get(i, StackMapVRegMaskIndex), "vreg mask")

		if index := stackMaps.Get(i, StackMapInlineInfoIndex); index != bittable.NoValue {
			count := ci.VRegsCount
			for row := index; ; row++ {
				if !inlines.Has(row) {
					pan.Panic(errors.FormatErrorf("stack map %d inline chain is unterminated", i))
				}
				if n := inlines.Get(int(row), InlineInfoVRegsCount); n == bittable.NoValue || n < count {
					pan.Panic(errors.FormatErrorf("inline info %d vreg count is inconsistent", row))
				} else {
					count = n
				}
				if inlines.Get(int(row), InlineInfoMethodHi) == bittable.NoValue {
					if !methodIDs.Has(inlines.Get(int(row), InlineInfoMethodIDIndex)) {
						pan.Panic(errors.FormatErrorf("inline info %d has no method", row))
					}
				}
				if inlines.Get(int(row), InlineInfoIsLast) != 0 {
					break
				}
			}
		}

		mask := stackMaps.Get(i, StackMapVRegMaskIndex)
		mapIndex := stackMaps.Get(i, StackMapVRegMapIndex)
		if mask != bittable.NoValue {
			count := vregMasks.Bitmap(int(mask)).Count()
			if count == 0 || mapIndex == bittable.NoValue || int64(mapIndex)+int64(count) > int64(vregMaps.Len()) {
				pan.Panic(errors.FormatErrorf("stack map %d vreg map is out of bounds", i))
			}
		}
	}

	for i := 0; i < vregMaps.Len(); i++ {
		checkIndex(catalogue, vregMaps.Get(i, VRegMapCatalogueIndex), "vreg catalogue")
	}

	for i := 0; i < catalogue.Len(); i++ {
		v := UnpackVRegInfo(catalogue.Get(i, VRegsCatalogueInfo), catalogue.Get(i, VRegsCatalogueValue))
		if v.Location > LocationConstant || v.Type > TypeAny || v.VRegType > VRegTypeEnv {
			pan.Panic(errors.FormatErrorf("vreg catalogue entry %d is invalid", i))
		}
		if v.Location == LocationConstant {
			low, high := v.ConstantIndices()
			checkIndex(constants, low, "constant")
			checkIndex(constants, high, "constant")
		}
	}

	for i := 0; i < stackMaps.Len(); i++ {
		if ci.StackMap(i).HasRegMap() {
			ci.vregs(i, 0, ci.stackMapVRegsCount(i), nil, true)
		}
	}

	nullChecks := &ci.tables[TableImplicitNullChecks]
	for i := 1; i < nullChecks.Len(); i++ {
		if nullChecks.Get(i, ImplicitNullCheckPc) < nullChecks.Get(i-1, ImplicitNullCheckPc) {
			pan.Panic(errors.FormatErrorf("implicit null check %d native pc is not monotonic", i))
		}
	}
}
