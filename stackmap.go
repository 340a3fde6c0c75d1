// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo

import (
	"sort"

	"github.com/safepoint/codeinfo/bittable"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
)

// StackMap is a view of a StackMaps table row.
type StackMap struct {
	ci    *CodeInfo
	Index int
}

// StackMap by index.  It panics if the index is out of range.
func (ci *CodeInfo) StackMap(i int) StackMap {
	if i < 0 || i >= ci.NumStackMaps() {
		panic(errors.ContractErrorf("stack map index %d out of range", i))
	}
	return StackMap{ci, i}
}

func (sm StackMap) get(col int) uint32 {
	return sm.ci.tables[TableStackMaps].Get(sm.Index, col)
}

func (sm StackMap) properties() uint32 {
	if p := sm.get(StackMapProperties); p != bittable.NoValue {
		return p
	}
	return 0
}

// NativePc is the code offset of the safepoint.
func (sm StackMap) NativePc() uint32 {
	return sm.ci.Arch.UnpackAddress(sm.get(StackMapNativePc))
}

func (sm StackMap) BytecodePc() uint32 {
	return sm.get(StackMapBytecodePc)
}

func (sm StackMap) IsOsr() bool {
	return sm.properties()&StackMapIsOsr != 0
}

func (sm StackMap) HasRegMap() bool {
	return sm.properties()&StackMapHasRegMap != 0
}

// RootsRegMask is zero if no registers hold references.
func (sm StackMap) RootsRegMask() uint32 {
	index := sm.get(StackMapRootsRegMaskIndex)
	if index == bittable.NoValue {
		return 0
	}
	return sm.ci.tables[TableRootsRegMasks].Get(int(index), RootsRegMaskMask)
}

// RootsStackMask is nil if no stack slots hold references.
func (sm StackMap) RootsStackMask() bittable.Bitmap {
	index := sm.get(StackMapRootsStackMaskIndex)
	if index == bittable.NoValue {
		return nil
	}
	return sm.ci.tables[TableRootsStackMasks].Bitmap(int(index))
}

func (sm StackMap) HasInlineInfo() bool {
	return sm.get(StackMapInlineInfoIndex) != bittable.NoValue
}

// InlineInfos from outermost to innermost inlined frame.
func (sm StackMap) InlineInfos() (infos []InlineInfo) {
	index := sm.get(StackMapInlineInfoIndex)
	if index == bittable.NoValue {
		return nil
	}

	for row := int(index); ; row++ {
		info := sm.ci.inlineInfo(row)
		infos = append(infos, info)
		if info.IsLast {
			return
		}
	}
}

// InlineDepth is the number of inlined frames.
func (sm StackMap) InlineDepth() int {
	return len(sm.InlineInfos())
}

// VRegsCount of the method and all inlined frames.
func (sm StackMap) VRegsCount() int {
	return sm.ci.stackMapVRegsCount(sm.Index)
}

// VRegs of all frames, method's frame first.  The result is nil if the stack
// map has no register map.
func (sm StackMap) VRegs() []VRegInfo {
	if !sm.HasRegMap() {
		return nil
	}
	return sm.ci.vregs(sm.Index, 0, sm.VRegsCount(), nil, false)
}

// FrameVRegs of the method (depth 0) or an inlined frame (depth 1 and up).
func (sm StackMap) FrameVRegs(depth int) []VRegInfo {
	if !sm.HasRegMap() {
		return nil
	}

	start := 0
	end := int(sm.ci.VRegsCount)

	if depth > 0 {
		infos := sm.InlineInfos()
		if depth > len(infos) {
			panic(errors.ContractErrorf("inline depth %d exceeds %d", depth, len(infos)))
		}
		if depth > 1 {
			start = int(infos[depth-2].VRegsCount)
		} else {
			start = end
		}
		end = int(infos[depth-1].VRegsCount)
	}

	return sm.ci.vregs(sm.Index, start, end, nil, false)
}

// InlineInfo is a view of an InlineInfos table row.
type InlineInfo struct {
	Index      int
	IsLast     bool
	BytecodePc uint32
	Method     uint64 // Zero if the method is identified by MethodID.
	MethodID   uint32
	VRegsCount uint32 // Running total including the enclosing frames.
}

func (ci *CodeInfo) inlineInfo(row int) InlineInfo {
	t := &ci.tables[TableInlineInfos]

	info := InlineInfo{
		Index:      row,
		IsLast:     t.Get(row, InlineInfoIsLast) != 0,
		BytecodePc: t.Get(row, InlineInfoBytecodePc),
		MethodID:   bittable.NoValue,
		VRegsCount: t.Get(row, InlineInfoVRegsCount),
	}

	if hi := t.Get(row, InlineInfoMethodHi); hi != bittable.NoValue {
		info.Method = uint64(hi)<<32 | uint64(t.Get(row, InlineInfoMethodLow))
	} else {
		index := t.Get(row, InlineInfoMethodIDIndex)
		info.MethodID = ci.tables[TableMethodIDs].Get(int(index), MethodIDID)
	}

	return info
}

func (ci *CodeInfo) stackMapVRegsCount(i int) int {
	index := ci.tables[TableStackMaps].Get(i, StackMapInlineInfoIndex)
	if index == bittable.NoValue {
		return int(ci.VRegsCount)
	}

	t := &ci.tables[TableInlineInfos]
	for row := int(index); ; row++ {
		if t.Get(row, InlineInfoIsLast) != 0 {
			return int(t.Get(row, InlineInfoVRegsCount))
		}
	}
}

// vregs resolves virtual registers [start, end) of stack map i.  Each value
// is found in the nearest stack map which recorded it, searching backwards.
func (ci *CodeInfo) vregs(i, start, end int, dst []VRegInfo, strict bool) []VRegInfo {
	var (
		stackMaps = &ci.tables[TableStackMaps]
		masks     = &ci.tables[TableVRegMasks]
		maps      = &ci.tables[TableVRegMaps]
		catalogue = &ci.tables[TableVRegsCatalogue]
	)

	if end < start {
		pan.Panic(errors.FormatErrorf("stack map %d vreg count is inconsistent", i))
	}

	dst = append(dst, make([]VRegInfo, end-start)...)
	out := dst[len(dst)-(end-start):]
	found := make([]bool, len(out))
	remaining := len(out)

	for j := i; j >= 0 && j > i-VRegSearchDistance && remaining > 0; j-- {
		maskIndex := stackMaps.Get(j, StackMapVRegMaskIndex)
		if maskIndex == bittable.NoValue {
			continue
		}

		mask := masks.Bitmap(int(maskIndex))
		mapIndex := int(stackMaps.Get(j, StackMapVRegMapIndex))

		for k := range out {
			v := start + k
			if found[k] || !mask.Test(v) {
				continue
			}

			cat := maps.Get(mapIndex+mask.Rank(v), VRegMapCatalogueIndex)
			if cat != bittable.NoValue {
				out[k] = UnpackVRegInfo(catalogue.Get(int(cat), VRegsCatalogueInfo), catalogue.Get(int(cat), VRegsCatalogueValue))
			}
			found[k] = true
			remaining--
		}
	}

	if strict && remaining > 0 {
		pan.Panic(errors.FormatErrorf("stack map %d has vregs without recorded values", i))
	}

	return dst
}

// FindStackMapForNativePc finds the stack map at an exact code offset.
func (ci *CodeInfo) FindStackMapForNativePc(pc uint32) (sm StackMap, found bool) {
	n := ci.NumStackMaps()
	i := sort.Search(n, func(i int) bool {
		return ci.StackMap(i).NativePc() >= pc
	})
	if i < n && ci.StackMap(i).NativePc() == pc {
		sm = ci.StackMap(i)
		found = true
	}
	return
}

// FindOsrStackMap finds the on-stack-replacement entry at a bytecode offset.
func (ci *CodeInfo) FindOsrStackMap(bytecodePc uint32) (sm StackMap, found bool) {
	for i := 0; i < ci.NumStackMaps(); i++ {
		if s := ci.StackMap(i); s.IsOsr() && s.BytecodePc() == bytecodePc {
			return s, true
		}
	}
	return
}

// ConstantValue of a Constant location.
func (ci *CodeInfo) ConstantValue(v VRegInfo) uint64 {
	if v.Location != LocationConstant {
		panic(errors.ContractErrorf("vreg location is %s", v.Location))
	}

	t := &ci.tables[TableConstants]
	low, high := v.ConstantIndices()
	return uint64(t.Get(int(high), ConstantValue))<<32 | uint64(t.Get(int(low), ConstantValue))
}

// ImplicitNullCheck maps a faulting instruction to its handler.
type ImplicitNullCheck struct {
	InstructionNativePc uint32
	Offset              uint32
}

func (ci *CodeInfo) ImplicitNullCheck(i int) ImplicitNullCheck {
	t := &ci.tables[TableImplicitNullChecks]
	return ImplicitNullCheck{
		InstructionNativePc: t.Get(i, ImplicitNullCheckPc),
		Offset:              t.Get(i, ImplicitNullCheckOffset),
	}
}

func (ci *CodeInfo) ImplicitNullChecks() []ImplicitNullCheck {
	checks := make([]ImplicitNullCheck, ci.NumImplicitNullChecks())
	for i := range checks {
		checks[i] = ci.ImplicitNullCheck(i)
	}
	return checks
}

// FindImplicitNullCheck by faulting instruction offset.
func (ci *CodeInfo) FindImplicitNullCheck(pc uint32) (check ImplicitNullCheck, found bool) {
	n := ci.NumImplicitNullChecks()
	i := sort.Search(n, func(i int) bool {
		return ci.ImplicitNullCheck(i).InstructionNativePc >= pc
	})
	if i < n {
		if c := ci.ImplicitNullCheck(i); c.InstructionNativePc == pc {
			return c, true
		}
	}
	return
}
