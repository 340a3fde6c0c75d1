// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package builder encodes CodeInfo for one method at a time.
//
// The Builder is driven by a bracketed call sequence:
//
//	BeginMethod
//	    BeginStackMap
//	        BeginInlineInfo ... EndInlineInfo (nested)
//	        AddVReg, AddConstant
//	    EndStackMap
//	    AddImplicitNullCheck
//	EndMethod
//	Encode
//
// Violations of the sequence are programming errors.  They are detected only
// in strict mode, and cause a panic with an errors.ContractError value.
package builder

import (
	"github.com/safepoint/codeinfo"
	"github.com/safepoint/codeinfo/bitstream"
	"github.com/safepoint/codeinfo/bittable"
	"github.com/safepoint/codeinfo/buffer"
	"github.com/safepoint/codeinfo/config"
	"github.com/safepoint/codeinfo/internal/debug"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/safepoint/codeinfo/target"
)

// SafePoint describes the references live at a safepoint.
type SafePoint interface {
	RootsRegMask() uint32
	RootsStackMask() bittable.Bitmap
	IsOsr() bool
}

type state int

const (
	stateIdle state = iota
	stateMethod
	stateStackMap
	stateMethodClosed
)

var stateNames = [...]string{
	stateIdle:         "idle",
	stateMethod:       "method open",
	stateStackMap:     "stack map open",
	stateMethodClosed: "method closed",
}

func (s state) String() string {
	return stateNames[s]
}

type vregState struct {
	info       codeinfo.VRegInfo
	lastChange int // Stack map index; negative if never emitted.
}

// Builder of a single method's CodeInfo.
type Builder struct {
	// Strict enables checking of the call sequence and the native pc
	// ordering.  It is initialized from configuration, and may be toggled
	// between methods.
	Strict bool

	arch   target.Arch
	state  state
	header codeinfo.Header

	stackMaps       *bittable.Builder
	inlineInfos     *bittable.Builder
	rootsRegMasks   *bittable.Builder
	rootsStackMasks *bittable.BitmapBuilder
	methodIDs       *bittable.Builder
	vregMasks       *bittable.BitmapBuilder
	vregMaps        *bittable.Builder
	vregsCatalogue  *bittable.Builder
	nullChecks      *bittable.Builder
	constants       *bittable.Builder

	// Open stack map.
	stackMap       []uint32
	requireVRegMap bool
	inlineChain    [][]uint32
	inlineDepth    int // Number of open inline infos.
	vregsCount     int // Expected number of vregs.
	vregs          []codeinfo.VRegInfo

	lastNativePc    uint32
	lastNullCheckPc uint32
	history         []vregState
}

// New Builder for an architecture.
func New(arch target.Arch, c config.Config) *Builder {
	if arch.InstructionAlignment() == 0 {
		panic(errors.ContractErrorf("builder: unsupported architecture: %s", arch))
	}

	return &Builder{
		Strict: c.Strict,
		arch:   arch,
	}
}

func (b *Builder) check(ok bool, format string, args ...any) {
	if b.Strict && !ok {
		panic(errors.ContractErrorf(format, args...))
	}
}

func (b *Builder) expect(s state, op string) {
	b.check(b.state == s, "builder: %s while %s", op, b.state)
}

func schema(id codeinfo.TableID) *bittable.Schema {
	return codeinfo.Schema(id)
}

// BeginMethod opens a method.  Frame size is in bytes.
func (b *Builder) BeginMethod(frameSize, vregsCount uint32) {
	b.expect(stateIdle, "BeginMethod")

	b.state = stateMethod
	b.header = codeinfo.Header{
		FrameSize:  frameSize,
		VRegsCount: vregsCount,
	}

	b.stackMaps = bittable.NewBuilder(schema(codeinfo.TableStackMaps), false)
	b.inlineInfos = bittable.NewBuilder(schema(codeinfo.TableInlineInfos), false)
	b.rootsRegMasks = bittable.NewBuilder(schema(codeinfo.TableRootsRegMasks), true)
	b.rootsStackMasks = bittable.NewBitmapBuilder(schema(codeinfo.TableRootsStackMasks))
	b.methodIDs = bittable.NewBuilder(schema(codeinfo.TableMethodIDs), true)
	b.vregMasks = bittable.NewBitmapBuilder(schema(codeinfo.TableVRegMasks))
	b.vregMaps = bittable.NewBuilder(schema(codeinfo.TableVRegMaps), false)
	b.vregsCatalogue = bittable.NewBuilder(schema(codeinfo.TableVRegsCatalogue), true)
	b.nullChecks = bittable.NewBuilder(schema(codeinfo.TableImplicitNullChecks), false)
	b.constants = bittable.NewBuilder(schema(codeinfo.TableConstants), true)

	b.constants.Add(0)
	b.lastNativePc = 0
	b.lastNullCheckPc = 0
	b.history = b.history[:0]

	if debug.Enabled {
		debug.Printf("builder: begin method: frame size %d, %d vregs", frameSize, vregsCount)
		debug.Depth++
	}
}

// EndMethod closes the method.
func (b *Builder) EndMethod() {
	b.expect(stateMethod, "EndMethod")
	b.state = stateMethodClosed

	if debug.Enabled {
		debug.Depth--
		debug.Printf("builder: end method: %d stack maps", b.stackMaps.Len())
	}
}

// SetFrameSize overrides the frame size passed to BeginMethod.
func (b *Builder) SetFrameSize(frameSize uint32) {
	b.check(b.state == stateMethod || b.state == stateStackMap, "builder: SetFrameSize while %s", b.state)
	b.header.FrameSize = frameSize
}

// SetSavedCalleeRegsMask records the callee-saved registers stored in the
// frame.
func (b *Builder) SetSavedCalleeRegsMask(regs, fpRegs uint32) {
	b.check(b.state == stateMethod || b.state == stateStackMap, "builder: SetSavedCalleeRegsMask while %s", b.state)
	b.header.CalleeRegMask = regs
	b.header.CalleeFPRegMask = fpRegs
}

func (b *Builder) SetHasFloatRegs(has bool) {
	b.check(b.state == stateMethod || b.state == stateStackMap, "builder: SetHasFloatRegs while %s", b.state)
	b.header.HasFloatRegs = has
}

// BeginStackMap opens a stack map.  Native pc must not be less than that of
// the previous stack map.
func (b *Builder) BeginStackMap(bytecodePc, nativePc uint32, sp SafePoint, requireVRegMap bool) {
	b.expect(stateMethod, "BeginStackMap")
	b.check(b.stackMaps.Len() == 0 || nativePc >= b.lastNativePc,
		"builder: native pc 0x%x is less than previous stack map's 0x%x", nativePc, b.lastNativePc)
	b.check(nativePc%b.arch.InstructionAlignment() == 0, "builder: native pc 0x%x is misaligned", nativePc)

	b.state = stateStackMap
	b.lastNativePc = nativePc

	row := make([]uint32, schema(codeinfo.TableStackMaps).NumColumns())
	for i := range row {
		row[i] = bittable.NoValue
	}

	var props uint32
	if sp.IsOsr() {
		props |= codeinfo.StackMapIsOsr
	}
	if requireVRegMap {
		props |= codeinfo.StackMapHasRegMap
	}
	row[codeinfo.StackMapProperties] = props
	row[codeinfo.StackMapNativePc] = b.arch.PackAddress(nativePc)
	row[codeinfo.StackMapBytecodePc] = bytecodePc

	if mask := sp.RootsRegMask(); mask != 0 {
		row[codeinfo.StackMapRootsRegMaskIndex] = b.rootsRegMasks.Add(mask)
	}
	if mask := sp.RootsStackMask(); !mask.Empty() {
		row[codeinfo.StackMapRootsStackMaskIndex] = b.rootsStackMasks.Add(mask)
	}

	b.stackMap = row
	b.requireVRegMap = requireVRegMap
	b.inlineChain = b.inlineChain[:0]
	b.inlineDepth = 0
	b.vregsCount = int(b.header.VRegsCount)
	b.vregs = b.vregs[:0]

	if debug.Enabled {
		debug.Printf("builder: begin stack map %d: bytecode pc 0x%x, native pc 0x%x", b.stackMaps.Len(), bytecodePc, nativePc)
		debug.Depth++
	}
}

// BeginInlineInfo opens an inlined frame within the open stack map or inline
// info.  The method is identified by a non-zero handle, or by a method id if
// the handle is zero.  The high half of a handle must not be 0xffffffff.
func (b *Builder) BeginInlineInfo(method uint64, methodID uint32, bytecodePc uint32, vregsCount uint32) {
	b.expect(stateStackMap, "BeginInlineInfo")
	b.check(uint32(method>>32) != bittable.NoValue, "builder: method handle 0x%x is not representable", method)

	row := make([]uint32, schema(codeinfo.TableInlineInfos).NumColumns())
	for i := range row {
		row[i] = bittable.NoValue
	}

	row[codeinfo.InlineInfoIsLast] = 0
	row[codeinfo.InlineInfoBytecodePc] = bytecodePc

	if method != 0 {
		row[codeinfo.InlineInfoMethodHi] = uint32(method >> 32)
		row[codeinfo.InlineInfoMethodLow] = uint32(method)
	} else {
		row[codeinfo.InlineInfoMethodIDIndex] = b.methodIDs.Add(methodID)
	}

	b.vregsCount += int(vregsCount)
	row[codeinfo.InlineInfoVRegsCount] = uint32(b.vregsCount)

	b.inlineChain = append(b.inlineChain, row)
	b.inlineDepth++

	if debug.Enabled {
		debug.Printf("builder: begin inline info %d: method 0x%x, id %d, bytecode pc 0x%x, %d vregs", b.inlineDepth, method, methodID, bytecodePc, vregsCount)
		debug.Depth++
	}
}

// EndInlineInfo closes the innermost open inline info.
func (b *Builder) EndInlineInfo() {
	b.expect(stateStackMap, "EndInlineInfo")
	b.check(b.inlineDepth > 0, "builder: EndInlineInfo without BeginInlineInfo")

	if b.inlineDepth > 0 {
		b.inlineDepth--
	}

	if debug.Enabled {
		debug.Depth--
	}
}

// AddVReg appends the location of the next virtual register.  Virtual
// registers are added in index order: the method's, followed by each inlined
// frame's.
func (b *Builder) AddVReg(v codeinfo.VRegInfo) {
	b.expect(stateStackMap, "AddVReg")
	b.check(v.Location != codeinfo.LocationConstant, "builder: constant vreg must be added via AddConstant")
	b.vregs = append(b.vregs, v)
}

// AddConstant appends a virtual register holding a constant value.  The value
// is split into two 32-bit halves stored in the constant table.
func (b *Builder) AddConstant(value uint64, t codeinfo.Type, kind codeinfo.VRegType) {
	b.expect(stateStackMap, "AddConstant")

	low := b.constants.Add(uint32(value))
	high := b.constants.Add(uint32(value >> 32))
	b.check(low <= codeinfo.MaxConstantIndex && high <= codeinfo.MaxConstantIndex, "builder: constant table is full")

	b.vregs = append(b.vregs, codeinfo.ConstantVReg(low, high, t, kind))
}

// EndStackMap closes the open stack map.
func (b *Builder) EndStackMap() {
	b.expect(stateStackMap, "EndStackMap")
	b.check(b.inlineDepth == 0, "builder: EndStackMap with %d open inline infos", b.inlineDepth)

	index := b.stackMaps.Len()

	if n := len(b.inlineChain); n > 0 {
		b.inlineChain[n-1][codeinfo.InlineInfoIsLast] = 1
		b.stackMap[codeinfo.StackMapInlineInfoIndex] = b.inlineInfos.AddArray(b.inlineChain)
	}

	if b.requireVRegMap {
		b.check(len(b.vregs) == b.vregsCount, "builder: stack map has %d vregs; expected %d", len(b.vregs), b.vregsCount)
		b.emitVRegs(index)
	}

	b.stackMaps.Add(b.stackMap...)
	b.stackMap = nil
	b.state = stateMethod

	if debug.Enabled {
		debug.Depth--
		debug.Printf("builder: end stack map %d", index)
	}
}

// emitVRegs records the vregs which changed since their last emission, or
// which were last emitted too long ago to be found by a decoder.
func (b *Builder) emitVRegs(index int) {
	for len(b.history) < len(b.vregs) {
		b.history = append(b.history, vregState{lastChange: -1})
	}

	var (
		mask bittable.Bitmap
		rows [][]uint32
	)

	for i, v := range b.vregs {
		h := &b.history[i]
		if h.lastChange >= 0 && h.info == v && index-h.lastChange < codeinfo.VRegSearchDistance {
			continue
		}

		h.info = v
		h.lastChange = index

		cat := uint32(bittable.NoValue)
		if v.IsLive() {
			cat = b.vregsCatalogue.Add(v.Info(), v.Value)
		}

		mask.Set(i)
		rows = append(rows, []uint32{cat})
	}

	if len(rows) > 0 {
		b.stackMap[codeinfo.StackMapVRegMaskIndex] = b.vregMasks.Add(mask)
		b.stackMap[codeinfo.StackMapVRegMapIndex] = b.vregMaps.AddArray(rows)
	}
}

// AddImplicitNullCheck maps a faulting instruction to a handler offset.
// Instruction pcs must be added in non-decreasing order.
func (b *Builder) AddImplicitNullCheck(instructionNativePc, offset uint32) {
	b.check(b.state == stateMethod, "builder: AddImplicitNullCheck while %s", b.state)
	b.check(b.nullChecks.Len() == 0 || instructionNativePc >= b.lastNullCheckPc,
		"builder: null check pc 0x%x is less than previous null check's 0x%x", instructionNativePc, b.lastNullCheckPc)

	b.nullChecks.Add(instructionNativePc, offset)
	b.lastNullCheckPc = instructionNativePc
}

// NumStackMaps added so far.
func (b *Builder) NumStackMaps() int {
	if b.stackMaps == nil {
		return 0
	}
	return b.stackMaps.Len()
}

func (b *Builder) encoders() [codeinfo.NumTables]bittable.Encoder {
	return [codeinfo.NumTables]bittable.Encoder{
		codeinfo.TableStackMaps:          b.stackMaps,
		codeinfo.TableInlineInfos:        b.inlineInfos,
		codeinfo.TableRootsRegMasks:      b.rootsRegMasks,
		codeinfo.TableRootsStackMasks:    b.rootsStackMasks,
		codeinfo.TableMethodIDs:          b.methodIDs,
		codeinfo.TableVRegMasks:          b.vregMasks,
		codeinfo.TableVRegMaps:           b.vregMaps,
		codeinfo.TableVRegsCatalogue:     b.vregsCatalogue,
		codeinfo.TableImplicitNullChecks: b.nullChecks,
		codeinfo.TableConstants:          b.constants,
	}
}

// Encode the method's CodeInfo at the end of buf.  The buffer is extended to
// a multiple of codeinfo.SizeAlignment bytes relative to its initial length.
// The returned size includes the padding.  Buffer size limit is reported as
// an error.
func (b *Builder) Encode(buf buffer.Buffer) (size int, err error) {
	b.expect(stateMethodClosed, "Encode")

	defer func() { err = pan.Error(recover()) }()

	tables := b.encoders()

	header := b.header
	header.TableMask = 0
	for id, t := range tables {
		if t.Len() > 0 {
			header.TableMask |= 1 << uint(id)
		}
	}

	w := bitstream.NewWriter(buf)
	header.Encode(w)
	for _, t := range tables {
		if t.Len() > 0 {
			t.Encode(w)
		}
	}

	size = (w.ByteLen() + codeinfo.SizeAlignment - 1) &^ (codeinfo.SizeAlignment - 1)
	if pad := w.Offset() + size - buf.Len(); pad > 0 {
		buf.Extend(pad)
	}

	if debug.Enabled {
		debug.Printf("builder: encoded %d bytes, table mask 0x%x", size, header.TableMask)
	}
	return
}

// Bytes is a convenience wrapper around Encode.
func (b *Builder) Bytes() []byte {
	buf := buffer.NewDynamic(nil)
	if _, err := b.Encode(buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
