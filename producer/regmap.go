// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"github.com/safepoint/codeinfo"
	"github.com/safepoint/codeinfo/builder"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/safepoint/codeinfo/llvm"
	"github.com/safepoint/codeinfo/target"
)

// Deopt bundle layout.
const (
	deoptInlineDepth = 0
	deoptFrames      = 1

	frameMethodID   = 0
	framePcAndFlags = 1
	frameVRegsCount = 2
	frameVRegsStart = 3
	frameLen        = 4

	vregIndex = 0
	vregType  = 1
	vregValue = 2
	vregLen   = 3

	vregTypeMask  = 0xf
	vregKindShift = 4

	needsRegMapFlag = 1 << 31
)

type deoptFrame struct {
	methodID    uint32
	bytecodePc  uint32
	needsRegMap bool
	vregsCount  uint32
	vregsStart  int // Deopt bundle index.
}

func constant(l llvm.Location, what string) uint32 {
	if l.Kind != llvm.Constant {
		pan.Panic(errors.FormatErrorf("%s is a %s location", what, l.Kind))
	}
	return uint32(l.Offset)
}

// parseDeopt frames from outermost to innermost.
func parseDeopt(deopt []llvm.Location) []deoptFrame {
	depth := int(int32(constant(deopt[deoptInlineDepth], "inline depth")))
	if depth < 1 || deoptFrames+depth*frameLen > len(deopt) {
		pan.Panic(errors.FormatErrorf("inline depth %d is invalid for %d deopt locations", depth, len(deopt)))
	}

	frames := make([]deoptFrame, depth)
	prevStart := deoptFrames + depth*frameLen

	for i := range frames {
		base := deoptFrames + i*frameLen
		pc := constant(deopt[base+framePcAndFlags], "bytecode pc")

		f := deoptFrame{
			methodID:    constant(deopt[base+frameMethodID], "method id"),
			bytecodePc:  pc &^ needsRegMapFlag,
			needsRegMap: pc&needsRegMapFlag != 0,
			vregsCount:  constant(deopt[base+frameVRegsCount], "vreg count"),
			vregsStart:  int(int32(constant(deopt[base+frameVRegsStart], "vreg start"))),
		}

		if f.vregsStart < prevStart || f.vregsStart > len(deopt) {
			pan.Panic(errors.FormatErrorf("inline frame %d vreg start %d is out of order", i, f.vregsStart))
		}
		prevStart = f.vregsStart

		frames[i] = f
	}

	return frames
}

// BuildRegMap adds the inline infos and virtual registers described by a
// statepoint's deopt bundle to the open stack map.  stackSize is the
// function's frame size and vregsCount the method's virtual register count.
func (p *Producer) BuildRegMap(b *builder.Builder, deopt []llvm.Location, stackSize uint64, vregsCount uint32) (err error) {
	defer func() { err = pan.Error(recover()) }()

	if len(deopt) == 0 {
		return
	}
	frames := parseDeopt(deopt)
	p.buildRegMap(b, deopt, frames, stackSize, vregsCount, frames[0].needsRegMap)
	return
}

func (p *Producer) buildRegMap(b *builder.Builder, deopt []llvm.Location, frames []deoptFrame, stackSize uint64, vregsCount uint32, addVRegs bool) {
	if frames[0].vregsCount != vregsCount {
		pan.Panic(errors.FormatErrorf("outermost frame has %d vregs; method has %d", frames[0].vregsCount, vregsCount))
	}

	for i, f := range frames {
		if i > 0 {
			b.BeginInlineInfo(0, f.methodID, f.bytecodePc, f.vregsCount)
		}

		if addVRegs {
			end := len(deopt)
			if i+1 < len(frames) {
				end = frames[i+1].vregsStart
			}
			p.buildSingleRegMap(b, deopt[f.vregsStart:end], f.vregsCount, stackSize)
		}
	}

	for range frames[1:] {
		b.EndInlineInfo()
	}
}

// BuildSingleRegMap adds one frame's virtual registers to the open stack
// map in index order.  The records are {index, type, value} location triples
// in any order; missing indices are not live.
func (p *Producer) BuildSingleRegMap(b *builder.Builder, records []llvm.Location, vregsCount uint32, stackSize uint64) (err error) {
	defer func() { err = pan.Error(recover()) }()

	p.buildSingleRegMap(b, records, vregsCount, stackSize)
	return
}

type vregRecord struct {
	typ   uint32
	value llvm.Location
	set   bool
}

func (p *Producer) buildSingleRegMap(b *builder.Builder, records []llvm.Location, vregsCount uint32, stackSize uint64) {
	if len(records)%vregLen != 0 {
		pan.Panic(errors.FormatErrorf("vreg records span %d locations", len(records)))
	}

	vregs := make([]vregRecord, vregsCount)

	for i := 0; i < len(records); i += vregLen {
		index := constant(records[i+vregIndex], "vreg index")
		if index >= vregsCount {
			pan.Panic(errors.FormatErrorf("vreg index %d out of range %d", index, vregsCount))
		}
		if vregs[index].set {
			pan.Panic(errors.FormatErrorf("vreg index %d is duplicated", index))
		}

		vregs[index] = vregRecord{
			typ:   constant(records[i+vregType], "vreg type"),
			value: records[i+vregValue],
			set:   true,
		}
	}

	for _, v := range vregs {
		if !v.set {
			b.AddVReg(codeinfo.VRegInfo{})
			continue
		}
		p.addVReg(b, v, stackSize)
	}
}

func (p *Producer) addVReg(b *builder.Builder, v vregRecord, stackSize uint64) {
	t := codeinfo.Type(v.typ & vregTypeMask)
	kind := codeinfo.VRegType(v.typ >> vregKindShift)
	if t > codeinfo.TypeAny || kind > codeinfo.VRegTypeEnv {
		pan.Panic(errors.FormatErrorf("invalid vreg type: 0x%x", v.typ))
	}

	info := codeinfo.VRegInfo{Type: t, VRegType: kind}

	switch l := v.value; l.Kind {
	case llvm.Register:
		r, ok := p.abi.RenumberRegister(l.DwarfReg)
		if !ok {
			pan.Panic(errors.UnsupportedErrorf("%s: unsupported register %d", p.abi.Arch(), l.DwarfReg))
		}
		info.Value, info.Location = registerLocation(r)

	case llvm.Indirect:
		slot := pan.Must(target.FrameSlot(p.abi, l.DwarfReg, l.Offset, stackSize))
		if r, ok := target.ClassifySlot(p.abi, slot); ok {
			info.Value, info.Location = registerLocation(r)
		} else {
			info.Value, info.Location = uint32(slot), codeinfo.LocationSlot
		}

	case llvm.Constant:
		value := uint64(uint32(l.Offset))
		if t.Is64() {
			value = uint64(l.SmallConstant())
		}
		b.AddConstant(value, t, kind)
		return

	case llvm.ConstantIndex:
		b.AddConstant(pan.Must(p.stackMap.Constant(l)), t, kind)
		return

	default:
		pan.Panic(errors.UnsupportedErrorf("unsupported vreg location kind: %s", l.Kind))
	}

	b.AddVReg(info)
}

func registerLocation(r target.Register) (uint32, codeinfo.Location) {
	if r.FP {
		return uint32(r.Num), codeinfo.LocationFPRegister
	}
	return uint32(r.Num), codeinfo.LocationRegister
}
