// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"github.com/safepoint/codeinfo/bittable"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/safepoint/codeinfo/llvm"
	"github.com/safepoint/codeinfo/target"
)

// safePoint implements builder.SafePoint.
type safePoint struct {
	regs  uint32
	stack bittable.Bitmap
}

func (sp safePoint) RootsRegMask() uint32            { return sp.regs }
func (sp safePoint) RootsStackMask() bittable.Bitmap { return sp.stack }
func (sp safePoint) IsOsr() bool                     { return false }

func (p *Producer) collectRoots(roots []llvm.Location, stackSize uint64) (sp safePoint) {
	for _, l := range roots {
		switch l.Kind {
		case llvm.Indirect:
			slot := pan.Must(target.FrameSlot(p.abi, l.DwarfReg, l.Offset, stackSize))
			if r, ok := target.ClassifySlot(p.abi, slot); ok {
				sp.regs |= referenceRegBit(r)
			} else {
				sp.stack.Set(slot)
			}

		case llvm.Register:
			r, ok := p.abi.RenumberRegister(l.DwarfReg)
			if !ok {
				pan.Panic(errors.UnsupportedErrorf("%s: unsupported register %d", p.abi.Arch(), l.DwarfReg))
			}
			sp.regs |= referenceRegBit(r)

		case llvm.Constant:
			// Null pointer in a deopt bundle.
			if l.Offset != 0 {
				pan.Panic(errors.UnsupportedErrorf("non-null constant root: %d", l.Offset))
			}

		default:
			pan.Panic(errors.UnsupportedErrorf("unsupported root location kind: %s", l.Kind))
		}
	}
	return
}

func referenceRegBit(r target.Register) uint32 {
	if r.FP {
		pan.Panic(errors.FormatErrorf("reference in floating-point register %s", r))
	}
	return 1 << r.Num
}
