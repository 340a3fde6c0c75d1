// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump a human-readable description.
func (ci *CodeInfo) Dump(w io.Writer) error {
	b := bufio.NewWriter(w)

	fmt.Fprintf(b, "CodeInfo: arch=%s size=%d frame-size=%d vregs=%d float-regs=%t\n", ci.Arch, ci.Size(), ci.FrameSize, ci.VRegsCount, ci.HasFloatRegs)
	fmt.Fprintf(b, "  callee-regs=0x%x callee-fp-regs=0x%x\n", ci.CalleeRegMask, ci.CalleeFPRegMask)

	var present []string
	for id := TableID(0); id < NumTables; id++ {
		if ci.HasTable(id) {
			t := ci.Table(id)
			present = append(present, fmt.Sprintf("%s(%d rows, %d bits)", id, t.Len(), t.BitSize()))
		}
	}
	fmt.Fprintf(b, "  tables: %s\n", strings.Join(present, " "))

	for i := 0; i < ci.NumStackMaps(); i++ {
		sm := ci.StackMap(i)

		fmt.Fprintf(b, "StackMap[%d]: native-pc=0x%x bytecode-pc=0x%x", i, sm.NativePc(), sm.BytecodePc())
		if sm.IsOsr() {
			fmt.Fprint(b, " osr")
		}
		if mask := sm.RootsRegMask(); mask != 0 {
			fmt.Fprintf(b, " roots-regs=0x%x", mask)
		}
		if mask := sm.RootsStackMask(); !mask.Empty() {
			fmt.Fprintf(b, " roots-stack=%s", mask)
		}
		fmt.Fprintln(b)

		for depth, info := range sm.InlineInfos() {
			fmt.Fprintf(b, "  InlineInfo[%d]: bytecode-pc=0x%x", depth+1, info.BytecodePc)
			if info.Method != 0 {
				fmt.Fprintf(b, " method=0x%x", info.Method)
			} else {
				fmt.Fprintf(b, " method-id=%d", info.MethodID)
			}
			fmt.Fprintf(b, " vregs=%d\n", info.VRegsCount)
		}

		for depth := 0; depth <= sm.InlineDepth() && sm.HasRegMap(); depth++ {
			vregs := sm.FrameVRegs(depth)
			if len(vregs) == 0 {
				continue
			}

			fmt.Fprintf(b, "  VRegs[%d]:", depth)
			for n, v := range vregs {
				if !v.IsLive() {
					continue
				}
				fmt.Fprintf(b, " v%d=%s", n, v)
				if v.Location == LocationConstant {
					fmt.Fprintf(b, "(0x%x)", ci.ConstantValue(v))
				}
			}
			fmt.Fprintln(b)
		}
	}

	for i, c := range ci.ImplicitNullChecks() {
		fmt.Fprintf(b, "ImplicitNullCheck[%d]: native-pc=0x%x offset=0x%x\n", i, c.InstructionNativePc, c.Offset)
	}

	return b.Flush()
}
