// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llvm

import (
	"bufio"
	"fmt"
	"io"
)

// Dump a field-by-field text representation.
func (sm *StackMap) Dump(w io.Writer) error {
	b := bufio.NewWriter(w)

	fmt.Fprintf(b, "Header {\n  Version: %d\n}\n", sm.Version)
	fmt.Fprintf(b, "NumFunctions: %d\nNumConstants: %d\nNumRecords: %d\n", len(sm.Functions), len(sm.Constants), len(sm.Records))

	for i, f := range sm.Functions {
		fmt.Fprintf(b, "Function[%d] {\n  Address: 0x%x\n", i, f.Address)
		if f.HasDynamicStackSize() {
			fmt.Fprintf(b, "  StackSize: dynamic\n")
		} else {
			fmt.Fprintf(b, "  StackSize: 0x%x\n", f.StackSize)
		}
		fmt.Fprintf(b, "  RecordCount: %d\n}\n", f.RecordCount)
	}

	for i, c := range sm.Constants {
		fmt.Fprintf(b, "Constant[%d]: 0x%x\n", i, c)
	}

	for i, r := range sm.Records {
		fmt.Fprintf(b, "Record[%d] {\n  PatchPointID: 0x%x\n  InstructionOffset: 0x%x\n  Flags: 0x%x\n  NumLocations: %d\n", i, r.ID, r.InstructionOffset, r.Flags, len(r.Locations))
		for j, l := range r.Locations {
			fmt.Fprintf(b, "  Location[%d] { Kind: %s, Size: %d, DwarfRegNum: %d, OffsetOrConstant: %d }\n", j, l.Kind, l.Size, l.DwarfReg, l.Offset)
		}
		fmt.Fprintf(b, "  NumLiveOuts: %d\n", len(r.LiveOuts))
		for j, o := range r.LiveOuts {
			fmt.Fprintf(b, "  LiveOut[%d] { DwarfRegNum: %d, Size: %d }\n", j, o.DwarfReg, o.Size)
		}
		fmt.Fprintf(b, "}\n")
	}

	return b.Flush()
}

// Dump a field-by-field text representation.
func (fm *FaultMap) Dump(w io.Writer) error {
	b := bufio.NewWriter(w)

	fmt.Fprintf(b, "FaultMap {\n  Version: %d\n  NumFunctions: %d\n}\n", fm.Version, len(fm.Functions))
	for i, f := range fm.Functions {
		fmt.Fprintf(b, "FunctionInfo[%d] {\n  Address: 0x%x\n  NumFaultingPCs: %d\n", i, f.Address, len(f.FaultingPCs))
		for j, pc := range f.FaultingPCs {
			fmt.Fprintf(b, "  FaultingPC[%d] { Kind: %s, FaultingPCOffset: 0x%x, HandlerPCOffset: 0x%x }\n", j, pc.Kind, pc.FaultingPCOffset, pc.HandlerPCOffset)
		}
		fmt.Fprintf(b, "}\n")
	}

	return b.Flush()
}
