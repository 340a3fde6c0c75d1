// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llvm

import (
	"fmt"

	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/loader"
	"github.com/safepoint/codeinfo/internal/pan"
)

// FaultMapVersion is the supported .llvm_faultmaps format version.
const FaultMapVersion = 1

const (
	faultFunctionSize = 16
	faultingPCSize    = 12
)

type FaultKind uint32

const (
	FaultingLoad      FaultKind = 1
	FaultingLoadStore FaultKind = 2
	FaultingStore     FaultKind = 3
)

func (k FaultKind) String() string {
	switch k {
	case FaultingLoad:
		return "FaultingLoad"
	case FaultingLoadStore:
		return "FaultingLoadStore"
	case FaultingStore:
		return "FaultingStore"
	}
	return fmt.Sprintf("FaultKind(%d)", uint32(k))
}

type FaultingPC struct {
	Kind             FaultKind
	FaultingPCOffset uint32 // Relative to function address.
	HandlerPCOffset  uint32 // Relative to function address.
}

type FaultFunction struct {
	Address     uint64
	FaultingPCs []FaultingPC
}

// FaultMap is a parsed .llvm_faultmaps section.
type FaultMap struct {
	Version   uint8
	Functions []FaultFunction
}

// ParseFaultMap section contents.  Empty data yields an empty map.
func ParseFaultMap(data []byte) (fm *FaultMap, err error) {
	defer func() {
		if err != nil {
			fm = nil
		}
	}()
	defer func() { err = pan.Error(recover()) }()

	fm = &FaultMap{Version: FaultMapVersion}
	if len(data) == 0 {
		return
	}

	load := loader.New(data)

	fm.Version = load.Uint8()
	if fm.Version != FaultMapVersion {
		pan.Panic(errors.FormatErrorf("unsupported fault map version: %d", fm.Version))
	}
	load.Skip(1 + 2)

	fm.Functions = make([]FaultFunction, load.Count(uint64(load.Uint32()), faultFunctionSize, "fault map function"))
	for i := range fm.Functions {
		f := &fm.Functions[i]
		f.Address = load.Uint64()
		n := load.Uint32()
		load.Skip(4)

		f.FaultingPCs = make([]FaultingPC, load.Count(uint64(n), faultingPCSize, "faulting pc"))
		for j := range f.FaultingPCs {
			pc := &f.FaultingPCs[j]
			pc.Kind = FaultKind(load.Uint32())
			pc.FaultingPCOffset = load.Uint32()
			pc.HandlerPCOffset = load.Uint32()
		}
	}

	return
}

// Function at index i.
func (fm *FaultMap) Function(i int) (f *FaultFunction, err error) {
	if i < 0 || i >= len(fm.Functions) {
		err = errors.FormatErrorf("fault map function index %d out of range", i)
		return
	}
	f = &fm.Functions[i]
	return
}
