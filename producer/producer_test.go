// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/safepoint/codeinfo"
	"github.com/safepoint/codeinfo/builder"
	"github.com/safepoint/codeinfo/config"
	"github.com/safepoint/codeinfo/errors"
	"github.com/safepoint/codeinfo/internal/test/llvmblob"
	"github.com/safepoint/codeinfo/llvm"
	"github.com/safepoint/codeinfo/target"
	"github.com/stretchr/testify/require"
)

// DWARF register numbers.
const (
	amd64RBX = 3
	amd64RBP = 6
	amd64RSP = 7
	amd64R12 = 12
	amd64RA  = 16

	arm64SP = 31
	arm64FP = 29
)

const (
	typeObject  = uint8(codeinfo.TypeObject)
	typeInt32   = uint8(codeinfo.TypeInt32)
	typeInt64   = uint8(codeinfo.TypeInt64)
	typeFloat64 = uint8(codeinfo.TypeFloat64)
	typeAny     = uint8(codeinfo.TypeAny)
	typeAcc     = uint8(codeinfo.VRegTypeAcc) << 4
	typeF64Acc  = typeFloat64 | typeAcc
)

func testConfig() config.Config {
	c := config.Default()
	c.Strict = true
	return c
}

func newProducer(t *testing.T, arch target.Arch, sm *llvmblob.StackMap, fm *llvmblob.FaultMap, unit *Unit) *Producer {
	t.Helper()

	abi, err := target.ForArch(arch)
	require.NoError(t, err)

	var faultMapData []byte
	if fm != nil {
		faultMapData = fm.Bytes()
	}

	p, err := New(abi, sm.Bytes(), faultMapData, unit, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	return p
}

func produce(t *testing.T, p *Producer, id MethodID) *codeinfo.CodeInfo {
	t.Helper()

	data, err := p.Produce(id)
	require.NoError(t, err)

	ci, err := codeinfo.Load(data, p.abi.Arch())
	require.NoError(t, err)
	return ci
}

func singleFunctionUnit(vregsCount uint32, codeOffset uint32) *Unit {
	u := new(Unit)
	id := u.AddMethod(Method{Name: "test", VRegsCount: vregsCount})
	u.SetFunctionSymbol(id, FunctionSymbol{FuncIndex: 0, CodeOffset: codeOffset})
	return u
}

func TestEndToEnd(t *testing.T) {
	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{{
			Address:   0x400,
			StackSize: 96,
			Records: []llvm.Record{
				{
					ID:                1,
					InstructionOffset: 0x10,
					Locations:         llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Indirect(amd64RSP, 16)}),
				},
				{
					ID:                2,
					InstructionOffset: 0x20,
					Locations:         llvmblob.Statepoint(nil, nil),
				},
			},
		}},
	}

	p := newProducer(t, target.AMD64, sm, nil, singleFunctionUnit(0, 0x400))
	ci := produce(t, p, 0)

	require.Equal(t, uint32(96), ci.FrameSize)
	require.Equal(t, 2, ci.NumStackMaps())

	a := ci.StackMap(0)
	require.Equal(t, uint32(1), a.BytecodePc())
	require.Equal(t, uint32(0x410), a.NativePc())
	require.Equal(t, 1, a.RootsStackMask().Count())
	require.True(t, a.RootsStackMask().Test(8))
	require.Zero(t, a.RootsRegMask())
	require.False(t, a.HasRegMap())

	b := ci.StackMap(1)
	require.Equal(t, uint32(2), b.BytecodePc())
	require.Equal(t, uint32(0x420), b.NativePc())
	require.True(t, b.RootsStackMask().Empty())
	require.Zero(t, b.RootsRegMask())

	require.False(t, ci.HasTable(codeinfo.TableImplicitNullChecks))
	require.Equal(t, target.Mask([]uint8{3, 12, 13, 14, 15}), ci.CalleeRegMask)
}

func TestRecordOrder(t *testing.T) {
	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{
			{StackSize: 16, Records: []llvm.Record{
				{ID: 9, InstructionOffset: 4, Locations: llvmblob.Statepoint(nil, nil)},
			}},
			{StackSize: 32, Records: []llvm.Record{
				{ID: 2, InstructionOffset: 0x30, Locations: llvmblob.Statepoint(nil, nil)},
				{ID: 1, InstructionOffset: 0x10, Locations: llvmblob.Statepoint(nil, nil)},
			}},
		},
	}

	u := new(Unit)
	first := u.AddMethod(Method{Name: "first"})
	second := u.AddMethod(Method{Name: "second"})
	u.SetFunctionSymbol(first, FunctionSymbol{FuncIndex: 0, CodeOffset: 0})
	u.SetFunctionSymbol(second, FunctionSymbol{FuncIndex: 1, CodeOffset: 0x100})

	p := newProducer(t, target.AMD64, sm, nil, u)

	ci := produce(t, p, second)
	require.Equal(t, uint32(32), ci.FrameSize)
	require.Equal(t, 2, ci.NumStackMaps())
	require.Equal(t, uint32(0x110), ci.StackMap(0).NativePc())
	require.Equal(t, uint32(1), ci.StackMap(0).BytecodePc())
	require.Equal(t, uint32(0x130), ci.StackMap(1).NativePc())

	ci = produce(t, p, first)
	require.Equal(t, 1, ci.NumStackMaps())
	require.Equal(t, uint32(9), ci.StackMap(0).BytecodePc())
}

func TestMethodWithoutSymbols(t *testing.T) {
	u := new(Unit)
	id := u.AddMethod(Method{Name: "native", VRegsCount: 2})

	p := newProducer(t, target.AMD64, &llvmblob.StackMap{}, nil, u)
	ci := produce(t, p, id)
	require.Equal(t, 0, ci.NumStackMaps())
	require.Equal(t, uint32(2), ci.VRegsCount)
}

func TestInlineRegMap(t *testing.T) {
	deopt := llvmblob.Deopt(
		llvmblob.Frame{
			MethodID:    5,
			BytecodePc:  0x20,
			NeedsRegMap: true,
			VRegsCount:  4,
			VRegs: []llvmblob.VReg{
				{Index: 2, Type: typeObject, Value: llvmblob.Reg(amd64RBX)},
				{Index: 0, Type: typeInt32, Value: llvmblob.Indirect(amd64RBP, -72)},
				{Index: 3, Type: typeObject, Value: llvmblob.Indirect(amd64RBP, -32)},
			},
		},
		llvmblob.Frame{
			MethodID:   42,
			BytecodePc: 7,
			VRegsCount: 2,
			VRegs: []llvmblob.VReg{
				{Index: 1, Type: typeF64Acc, Value: llvmblob.ConstIndex(0)},
				{Index: 0, Type: typeInt64, Value: llvmblob.Const(-1)},
			},
		},
	)

	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{{
			StackSize: 96,
			Records: []llvm.Record{{
				ID:                100,
				InstructionOffset: 0x8,
				Locations: llvmblob.Statepoint(deopt, []llvm.Location{
					llvmblob.Reg(amd64R12),
					llvmblob.Indirect(amd64RBP, -24),
					llvmblob.Const(0),
				}),
			}},
		}},
		Constants: []uint64{0x400921fb54442d18},
	}

	p := newProducer(t, target.AMD64, sm, nil, singleFunctionUnit(4, 0))
	ci := produce(t, p, 0)

	s := ci.StackMap(0)
	require.Equal(t, uint32(0x20), s.BytecodePc())
	require.True(t, s.HasRegMap())
	require.Equal(t, uint32(1<<12|1<<3), s.RootsRegMask())
	require.Nil(t, s.RootsStackMask())

	infos := s.InlineInfos()
	require.Len(t, infos, 1)
	require.Equal(t, uint32(42), infos[0].MethodID)
	require.Equal(t, uint32(7), infos[0].BytecodePc)
	require.Equal(t, uint32(6), infos[0].VRegsCount)
	require.True(t, infos[0].IsLast)

	require.Equal(t, []codeinfo.VRegInfo{
		{Value: 8, Location: codeinfo.LocationSlot, Type: codeinfo.TypeInt32},
		{},
		{Value: 3, Location: codeinfo.LocationRegister, Type: codeinfo.TypeObject},
		{Value: 12, Location: codeinfo.LocationRegister, Type: codeinfo.TypeObject},
	}, s.FrameVRegs(0))

	inner := s.FrameVRegs(1)
	require.Len(t, inner, 2)
	require.Equal(t, codeinfo.TypeInt64, inner[0].Type)
	require.Equal(t, uint64(0xffffffffffffffff), ci.ConstantValue(inner[0]))
	require.Equal(t, codeinfo.TypeFloat64, inner[1].Type)
	require.True(t, inner[1].IsAccumulator())
	require.Equal(t, uint64(0x400921fb54442d18), ci.ConstantValue(inner[1]))
}

func TestDeoptWithoutRegMap(t *testing.T) {
	deopt := llvmblob.Deopt(
		llvmblob.Frame{MethodID: 1, BytecodePc: 0x33, VRegsCount: 1, VRegs: []llvmblob.VReg{
			{Index: 0, Type: typeInt32, Value: llvmblob.Const(5)},
		}},
		llvmblob.Frame{MethodID: 2, BytecodePc: 4},
		llvmblob.Frame{MethodID: 3, BytecodePc: 5},
	)

	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{{
			StackSize: 16,
			Records: []llvm.Record{{
				Locations: llvmblob.Statepoint(deopt, nil),
			}},
		}},
	}

	p := newProducer(t, target.AMD64, sm, nil, singleFunctionUnit(1, 0))
	ci := produce(t, p, 0)

	s := ci.StackMap(0)
	require.Equal(t, uint32(0x33), s.BytecodePc())
	require.False(t, s.HasRegMap())
	require.Nil(t, s.VRegs())

	infos := s.InlineInfos()
	require.Len(t, infos, 2)
	require.Equal(t, uint32(2), infos[0].MethodID)
	require.False(t, infos[0].IsLast)
	require.Equal(t, uint32(3), infos[1].MethodID)
	require.True(t, infos[1].IsLast)
}

func TestARM64(t *testing.T) {
	deopt := llvmblob.Deopt(llvmblob.Frame{
		BytecodePc:  3,
		NeedsRegMap: true,
		VRegsCount:  3,
		VRegs: []llvmblob.VReg{
			{Index: 0, Type: typeObject, Value: llvmblob.Indirect(arm64FP, -104)},
			{Index: 1, Type: typeInt32, Value: llvmblob.Indirect(arm64SP, 0)},
			{Index: 2, Type: typeInt64, Value: llvmblob.Reg(65)},
		},
	})

	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{{
			StackSize: 256,
			Records: []llvm.Record{{
				InstructionOffset: 0x40,
				Locations: llvmblob.Statepoint(deopt, []llvm.Location{
					llvmblob.Indirect(arm64FP, -24),
					llvmblob.Indirect(arm64SP, 16),
				}),
			}},
		}},
	}

	p := newProducer(t, target.ARM64, sm, nil, singleFunctionUnit(3, 0x1000))
	ci := produce(t, p, 0)

	require.True(t, ci.HasFloatRegs)
	require.NotZero(t, ci.CalleeFPRegMask)

	s := ci.StackMap(0)
	require.Equal(t, uint32(0x1040), s.NativePc())
	require.Equal(t, uint32(1<<19), s.RootsRegMask())
	require.Equal(t, 1, s.RootsStackMask().Count())
	require.True(t, s.RootsStackMask().Test(27))
	require.Equal(t, []codeinfo.VRegInfo{
		{Value: 8, Location: codeinfo.LocationFPRegister, Type: codeinfo.TypeObject},
		{Value: 29, Location: codeinfo.LocationSlot, Type: codeinfo.TypeInt32},
		{Value: 1, Location: codeinfo.LocationFPRegister, Type: codeinfo.TypeInt64},
	}, s.VRegs())
}

func TestNullChecks(t *testing.T) {
	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{{StackSize: 16}},
	}
	fm := &llvmblob.FaultMap{
		Functions: []llvm.FaultFunction{
			{Address: 0x999},
			{Address: 0x400, FaultingPCs: []llvm.FaultingPC{
				{Kind: llvm.FaultingLoad, FaultingPCOffset: 0x30, HandlerPCOffset: 0x80},
				{Kind: llvm.FaultingLoad, FaultingPCOffset: 0x18, HandlerPCOffset: 0x90},
			}},
		},
	}

	u := singleFunctionUnit(0, 0x400)
	u.SetFaultMapSymbol(0, 1)

	p := newProducer(t, target.AMD64, sm, fm, u)
	ci := produce(t, p, 0)

	require.True(t, ci.HasTable(codeinfo.TableImplicitNullChecks))
	require.Equal(t, []codeinfo.ImplicitNullCheck{
		{InstructionNativePc: 0x418, Offset: 0x490 | FaultMapHandlerFlag},
		{InstructionNativePc: 0x430, Offset: 0x480 | FaultMapHandlerFlag},
	}, ci.ImplicitNullChecks())
}

func TestNullChecksIndexOutOfRange(t *testing.T) {
	u := singleFunctionUnit(0, 0)
	u.SetFaultMapSymbol(0, 3)

	p := newProducer(t, target.AMD64, &llvmblob.StackMap{Functions: []llvmblob.Function{{}}}, &llvmblob.FaultMap{}, u)
	_, err := p.Produce(0)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}

func TestErrors(t *testing.T) {
	type checker func(error) bool

	isFormat := func(err error) bool {
		_, ok := errors.AsFormatError(err)
		return ok
	}
	isUnsupported := func(err error) bool {
		_, ok := errors.AsUnsupportedError(err)
		return ok
	}

	frame := func(vregs ...llvmblob.VReg) []llvm.Location {
		return llvmblob.Deopt(llvmblob.Frame{NeedsRegMap: true, VRegsCount: 2, VRegs: vregs})
	}

	for name, c := range map[string]struct {
		stackSize uint64
		locations []llvm.Location
		check     checker
	}{
		"UnsupportedRootRegister": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Reg(amd64RA)}),
			check:     isUnsupported,
		},
		"UnsupportedBaseRegister": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Indirect(0, -8)}),
			check:     isUnsupported,
		},
		"DirectRoot": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Direct(amd64RSP, 8)}),
			check:     isUnsupported,
		},
		"ConstantRoot": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Const(1)}),
			check:     isUnsupported,
		},
		"MisalignedSlot": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Indirect(amd64RBP, -12)}),
			check:     isFormat,
		},
		"SlotAboveFramePointer": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Indirect(amd64RBP, 8)}),
			check:     isFormat,
		},
		"DynamicStackSize": {
			stackSize: llvm.DynamicStackSize,
			locations: llvmblob.Statepoint(nil, nil),
			check:     isFormat,
		},
		"VRegsCountMismatch": {
			locations: llvmblob.Statepoint(llvmblob.Deopt(llvmblob.Frame{VRegsCount: 3}), nil),
			check:     isFormat,
		},
		"ZeroInlineDepth": {
			locations: llvmblob.Statepoint([]llvm.Location{llvmblob.Const(0)}, nil),
			check:     isFormat,
		},
		"DuplicateVRegIndex": {
			locations: llvmblob.Statepoint(frame(
				llvmblob.VReg{Index: 1, Value: llvmblob.Reg(amd64RBX)},
				llvmblob.VReg{Index: 1, Value: llvmblob.Reg(amd64RBX)},
			), nil),
			check: isFormat,
		},
		"VRegIndexOutOfRange": {
			locations: llvmblob.Statepoint(frame(llvmblob.VReg{Index: 2, Value: llvmblob.Reg(amd64RBX)}), nil),
			check:     isFormat,
		},
		"DirectVReg": {
			locations: llvmblob.Statepoint(frame(llvmblob.VReg{Index: 0, Value: llvmblob.Direct(amd64RBP, -8)}), nil),
			check:     isUnsupported,
		},
		"InvalidVRegType": {
			locations: llvmblob.Statepoint(frame(llvmblob.VReg{Index: 0, Type: 0xf, Value: llvmblob.Reg(amd64RBX)}), nil),
			check:     isFormat,
		},
		"ConstantIndexOutOfRange": {
			locations: llvmblob.Statepoint(frame(llvmblob.VReg{Index: 0, Value: llvmblob.ConstIndex(0)}), nil),
			check:     isFormat,
		},
		"ReferenceInFPRegister": {
			locations: llvmblob.Statepoint(nil, []llvm.Location{llvmblob.Reg(17)}),
			check:     isFormat,
		},
	} {
		t.Run(name, func(t *testing.T) {
			stackSize := c.stackSize
			if stackSize == 0 {
				stackSize = 64
			}

			sm := &llvmblob.StackMap{
				Functions: []llvmblob.Function{{
					StackSize: stackSize,
					Records:   []llvm.Record{{Locations: c.locations}},
				}},
			}

			p := newProducer(t, target.AMD64, sm, nil, singleFunctionUnit(2, 0))
			data, err := p.Produce(0)
			require.Nil(t, data)
			require.Error(t, err)
			require.True(t, c.check(err), "%v", err)
		})
	}
}

func TestMethodIDOutOfRange(t *testing.T) {
	p := newProducer(t, target.AMD64, &llvmblob.StackMap{}, nil, new(Unit))
	_, err := p.Produce(1)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}

func TestBuildSingleRegMap(t *testing.T) {
	p := newProducer(t, target.AMD64, &llvmblob.StackMap{}, nil, new(Unit))

	b := builder.New(target.AMD64, config.Config{Strict: true})
	b.BeginMethod(64, 2)
	b.BeginStackMap(0, 0, safePoint{}, true)

	err := p.BuildSingleRegMap(b, []llvm.Location{llvmblob.Const(0), llvmblob.Const(0)}, 2, 64)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)

	require.NoError(t, p.BuildSingleRegMap(b, []llvm.Location{
		llvmblob.Const(1), llvmblob.Const(int32(typeInt32)), llvmblob.Const(-2),
	}, 2, 64))
	b.EndStackMap()
	b.EndMethod()

	ci, err := codeinfo.Load(b.Bytes(), target.AMD64)
	require.NoError(t, err)

	vregs := ci.StackMap(0).VRegs()
	require.False(t, vregs[0].IsLive())
	require.Equal(t, uint64(0xfffffffe), ci.ConstantValue(vregs[1]))
}

func TestSmallConstantWidth(t *testing.T) {
	p := newProducer(t, target.AMD64, &llvmblob.StackMap{}, nil, new(Unit))

	b := builder.New(target.AMD64, config.Config{Strict: true})
	b.BeginMethod(64, 4)
	b.BeginStackMap(0, 0, safePoint{}, true)

	require.NoError(t, p.BuildSingleRegMap(b, []llvm.Location{
		llvmblob.Const(0), llvmblob.Const(int32(typeFloat64)), llvmblob.Const(-1),
		llvmblob.Const(1), llvmblob.Const(int32(typeInt64)), llvmblob.Const(-3),
		llvmblob.Const(2), llvmblob.Const(int32(typeAny)), llvmblob.Const(-4),
		llvmblob.Const(3), llvmblob.Const(int32(typeInt32)), llvmblob.Const(-1),
	}, 4, 64))
	b.EndStackMap()
	b.EndMethod()

	ci, err := codeinfo.Load(b.Bytes(), target.AMD64)
	require.NoError(t, err)

	vregs := ci.StackMap(0).VRegs()
	require.Equal(t, codeinfo.TypeFloat64, vregs[0].Type)
	require.Equal(t, uint64(0xffffffffffffffff), ci.ConstantValue(vregs[0]))
	require.Equal(t, uint64(0xfffffffffffffffd), ci.ConstantValue(vregs[1]))
	require.Equal(t, uint64(0xfffffffffffffffc), ci.ConstantValue(vregs[2]))
	require.Equal(t, uint64(0xffffffff), ci.ConstantValue(vregs[3]))
}

func TestBuildRegMapNoDeopt(t *testing.T) {
	p := newProducer(t, target.AMD64, &llvmblob.StackMap{}, nil, new(Unit))

	b := builder.New(target.AMD64, config.Default())
	b.BeginMethod(64, 0)
	b.BeginStackMap(0, 0, safePoint{}, false)
	require.NoError(t, p.BuildRegMap(b, nil, 64, 0))
	b.EndStackMap()
}

func TestDumpStackMaps(t *testing.T) {
	sm := &llvmblob.StackMap{
		Functions: []llvmblob.Function{{
			StackSize: 16,
			Records: []llvm.Record{
				{ID: 1, Locations: llvmblob.Statepoint(nil, nil)},
				{ID: 2, InstructionOffset: 4, Locations: llvmblob.Statepoint(nil, nil)},
			},
		}},
	}

	abi, err := target.ForArch(target.AMD64)
	require.NoError(t, err)

	c := testConfig()
	c.DumpStackMaps = true
	c.DumpPath = filepath.Join(t.TempDir(), config.DefaultDumpPath)

	_, err = New(abi, sm.Bytes(), nil, new(Unit), c, zerolog.Nop())
	require.NoError(t, err)

	data, err := os.ReadFile(c.DumpPath)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "NumRecords: 2\n"))

	c.DumpPath = filepath.Join(t.TempDir(), "missing", "dir", "dump.txt")
	_, err = New(abi, sm.Bytes(), nil, new(Unit), c, zerolog.Nop())
	require.Error(t, err)
}

func TestNewMalformed(t *testing.T) {
	abi, err := target.ForArch(target.AMD64)
	require.NoError(t, err)

	_, err = New(abi, []byte{3, 0}, nil, new(Unit), testConfig(), zerolog.Nop())
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)

	_, err = New(abi, (&llvmblob.StackMap{}).Bytes(), []byte{9}, new(Unit), testConfig(), zerolog.Nop())
	_, ok = errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}
