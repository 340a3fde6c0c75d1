// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/safepoint/codeinfo"
	"github.com/safepoint/codeinfo/bitstream"
	"github.com/safepoint/codeinfo/bittable"
	"github.com/safepoint/codeinfo/buffer"
	"github.com/safepoint/codeinfo/builder"
	"github.com/safepoint/codeinfo/config"
	"github.com/safepoint/codeinfo/errors"
	"github.com/safepoint/codeinfo/target"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

type safePoint struct {
	regs  uint32
	stack bittable.Bitmap
}

func (sp safePoint) RootsRegMask() uint32            { return sp.regs }
func (sp safePoint) RootsStackMask() bittable.Bitmap { return sp.stack }
func (sp safePoint) IsOsr() bool                     { return false }

func sample(t testing.TB) []byte {
	t.Helper()

	var stack bittable.Bitmap
	stack.Set(4)

	b := builder.New(target.AMD64, config.Config{Strict: true})
	b.BeginMethod(64, 2)
	b.SetSavedCalleeRegsMask(1<<3|1<<12, 0)

	b.BeginStackMap(3, 0x40, safePoint{regs: 1 << 3, stack: stack}, true)
	b.AddVReg(codeinfo.VRegInfo{Value: 6, Location: codeinfo.LocationSlot, Type: codeinfo.TypeObject})
	b.BeginInlineInfo(0, 9, 14, 1)
	b.AddConstant(-5&0xffffffffffffffff, codeinfo.TypeInt64, codeinfo.VRegTypeVReg)
	b.AddVReg(codeinfo.VRegInfo{Value: 2, Location: codeinfo.LocationRegister, Type: codeinfo.TypeInt32, VRegType: codeinfo.VRegTypeAcc})
	b.EndInlineInfo()
	b.EndStackMap()

	b.BeginStackMap(5, 0x58, safePoint{}, false)
	b.EndStackMap()

	b.AddImplicitNullCheck(0x60, 0x80000070)
	b.EndMethod()

	return b.Bytes()
}

func TestLoad(t *testing.T) {
	data := sample(t)

	ci, err := codeinfo.Load(append(data, 0xff, 0xff, 0xff, 0xff), target.AMD64)
	require.NoError(t, err)
	require.Equal(t, len(data), ci.Size())
	require.Equal(t, data, ci.Data())

	require.Equal(t, uint32(64), ci.FrameSize)
	require.Equal(t, uint32(2), ci.VRegsCount)
	require.Equal(t, uint32(1<<3|1<<12), ci.CalleeRegMask)
	require.False(t, ci.HasFloatRegs)
	require.Equal(t, 2, ci.NumStackMaps())

	sm := ci.StackMap(0)
	require.Equal(t, 3, sm.VRegsCount())
	vregs := sm.VRegs()
	require.Len(t, vregs, 3)
	require.Equal(t, codeinfo.LocationConstant, vregs[1].Location)
	require.Equal(t, uint64(0xfffffffffffffffb), ci.ConstantValue(vregs[1]))
	require.True(t, vregs[2].IsAccumulator())
}

func TestLoadTruncated(t *testing.T) {
	data := sample(t)

	for n := 0; n < len(data)-codeinfo.SizeAlignment; n++ {
		_, err := codeinfo.Load(data[:n], target.AMD64)
		require.Error(t, err, "length %d", n)

		_, ok := errors.AsFormatError(err)
		require.True(t, ok, "length %d: %v", n, err)
	}

	_, err := codeinfo.Load(nil, target.AMD64)
	require.True(t, xerrors.Is(err, io.ErrUnexpectedEOF), "%v", err)
}

func TestLoadUnsupportedArch(t *testing.T) {
	_, err := codeinfo.Load(sample(t), target.ArchNone)
	_, ok := errors.AsUnsupportedError(err)
	require.True(t, ok, "%v", err)
}

func encodeRaw(f func(w *bitstream.Writer)) []byte {
	buf := buffer.NewDynamic(nil)
	f(bitstream.NewWriter(buf))
	buf.Extend(codeinfo.SizeAlignment)
	return buf.Bytes()
}

func TestLoadUnknownTable(t *testing.T) {
	data := encodeRaw(func(w *bitstream.Writer) {
		h := codeinfo.Header{TableMask: 1 << codeinfo.NumTables}
		h.Encode(w)
	})

	_, err := codeinfo.Load(data, target.AMD64)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}

func TestLoadColumnTooWide(t *testing.T) {
	data := encodeRaw(func(w *bitstream.Writer) {
		h := codeinfo.Header{TableMask: 1 << codeinfo.TableConstants}
		h.Encode(w)
		w.WriteVarint(1)  // Rows.
		w.WriteVarint(33) // Width.
	})

	_, err := codeinfo.Load(data, target.AMD64)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}

func TestLoadDanglingIndex(t *testing.T) {
	stackMaps := bittable.NewBuilder(codeinfo.Schema(codeinfo.TableStackMaps), false)
	row := make([]uint32, codeinfo.Schema(codeinfo.TableStackMaps).NumColumns())
	for i := range row {
		row[i] = bittable.NoValue
	}
	row[codeinfo.StackMapNativePc] = 0
	row[codeinfo.StackMapBytecodePc] = 0
	row[codeinfo.StackMapRootsRegMaskIndex] = 5
	stackMaps.Add(row...)

	data := encodeRaw(func(w *bitstream.Writer) {
		h := codeinfo.Header{TableMask: 1 << codeinfo.TableStackMaps}
		h.Encode(w)
		stackMaps.Encode(w)
	})

	_, err := codeinfo.Load(data, target.AMD64)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}

func TestLoadPresentButEmpty(t *testing.T) {
	data := encodeRaw(func(w *bitstream.Writer) {
		h := codeinfo.Header{TableMask: 1 << codeinfo.TableConstants}
		h.Encode(w)
		w.WriteVarint(0)
	})

	_, err := codeinfo.Load(data, target.AMD64)
	_, ok := errors.AsFormatError(err)
	require.True(t, ok, "%v", err)
}

func TestVRegInfoPacking(t *testing.T) {
	for _, v := range []codeinfo.VRegInfo{
		{},
		{Value: 0xffffff, Location: codeinfo.LocationSlot, Type: codeinfo.TypeAny, VRegType: codeinfo.VRegTypeEnv},
		{Value: 31, Location: codeinfo.LocationFPRegister, Type: codeinfo.TypeFloat32},
		codeinfo.ConstantVReg(0xffff, 0x1234, codeinfo.TypeFloat64, codeinfo.VRegTypeAcc),
	} {
		require.Equal(t, v, codeinfo.UnpackVRegInfo(v.Info(), v.Value))
	}

	low, high := codeinfo.ConstantVReg(0xffff, 0x1234, codeinfo.TypeInt64, 0).ConstantIndices()
	require.Equal(t, uint32(0xffff), low)
	require.Equal(t, uint32(0x1234), high)

	require.True(t, codeinfo.TypeInt64.Is64())
	require.False(t, codeinfo.TypeUint32.Is64())
	require.Equal(t, "-", codeinfo.VRegInfo{}.String())
	require.Equal(t, "object:slot6 vreg", codeinfo.VRegInfo{Value: 6, Location: codeinfo.LocationSlot, Type: codeinfo.TypeObject}.String())
}

func TestDump(t *testing.T) {
	ci, err := codeinfo.Load(sample(t), target.AMD64)
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, ci.Dump(&b))
	s := b.String()

	for _, substr := range []string{
		"frame-size=64",
		"StackMap[0]: native-pc=0x40 bytecode-pc=0x3 roots-regs=0x8 roots-stack={4}",
		"InlineInfo[1]: bytecode-pc=0xe method-id=9 vregs=3",
		"v0=object:slot6 vreg",
		"(0xfffffffffffffffb)",
		"StackMap[1]: native-pc=0x58 bytecode-pc=0x5\n",
		"ImplicitNullCheck[0]: native-pc=0x60 offset=0x80000070",
	} {
		require.Contains(t, s, substr)
	}
}

func FuzzLoad(f *testing.F) {
	data := sample(f)
	f.Add(data)
	f.Add(data[:len(data)/2])
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, arch := range []target.Arch{target.AMD64, target.ARM64} {
			ci, err := codeinfo.Load(data, arch)
			if err != nil {
				require.Nil(t, ci)
				continue
			}

			require.NoError(t, ci.Dump(io.Discard))
			for i := 0; i < ci.NumStackMaps(); i++ {
				sm := ci.StackMap(i)
				_, found := ci.FindStackMapForNativePc(sm.NativePc())
				require.True(t, found)
			}
		}
	})
}
