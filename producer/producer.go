// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package producer converts LLVM stack map and fault map sections into
// per-method CodeInfo.
package producer

import (
	"math"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/safepoint/codeinfo/buffer"
	"github.com/safepoint/codeinfo/builder"
	"github.com/safepoint/codeinfo/config"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/safepoint/codeinfo/llvm"
	"github.com/safepoint/codeinfo/target"
	"golang.org/x/xerrors"
)

// Producer of one compiled module's CodeInfo.  It is not safe for concurrent
// use.
type Producer struct {
	abi      target.ABI
	stackMap *llvm.StackMap
	faultMap *llvm.FaultMap
	unit     *Unit
	config   config.Config
	log      zerolog.Logger
}

// New parses the sections.  Fault map data may be empty.
func New(abi target.ABI, stackMapData, faultMapData []byte, unit *Unit, c config.Config, log zerolog.Logger) (*Producer, error) {
	sm, err := llvm.ParseStackMap(stackMapData)
	if err != nil {
		return nil, xerrors.Errorf("stack map section: %w", err)
	}

	fm, err := llvm.ParseFaultMap(faultMapData)
	if err != nil {
		return nil, xerrors.Errorf("fault map section: %w", err)
	}

	p := &Producer{
		abi:      abi,
		stackMap: sm,
		faultMap: fm,
		unit:     unit,
		config:   c,
		log:      log.With().Str("arch", abi.Arch().String()).Logger(),
	}

	p.log.Debug().
		Int("functions", len(sm.Functions)).
		Int("records", len(sm.Records)).
		Int("constants", len(sm.Constants)).
		Int("fault_functions", len(fm.Functions)).
		Msg("parsed sections")

	if c.DumpStackMaps {
		if err := p.dump(c.DumpPath); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Producer) dump(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("stack map dump: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = xerrors.Errorf("stack map dump: %w", closeErr)
		}
	}()

	if err := p.stackMap.Dump(f); err != nil {
		return xerrors.Errorf("stack map dump: %w", err)
	}

	p.log.Info().Str("path", path).Msg("stack maps dumped")
	return nil
}

// StackMap section.
func (p *Producer) StackMap() *llvm.StackMap {
	return p.stackMap
}

// Unit being produced.
func (p *Producer) Unit() *Unit {
	return p.unit
}

// Produce CodeInfo for a method.
func (p *Producer) Produce(id MethodID) (data []byte, err error) {
	defer func() { err = pan.Error(recover()) }()

	m := pan.Must(p.unit.Method(id))
	log := p.log.With().Uint32("method", uint32(id)).Str("name", m.Name).Logger()

	b := builder.New(p.abi.Arch(), p.config)

	var frameSize uint32
	if f := p.function(id); f != nil {
		frameSize = frameSizeOf(f)
	}

	b.BeginMethod(frameSize, m.VRegsCount)
	p.setCalleeRegs(b)
	p.convertStackMaps(id, b)
	p.encodeNullChecks(id, b)
	b.EndMethod()

	buf := buffer.NewDynamic(nil)
	size := pan.Must(b.Encode(buf))

	log.Debug().Int("stackmaps", b.NumStackMaps()).Int("size", size).Msg("produced")
	return buf.Bytes(), nil
}

func (p *Producer) setCalleeRegs(b *builder.Builder) {
	gp := p.abi.CalleeRegion(false)
	fp := p.abi.CalleeRegion(true)
	b.SetSavedCalleeRegsMask(target.Mask(gp.Regs), target.Mask(fp.Regs))
	b.SetHasFloatRegs(len(fp.Regs) > 0)
}

// function of a method, or nil if the method has no stack maps.
func (p *Producer) function(id MethodID) *llvm.Function {
	sym, found := p.unit.FunctionSymbols[id]
	if !found {
		return nil
	}
	if int64(sym.FuncIndex) >= int64(len(p.stackMap.Functions)) {
		pan.Panic(errors.FormatErrorf("method %d function index %d out of range", id, sym.FuncIndex))
	}
	return &p.stackMap.Functions[sym.FuncIndex]
}

func frameSizeOf(f *llvm.Function) uint32 {
	if f.HasDynamicStackSize() {
		pan.Panic(errors.FormatErrorf("function at 0x%x has dynamic stack size", f.Address))
	}
	if f.StackSize > math.MaxUint32 {
		pan.Panic(errors.FormatErrorf("function at 0x%x stack size %d is too large", f.Address, f.StackSize))
	}
	return uint32(f.StackSize)
}

// ConvertStackMaps of a method's statepoint records.
func (p *Producer) ConvertStackMaps(id MethodID, b *builder.Builder) (err error) {
	defer func() { err = pan.Error(recover()) }()

	p.convertStackMaps(id, b)
	return
}

func (p *Producer) convertStackMaps(id MethodID, b *builder.Builder) {
	f := p.function(id)
	if f == nil {
		p.log.Debug().Uint32("method", uint32(id)).Msg("no function symbol")
		return
	}

	m := pan.Must(p.unit.Method(id))
	sym := p.unit.FunctionSymbols[id]
	stackSize := uint64(frameSizeOf(f))

	records := p.stackMap.FunctionRecords(int(sym.FuncIndex))
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return records[order[i]].InstructionOffset < records[order[j]].InstructionOffset
	})

	for _, i := range order {
		r := &records[i]

		sp := pan.Must(llvm.ParseStatepoint(r))
		roots := p.collectRoots(sp.Roots, stackSize)
		nativePc := sym.CodeOffset + r.InstructionOffset

		if len(sp.Deopt) == 0 {
			b.BeginStackMap(uint32(r.ID), nativePc, roots, false)
			b.EndStackMap()
			continue
		}

		frames := parseDeopt(sp.Deopt)
		outer := frames[0]

		b.BeginStackMap(outer.bytecodePc, nativePc, roots, outer.needsRegMap)
		p.buildRegMap(b, sp.Deopt, frames, stackSize, m.VRegsCount, outer.needsRegMap)
		b.EndStackMap()
	}
}
