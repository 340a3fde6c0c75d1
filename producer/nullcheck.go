// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"sort"

	"github.com/safepoint/codeinfo/builder"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/safepoint/codeinfo/llvm"
)

// FaultMapHandlerFlag is set in the offsets of implicit null checks converted
// from a fault map.
const FaultMapHandlerFlag = 1 << 31

// EncodeNullChecks adds a method's faulting instructions as implicit null
// checks.
func (p *Producer) EncodeNullChecks(id MethodID, b *builder.Builder) (err error) {
	defer func() { err = pan.Error(recover()) }()

	p.encodeNullChecks(id, b)
	return
}

func (p *Producer) encodeNullChecks(id MethodID, b *builder.Builder) {
	index, found := p.unit.FaultMapSymbols[id]
	if !found {
		return
	}

	sym, found := p.unit.FunctionSymbols[id]
	if !found {
		pan.Panic(errors.FormatErrorf("method %d has fault map symbol but no function symbol", id))
	}

	f := pan.Must(p.faultMap.Function(int(index)))

	pcs := append([]llvm.FaultingPC(nil), f.FaultingPCs...)
	sort.SliceStable(pcs, func(i, j int) bool {
		return pcs[i].FaultingPCOffset < pcs[j].FaultingPCOffset
	})

	for _, pc := range pcs {
		b.AddImplicitNullCheck(sym.CodeOffset+pc.FaultingPCOffset, (sym.CodeOffset+pc.HandlerPCOffset)|FaultMapHandlerFlag)
	}

	p.log.Debug().Uint32("method", uint32(id)).Int("null_checks", len(pcs)).Msg("encoded null checks")
}
