// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/safepoint/codeinfo/internal/errors"
)

// MethodID is an index to Unit.Methods.
type MethodID uint32

type Method struct {
	Name       string `cbor:"1,keyasint"`
	VRegsCount uint32 `cbor:"2,keyasint"`
}

// FunctionSymbol locates a method's code and stack map records.
type FunctionSymbol struct {
	FuncIndex  uint32 `cbor:"1,keyasint"` // Function index in the stack map section.
	CodeOffset uint32 `cbor:"2,keyasint"` // Function address in the code section.
}

// Unit describes the methods of a compiled module.  Methods without a
// function symbol have no stack maps; methods without a fault map symbol have
// no implicit null checks.
type Unit struct {
	Methods         []Method                    `cbor:"1,keyasint"`
	FunctionSymbols map[MethodID]FunctionSymbol `cbor:"2,keyasint,omitempty"`
	FaultMapSymbols map[MethodID]uint32         `cbor:"3,keyasint,omitempty"`
}

// AddMethod appends a method and returns its id.
func (u *Unit) AddMethod(m Method) MethodID {
	u.Methods = append(u.Methods, m)
	return MethodID(len(u.Methods) - 1)
}

// SetFunctionSymbol of a method.
func (u *Unit) SetFunctionSymbol(id MethodID, sym FunctionSymbol) {
	if u.FunctionSymbols == nil {
		u.FunctionSymbols = make(map[MethodID]FunctionSymbol)
	}
	u.FunctionSymbols[id] = sym
}

// SetFaultMapSymbol of a method.
func (u *Unit) SetFaultMapSymbol(id MethodID, funcIndex uint32) {
	if u.FaultMapSymbols == nil {
		u.FaultMapSymbols = make(map[MethodID]uint32)
	}
	u.FaultMapSymbols[id] = funcIndex
}

// Method by id.
func (u *Unit) Method(id MethodID) (*Method, error) {
	if int64(id) >= int64(len(u.Methods)) {
		return nil, errors.FormatErrorf("method id %d out of range", id)
	}
	return &u.Methods[id], nil
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("producer: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalUnit serializes a Unit to canonical CBOR.
func MarshalUnit(u *Unit) ([]byte, error) {
	return cborEncMode.Marshal(u)
}

// UnmarshalUnit deserializes a Unit from CBOR.
func UnmarshalUnit(data []byte) (*Unit, error) {
	var u Unit
	if err := cbor.Unmarshal(data, &u); err != nil {
		return nil, errors.WrapFormatError(err, "malformed compilation unit: "+err.Error())
	}
	return &u, nil
}
