// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo

import (
	"fmt"
)

// Location of a virtual register's value at a safepoint.
type Location uint8

const (
	LocationNone Location = iota // Not live.
	LocationSlot
	LocationRegister
	LocationFPRegister
	LocationConstant
)

var locationNames = [...]string{
	LocationNone:       "none",
	LocationSlot:       "slot",
	LocationRegister:   "reg",
	LocationFPRegister: "fpreg",
	LocationConstant:   "const",
}

func (l Location) String() string {
	if int(l) < len(locationNames) {
		return locationNames[l]
	}
	return fmt.Sprintf("location(%d)", uint8(l))
}

// Type of a virtual register's value.
type Type uint8

const (
	TypeUndefined Type = iota
	TypeObject
	TypeInt32
	TypeUint32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeAny
)

var typeNames = [...]string{
	TypeUndefined: "undefined",
	TypeObject:    "object",
	TypeInt32:     "i32",
	TypeUint32:    "u32",
	TypeInt64:     "i64",
	TypeFloat32:   "f32",
	TypeFloat64:   "f64",
	TypeBool:      "bool",
	TypeAny:       "any",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Is64 reports whether constants of the type use both halves.
func (t Type) Is64() bool {
	return t == TypeInt64 || t == TypeFloat64 || t == TypeAny
}

// VRegType distinguishes ordinary virtual registers from the accumulator and
// environment registers.
type VRegType uint8

const (
	VRegTypeVReg VRegType = iota
	VRegTypeAcc
	VRegTypeEnv
)

func (t VRegType) String() string {
	switch t {
	case VRegTypeVReg:
		return "vreg"
	case VRegTypeAcc:
		return "acc"
	case VRegTypeEnv:
		return "env"
	}
	return fmt.Sprintf("vregtype(%d)", uint8(t))
}

// Info column layout.
const (
	infoLocationBits = 3
	infoTypeShift    = infoLocationBits
	infoTypeBits     = 4
	infoKindShift    = infoTypeShift + infoTypeBits
	infoKindBits     = 2

	constantIndexBits = 16
	constantIndexMask = 1<<constantIndexBits - 1

	// MaxConstantIndex which fits in a Constant location.
	MaxConstantIndex = constantIndexMask
)

// VRegInfo describes where a virtual register lives at a safepoint.  Value is
// a register number, a slot number, or a pair of constant table indices.
type VRegInfo struct {
	Value    uint32
	Location Location
	Type     Type
	VRegType VRegType
}

// ConstantVReg describes a constant split into two constant table rows.
func ConstantVReg(lowIndex, highIndex uint32, t Type, k VRegType) VRegInfo {
	return VRegInfo{
		Value:    highIndex<<constantIndexBits | lowIndex,
		Location: LocationConstant,
		Type:     t,
		VRegType: k,
	}
}

func (v VRegInfo) IsLive() bool {
	return v.Location != LocationNone
}

func (v VRegInfo) IsAccumulator() bool {
	return v.VRegType == VRegTypeAcc
}

// ConstantIndices of a Constant location.
func (v VRegInfo) ConstantIndices() (low, high uint32) {
	return v.Value & constantIndexMask, v.Value >> constantIndexBits
}

// Info is the packed catalogue Info column.
func (v VRegInfo) Info() uint32 {
	return uint32(v.Location) | uint32(v.Type)<<infoTypeShift | uint32(v.VRegType)<<infoKindShift
}

// UnpackVRegInfo from catalogue columns.
func UnpackVRegInfo(info, value uint32) VRegInfo {
	return VRegInfo{
		Value:    value,
		Location: Location(info & (1<<infoLocationBits - 1)),
		Type:     Type(info >> infoTypeShift & (1<<infoTypeBits - 1)),
		VRegType: VRegType(info >> infoKindShift & (1<<infoKindBits - 1)),
	}
}

func (v VRegInfo) String() string {
	switch v.Location {
	case LocationNone:
		return "-"

	case LocationConstant:
		low, high := v.ConstantIndices()
		return fmt.Sprintf("%s:%s[%d,%d] %s", v.Location, v.Type, low, high, v.VRegType)
	}
	return fmt.Sprintf("%s:%s%d %s", v.Type, v.Location, v.Value, v.VRegType)
}
