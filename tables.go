// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codeinfo

import (
	"github.com/safepoint/codeinfo/bittable"
)

// TableID enumerates the tables in encoding order.
type TableID int

const (
	TableStackMaps TableID = iota
	TableInlineInfos
	TableRootsRegMasks
	TableRootsStackMasks
	TableMethodIDs
	TableVRegMasks
	TableVRegMaps
	TableVRegsCatalogue
	TableImplicitNullChecks
	TableConstants

	NumTables
)

// StackMaps columns.
const (
	StackMapProperties = iota
	StackMapNativePc
	StackMapBytecodePc
	StackMapRootsRegMaskIndex
	StackMapRootsStackMaskIndex
	StackMapInlineInfoIndex
	StackMapVRegMaskIndex
	StackMapVRegMapIndex
)

// StackMap properties bits.
const (
	StackMapIsOsr     = 1 << 0
	StackMapHasRegMap = 1 << 1
)

// InlineInfos columns.
const (
	InlineInfoIsLast = iota
	InlineInfoBytecodePc
	InlineInfoMethodIDIndex
	InlineInfoMethodHi
	InlineInfoMethodLow
	InlineInfoVRegsCount
)

// Single-column tables.
const (
	RootsRegMaskMask        = 0
	MethodIDID              = 0
	VRegMapCatalogueIndex   = 0
	ConstantValue           = 0
	VRegsCatalogueInfo      = 0
	VRegsCatalogueValue     = 1
	ImplicitNullCheckPc     = 0
	ImplicitNullCheckOffset = 1
)

var schemas = [NumTables]*bittable.Schema{
	TableStackMaps: {
		Name: "StackMaps",
		Columns: []string{
			"Properties",
			"NativePc",
			"BytecodePc",
			"RootsRegMaskIndex",
			"RootsStackMaskIndex",
			"InlineInfoIndex",
			"VRegMaskIndex",
			"VRegMapIndex",
		},
	},
	TableInlineInfos: {
		Name: "InlineInfos",
		Columns: []string{
			"IsLast",
			"BytecodePc",
			"MethodIdIndex",
			"MethodHi",
			"MethodLow",
			"VRegsCount",
		},
	},
	TableRootsRegMasks:   {Name: "RootsRegMasks", Columns: []string{"Mask"}},
	TableRootsStackMasks: {Name: "RootsStackMasks", Bitmap: true},
	TableMethodIDs:       {Name: "MethodIds", Columns: []string{"Id"}},
	TableVRegMasks:       {Name: "VRegMasks", Bitmap: true},
	TableVRegMaps:        {Name: "VRegMaps", Columns: []string{"CatalogueIndex"}},
	TableVRegsCatalogue:  {Name: "VRegsCatalogue", Columns: []string{"Info", "Value"}},
	TableImplicitNullChecks: {
		Name:    "ImplicitNullChecks",
		Columns: []string{"InstructionNativePc", "Offset"},
	},
	TableConstants: {Name: "Constants", Columns: []string{"Value"}},
}

// Schema of a table.
func Schema(id TableID) *bittable.Schema {
	return schemas[id]
}

func (id TableID) String() string {
	return schemas[id].Name
}
