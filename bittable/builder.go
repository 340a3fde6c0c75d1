// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bittable

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Writer is implemented by *bitstream.Writer.
type Writer interface {
	Write(value uint32, n int)
	WriteWords(words []uint64, n int)
	WriteVarint(value uint32)
	WriteVarints(values ...uint32)
}

// Builder accumulates rows of a table with columns.
type Builder struct {
	schema *Schema
	data   []uint32 // Rows stored back to back.
	dedup  map[string]uint32
}

// NewBuilder for a table.  If dedup is set, Add returns the index of an
// identical existing row instead of appending.
func NewBuilder(s *Schema, dedup bool) *Builder {
	if s.Bitmap {
		panic(fmt.Sprintf("bittable: %s is a bitmap table", s.Name))
	}

	b := &Builder{schema: s}
	if dedup {
		b.dedup = make(map[string]uint32)
	}
	return b
}

func (b *Builder) Schema() *Schema {
	return b.schema
}

// Len is the number of rows.
func (b *Builder) Len() int {
	return len(b.data) / b.schema.NumColumns()
}

// Row returns a view of an existing row.
func (b *Builder) Row(index uint32) []uint32 {
	n := b.schema.NumColumns()
	i := int(index) * n
	return b.data[i : i+n : i+n]
}

// Add a row and return its index.
func (b *Builder) Add(row ...uint32) uint32 {
	b.checkRow(row)

	if b.dedup != nil {
		k := rowKey(row)
		if index, found := b.dedup[k]; found {
			return index
		}
		index := b.append(row)
		b.dedup[k] = index
		return index
	}

	return b.append(row)
}

// AddArray appends rows contiguously and returns the index of the first one.
// Arrays are never deduplicated.  NoValue is returned for an empty array.
func (b *Builder) AddArray(rows [][]uint32) uint32 {
	if len(rows) == 0 {
		return NoValue
	}

	first := uint32(b.Len())
	for _, row := range rows {
		b.checkRow(row)
		b.append(row)
	}
	return first
}

// Encode the row count, the column widths and the rows.
func (b *Builder) Encode(w Writer) {
	n := b.Len()
	w.WriteVarint(uint32(n))
	if n == 0 {
		return
	}

	cols := b.schema.NumColumns()
	widths := make([]uint32, cols)
	for i, v := range b.data {
		c := i % cols
		widths[c] = max(widths[c], uint32(bits.Len32(v+1)))
	}
	w.WriteVarints(widths...)

	for i, v := range b.data {
		w.Write(v+1, int(widths[i%cols]))
	}
}

func (b *Builder) append(row []uint32) uint32 {
	index := uint32(b.Len())
	b.data = append(b.data, row...)
	return index
}

func (b *Builder) checkRow(row []uint32) {
	if len(row) != b.schema.NumColumns() {
		panic(fmt.Sprintf("bittable: %s row has %d values; expected %d", b.schema.Name, len(row), b.schema.NumColumns()))
	}
}

func rowKey(row []uint32) string {
	k := make([]byte, 0, len(row)*4)
	for _, v := range row {
		k = binary.LittleEndian.AppendUint32(k, v)
	}
	return string(k)
}

// BitmapBuilder accumulates rows of a bitmap table.  Identical bitmaps are
// always deduplicated.
type BitmapBuilder struct {
	schema *Schema
	rows   []Bitmap
	dedup  map[string]uint32
}

func NewBitmapBuilder(s *Schema) *BitmapBuilder {
	if !s.Bitmap {
		panic(fmt.Sprintf("bittable: %s is not a bitmap table", s.Name))
	}

	return &BitmapBuilder{
		schema: s,
		dedup:  make(map[string]uint32),
	}
}

func (b *BitmapBuilder) Schema() *Schema {
	return b.schema
}

func (b *BitmapBuilder) Len() int {
	return len(b.rows)
}

// Row returns an existing bitmap.
func (b *BitmapBuilder) Row(index uint32) Bitmap {
	return b.rows[index]
}

// Add a bitmap and return its index.  The bitmap is copied.
func (b *BitmapBuilder) Add(bm Bitmap) uint32 {
	k := bm.key()
	if index, found := b.dedup[k]; found {
		return index
	}

	index := uint32(len(b.rows))
	b.rows = append(b.rows, append(Bitmap(nil), bm.trim()...))
	b.dedup[k] = index
	return index
}

// Encode the row count, the bit width and the bitmaps.
func (b *BitmapBuilder) Encode(w Writer) {
	n := len(b.rows)
	w.WriteVarint(uint32(n))
	if n == 0 {
		return
	}

	var width int
	for _, bm := range b.rows {
		width = max(width, bm.Len())
	}
	w.WriteVarint(uint32(width))

	for _, bm := range b.rows {
		w.WriteWords(bm, width)
	}
}
