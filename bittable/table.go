// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bittable

import (
	"github.com/safepoint/codeinfo/bitstream"
	"github.com/safepoint/codeinfo/internal/errors"
	"github.com/safepoint/codeinfo/internal/pan"
)

// Table is a decoded view of an encoded table.  It references the encoded
// data; nothing is copied.
type Table struct {
	schema  *Schema
	data    []byte
	rows    int
	widths  []int
	offsets []int // Bit offset of each column within a row.
	rowBits int
	start   uint64
}

// Decode a table at the reader's position, and advance the reader past it.
// Malformed data panics via the internal panic zone.
func Decode(r *bitstream.Reader, s *Schema) Table {
	t := Table{
		schema: s,
		data:   r.Data(),
	}

	t.rows = int(r.ReadVarint())
	if t.rows == 0 {
		return t
	}

	if s.Bitmap {
		t.widths = []int{int(r.ReadVarint())}
	} else {
		widths := make([]uint32, s.NumColumns())
		r.ReadVarints(widths)

		t.widths = make([]int, len(widths))
		for i, w := range widths {
			if w > 32 {
				pan.Panic(errors.FormatErrorf("%s column %s width %d exceeds 32 bits", s.Name, s.Columns[i], w))
			}
			t.widths[i] = int(w)
		}
	}

	t.offsets = make([]int, len(t.widths))
	for i, w := range t.widths {
		t.offsets[i] = t.rowBits
		t.rowBits += w
	}

	t.start = r.Pos()
	r.Skip(uint64(t.rows) * uint64(t.rowBits))
	return t
}

func (t *Table) Schema() *Schema {
	return t.schema
}

// Len is the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// ColumnWidth in bits.  Bitmap tables have a single column.
func (t *Table) ColumnWidth(col int) int {
	if t.rows == 0 {
		return 0
	}
	return t.widths[col]
}

// BitSize of the row data.
func (t *Table) BitSize() uint64 {
	return uint64(t.rows) * uint64(t.rowBits)
}

// Get a cell.  NoValue is returned for absent fields.
func (t *Table) Get(row, col int) uint32 {
	pos := t.start + uint64(row)*uint64(t.rowBits) + uint64(t.offsets[col])
	return bitstream.ReadAt(t.data, pos, t.widths[col]) - 1
}

// Row copies all cells of a row.
func (t *Table) Row(row int) []uint32 {
	values := make([]uint32, len(t.widths))
	for col := range values {
		values[col] = t.Get(row, col)
	}
	return values
}

// Bitmap of a bitmap table row.
func (t *Table) Bitmap(row int) Bitmap {
	pos := t.start + uint64(row)*uint64(t.rowBits)
	return Bitmap(bitstream.ReadWordsAt(t.data, pos, t.rowBits)).trim()
}

// Has reports whether index refers to an existing row.
func (t *Table) Has(index uint32) bool {
	return index != NoValue && int64(index) < int64(t.rows)
}

// Empty table of the schema.  It stands for a table which was not encoded.
func Empty(s *Schema) Table {
	return Table{schema: s}
}
