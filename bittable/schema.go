// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bittable implements column-oriented, bit-packed tables of
// fixed-schema rows.
//
// Every cell is stored as value+1 in the minimal width which fits the largest
// value of its column, so NoValue (which wraps to zero) costs nothing in a
// column where every row leaves the field absent.
package bittable

import (
	"math"
)

// NoValue marks an absent optional field.
const NoValue = math.MaxUint32

// Schema names a table and its columns.  A bitmap table has no columns: each
// row is an arbitrary-width bit-set.
type Schema struct {
	Name    string
	Columns []string
	Bitmap  bool
}

func (s *Schema) NumColumns() int {
	return len(s.Columns)
}

// Encoder is implemented by Builder and BitmapBuilder.
type Encoder interface {
	Schema() *Schema
	Len() int
	Encode(w Writer)
}
