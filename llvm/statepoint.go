// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llvm

import (
	"github.com/safepoint/codeinfo/internal/errors"
)

// Location indices of a gc.statepoint record's fixed header.
const (
	StatepointCallingConv = 0
	StatepointFlags       = 1
	StatepointNumDeopt    = 2

	StatepointHeaderLen = 3
)

// Statepoint splits a gc.statepoint record's locations into the deopt
// bundle and the GC roots.
type Statepoint struct {
	CallingConv int64
	Flags       int64
	Deopt       []Location
	Roots       []Location
}

// ParseStatepoint interprets the record's locations.
func ParseStatepoint(r *Record) (sp Statepoint, err error) {
	locs := r.Locations
	if len(locs) < StatepointHeaderLen {
		err = errors.FormatErrorf("statepoint record 0x%x has %d locations", r.ID, len(locs))
		return
	}

	for i := 0; i < StatepointHeaderLen; i++ {
		if locs[i].Kind != Constant {
			err = errors.FormatErrorf("statepoint record 0x%x header location %d is %s", r.ID, i, locs[i].Kind)
			return
		}
	}

	numDeopt := locs[StatepointNumDeopt].SmallConstant()
	if numDeopt < 0 || numDeopt > int64(len(locs)-StatepointHeaderLen) {
		err = errors.FormatErrorf("statepoint record 0x%x deopt count %d is invalid", r.ID, numDeopt)
		return
	}

	end := StatepointHeaderLen + int(numDeopt)

	sp = Statepoint{
		CallingConv: locs[StatepointCallingConv].SmallConstant(),
		Flags:       locs[StatepointFlags].SmallConstant(),
		Deopt:       locs[StatepointHeaderLen:end:end],
		Roots:       locs[end:],
	}
	return
}
